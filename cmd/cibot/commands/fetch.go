package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cibotics/cibot-go/internal/ingestion"
	"github.com/cibotics/cibot-go/internal/logging"
)

// NewFetchCmd constructs the `cibot fetch` command, which scrapes the CIB
// investor-relations library and downloads statement PDFs.
func NewFetchCmd() *cobra.Command {
	var dir string
	var englishURL string
	var arabicURL string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download CIB financial statement PDFs from the IR library",
		Long: `Scrape the CIB investor-relations financial statements pages and
download every linked PDF into the local statements directory.

Files are stored under canonical names derived from the statement year,
language, quarter, and type (e.g. 2023_en_q1_consolidated.pdf), and
already-downloaded statements are skipped, so the command is safe to
re-run on a schedule.

Examples:
  cibot fetch
  cibot fetch --dir ./statements
  CIBOT_STATEMENTS_DIR=/srv/cibot/statements cibot fetch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if dir == "" {
				dir = statementsDir()
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("fetch: create %s: %w", dir, err)
			}

			fetcher, err := ingestion.NewFetcher(&ingestion.FetcherConfig{
				Dir:        dir,
				EnglishURL: englishURL,
				ArabicURL:  arabicURL,
			})
			if err != nil {
				return fmt.Errorf("fetch: %w", err)
			}

			log.Info("fetch starting", slog.String("dir", dir))

			stats, err := fetcher.FetchAll(ctx)
			if err != nil {
				return fmt.Errorf("fetch: %w", err)
			}

			log.Info("fetch complete",
				slog.Int("found", stats.Found),
				slog.Int("downloaded", stats.Downloaded),
				slog.Int("skipped", stats.Skipped),
				slog.Int("failed", stats.Failed),
			)
			fmt.Printf("fetched %d new statements into %s (%d already present, %d failed)\n",
				stats.Downloaded, dir, stats.Skipped, stats.Failed)

			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory to store statement PDFs (default: ~/.cibot/statements)")
	cmd.Flags().StringVar(&englishURL, "english-url", "", "Override the English statements listing URL")
	cmd.Flags().StringVar(&arabicURL, "arabic-url", "", "Override the Arabic statements listing URL")

	return cmd
}

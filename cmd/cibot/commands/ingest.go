package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cibotics/cibot-go/internal/embedder"
	"github.com/cibotics/cibot-go/internal/ingestion"
	"github.com/cibotics/cibot-go/internal/logging"
)

// NewIngestCmd constructs the `cibot ingest` command, which chunks and
// embeds statement PDFs into the Qdrant vector store.
func NewIngestCmd() *cobra.Command {
	var dir string
	var file string
	var recreate bool
	var yes bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest statement PDFs into the vector store",
		Long: `Extract, chunk, and embed statement PDFs into the Qdrant vector store.

By default every PDF in the statements directory is ingested. Chunk IDs
are derived from the file name, so re-ingesting a statement replaces its
previous chunks instead of duplicating them.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: cib_financial_statements)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  EMBEDDING_PROVIDER   Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_MODEL      Embedding model name (default: all-minilm)
  EMBEDDING_DIMENSIONS Vector dimensionality override

Examples:
  cibot ingest
  cibot ingest --file statements/2023_en_q1_consolidated.pdf
  cibot ingest --recreate --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if err := embedder.ValidateForRAG(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}

			store, err := buildStore(ctx)
			if err != nil {
				return fmt.Errorf("ingest: failed to connect to Qdrant: %w", err)
			}
			defer store.Close()

			if recreate {
				count, countErr := store.Count(ctx)
				if countErr == nil && count > 0 && !yes {
					return fmt.Errorf("ingest: --recreate would drop %d existing chunks — re-run with --yes to confirm", count)
				}
			}
			if err := store.EnsureCollection(ctx, recreate); err != nil {
				return fmt.Errorf("ingest: collection setup failed: %w", err)
			}

			pipeline, err := ingestion.NewPipeline(emb, store)
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			progress := func(msg string) { log.Info(msg) }

			if file != "" {
				n, err := pipeline.IngestFile(ctx, file)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				fmt.Printf("ingested %d chunks from %s\n", n, file)
				return nil
			}

			if dir == "" {
				dir = statementsDir()
			}
			log.Info("ingest starting", slog.String("dir", dir))

			stats, err := pipeline.IngestDir(ctx, dir, progress)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			fmt.Printf("ingested %d chunks from %d files (%d failed)\n",
				stats.Chunks, stats.Files, stats.Failed)
			if stats.Files == 0 && stats.Failed == 0 {
				fmt.Printf("no PDFs found in %s — run 'cibot fetch' first\n", dir)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory of statement PDFs to ingest (default: ~/.cibot/statements)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Ingest a single PDF instead of a directory")
	cmd.Flags().BoolVar(&recreate, "recreate", false, "Drop and recreate the collection before ingesting")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm destructive operations without prompting")

	return cmd
}

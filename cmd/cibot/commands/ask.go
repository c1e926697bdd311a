package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cibotics/cibot-go/internal/answer"
	"github.com/cibotics/cibot-go/internal/logging"
)

// NewAskCmd constructs the `cibot ask` command, which answers a single
// question about CIB's financial statements and streams the answer to stdout.
func NewAskCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about CIB's financial statements",
		Long: `Ask a natural language question about CIB's financial statements.

The answer is grounded in the statement chunks previously ingested into
the vector store with 'cibot ingest'. If the store is unreachable, the
assistant explains the degraded mode instead of failing.

Examples:
  cibot ask "What was CIB's net income in Q1 2023?"
  cibot ask "How did customer deposits change year over year?"
  cibot ask --top-k 5 "Summarise the consolidated income statement for 2022"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			generator, err := buildGenerator(ctx)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			retriever, closeRetriever := buildRetriever(ctx, log)
			defer closeRetriever()

			orch, err := answer.New(&answer.Config{
				Retriever:        retriever,
				Generator:        generator,
				TopK:             topK,
				MaxContextTokens: envInt("CIBOT_MAX_CONTEXT_TOKENS", 0),
			})
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			question := strings.Join(args, " ")
			tokens, err := orch.Ask(ctx, question)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			for token := range tokens {
				fmt.Fprint(os.Stdout, token)
			}
			fmt.Fprintln(os.Stdout)

			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of statement chunks to retrieve (default 3)")

	return cmd
}

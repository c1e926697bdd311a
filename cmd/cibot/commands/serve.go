package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/cibotics/cibot-go/internal/answer"
	"github.com/cibotics/cibot-go/internal/logging"
	"github.com/cibotics/cibot-go/internal/server"
	"github.com/cibotics/cibot-go/internal/store"
	"github.com/cibotics/cibot-go/internal/tracing"
)

// NewServeCmd constructs the `cibot serve` command, which starts the HTTP
// chat server.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the cibot HTTP chat server",
		Long: `Start the cibot HTTP server on localhost.

The server exposes a REST/SSE API: POST /api/chat streams answers,
GET /api/statements lists the local statement library, GET /api/session
returns persisted chat transcripts, and /api/health, /api/ready, and
/metrics cover operations.

Examples:
  cibot serve
  cibot serve --port 9090
  MODEL_PROVIDER=openai cibot serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", envOrDefault("MODEL_PROVIDER", "ollama")))

			// Langfuse tracing is opt-in, a no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			generator, err := buildGenerator(ctx)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			retriever, closeRetriever := buildRetriever(ctx, log)
			defer closeRetriever()

			orch, err := answer.New(&answer.Config{
				Retriever:        retriever,
				Generator:        generator,
				TopK:             envInt("CIBOT_TOP_K", 0),
				MaxContextTokens: envInt("CIBOT_MAX_CONTEXT_TOKENS", 0),
			})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			// Open chat history store. CIBOT_HISTORY_DB overrides the default
			// path (~/.cibot/history.db). Set to "disabled" to disable.
			var history store.SessionStore
			dbPath := os.Getenv("CIBOT_HISTORY_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = store.DefaultDBPath()
					if err != nil {
						log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					hs, hsErr := store.Open(dbPath)
					if hsErr != nil {
						log.Warn("history: failed to open store, disabling", slog.Any("error", hsErr))
					} else {
						history = hs
						defer func() { _ = hs.Close() }()
						log.Info("history: store opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("history: disabled via CIBOT_HISTORY_DB=disabled")
			}

			pingers, closePingers := buildPingers(ctx, log)
			defer closePingers()

			srv, err := server.New(orch, &server.Config{
				Host:          host,
				Port:          port,
				Logger:        log,
				Pingers:       pingers,
				APIKey:        os.Getenv("CIBOT_API_KEY"),
				StatementsDir: statementsDir(),
				History:       history,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}

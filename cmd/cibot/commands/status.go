package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cibotics/cibot-go/internal/logging"
)

// NewStatusCmd constructs the `cibot status` command, which probes each
// backing dependency and reports reachability.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check connectivity to Ollama and Qdrant",
		Long: `Probe each backing dependency (Ollama, Qdrant) and report whether it is
reachable with the current configuration. Exits non-zero when any
dependency is down.

Examples:
  cibot status
  QDRANT_HOST=qdrant.internal cibot status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			pingers, closePingers := buildPingers(ctx, log)
			defer closePingers()

			if len(pingers) == 0 {
				fmt.Println("no probes configured for the current backends")
				return nil
			}

			failed := 0
			for _, p := range pingers {
				if err := p.Ping(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "%-8s DOWN  %v\n", p.Name(), err)
					failed++
					continue
				}
				fmt.Printf("%-8s OK\n", p.Name())
			}

			if failed > 0 {
				return fmt.Errorf("status: %d of %d dependencies unreachable", failed, len(pingers))
			}
			return nil
		},
	}
}

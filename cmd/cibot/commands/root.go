// Package commands defines all Cobra CLI commands for the cibot binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cibotics/cibot-go/internal/audit"
	"github.com/cibotics/cibot-go/internal/config"
	"github.com/cibotics/cibot-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cibot",
		Short: "cibot — a RAG assistant for CIB financial statements",
		Long: `cibot is a local-first assistant for exploring the financial statements
of the Commercial International Bank (CIB) in Egypt.

It scrapes the CIB investor-relations library, ingests statement PDFs
into a Qdrant vector store, and answers questions about them using a
local Ollama model grounded in the retrieved statement text.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.cibot/config.yaml).
See 'cibot --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A local .env is optional; missing files are not an error.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.cibot/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewServeCmd(),
		NewFetchCmd(),
		NewIngestCmd(),
		NewStatusCmd(),
		NewVersionCmd(),
	)

	return root
}

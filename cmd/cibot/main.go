// Command cibot is the entry point for the CIB financial statements
// assistant. It provides a CLI interface (via Cobra) for fetching and
// ingesting statements, asking questions, and running the HTTP chat server.
package main

import (
	"fmt"
	"os"

	"github.com/cibotics/cibot-go/cmd/cibot/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "docroute-api",
	Short: "Docroute API - document routing and sign-off service",
	Long:  `An HTTP API that routes documents through offices for sequential sign-off, with JWT auth, role/claim authorization, rate limiting, idempotency, and an audit trail.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

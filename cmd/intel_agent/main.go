// Package main provides the entry point for the person intelligence CLI and API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "intel_agent",
	Short: "Person Intelligence workflow coordinator",
	Long:  "Person Intelligence gathers social media, sanctions/PEP and adverse media evidence about a subject, analyzes it, and produces a risk-assessed report via CLI or REST API.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/person-intel/internal/config"
	"github.com/jonathan/person-intel/internal/server"
	"github.com/jonathan/person-intel/internal/workflow"
)

var (
	servePort       int
	serveConfigPath string
	serveClientRate int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes REST endpoints for running person intelligence searches.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to config.json file")
	serveCmd.Flags().IntVar(&serveClientRate, "client-rate", 60, "Requests per minute allowed per client IP (0 disables)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	var cfg config.Config
	if serveConfigPath != "" {
		loaded, err := config.LoadConfig(serveConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = *loaded
	}

	cfg = cfg.MergeWithDefaults(config.Config{
		APIKey:       os.Getenv("GEMINI_API_KEY"),
		GNewsAPIKey:  os.Getenv("GNEWS_API_KEY"),
		SocialAPIKey: os.Getenv("SOCIAL_API_KEY"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
	})
	if cfg.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	coordinator, cleanup, err := buildCoordinator(context.Background(), cfg, workflow.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}
	defer cleanup()

	srv := server.New(coordinator, server.Config{
		Port:                    servePort,
		ClientRequestsPerMinute: serveClientRate,
	})
	return srv.Start()
}

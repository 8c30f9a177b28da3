package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/person-intel/internal/config"
	"github.com/jonathan/person-intel/internal/observability"
	"github.com/jonathan/person-intel/internal/workflow"
)

var searchCmd = &cobra.Command{
	Use:   "search [name]",
	Short: "Run a one-shot intelligence search for a person",
	Long: `Runs the full pipeline for a subject name: strategy generation, parallel
source collection (social media, PEP/sanctions registries, adverse media),
per-source analysis, synthesis, and risk assessment.

Configuration can be loaded from a JSON file using --config. Command-line
arguments override config file values.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var (
	searchConfigPath string
	searchOutput     string
	searchFormat     string
	searchNoSocial   bool
	searchNoPEP      bool
	searchNoMedia    bool
	searchTimeout    int
	searchVerbose    bool
	searchAPIKey     string
	searchDBURL      string
)

func init() {
	searchCmd.Flags().StringVar(&searchConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	searchCmd.Flags().StringVarP(&searchOutput, "output", "o", "", "Write the report to this file instead of stdout")
	searchCmd.Flags().StringVarP(&searchFormat, "format", "f", "json", "Report format: json or markdown")
	searchCmd.Flags().BoolVar(&searchNoSocial, "no-social", false, "Skip social media collection")
	searchCmd.Flags().BoolVar(&searchNoPEP, "no-pep", false, "Skip PEP and sanctions registries")
	searchCmd.Flags().BoolVar(&searchNoMedia, "no-media", false, "Skip adverse media collection")
	searchCmd.Flags().IntVar(&searchTimeout, "timeout", 0, "Per-category collection timeout in seconds")
	searchCmd.Flags().BoolVarP(&searchVerbose, "verbose", "v", false, "Print detailed progress information")

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY
	searchCmd.Flags().StringVar(&searchAPIKey, "api-key", "", "Gemini API key (optional, defaults to GEMINI_API_KEY env var)")

	// Database URL for report persistence
	searchCmd.Flags().StringVar(&searchDBURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	name := strings.TrimSpace(strings.Join(args, " "))

	cfg, err := loadSearchConfig(cmd)
	if err != nil {
		return err
	}

	if searchFormat != "json" && searchFormat != "markdown" {
		return fmt.Errorf("invalid format %q: must be json or markdown", searchFormat)
	}

	printer := observability.NewPrinter(os.Stderr)
	wfConfig := workflow.DefaultConfig()
	if cfg.Verbose {
		wfConfig.OnProgress = printer.PrintProgress
	}

	coordinator, cleanup, err := buildCoordinator(ctx, cfg, wfConfig)
	if err != nil {
		return err
	}
	defer cleanup()

	id, err := coordinator.StartWithOptions(name, workflow.Options{
		SkipSocial: searchNoSocial,
		SkipPEP:    searchNoPEP,
		SkipMedia:  searchNoMedia,
	})
	if err != nil {
		return err
	}

	snapshot, err := coordinator.Await(ctx, id)
	if err != nil {
		return err
	}
	if snapshot.Status != workflow.StatusCompleted {
		return fmt.Errorf("run %s: %s", snapshot.Status, snapshot.Error)
	}

	report, err := coordinator.Result(id)
	if err != nil {
		return err
	}
	if cfg.Verbose {
		printer.PrintReport(report)
	}

	var rendered string
	if searchFormat == "markdown" {
		rendered = report.ToMarkdown()
	} else {
		rendered, err = report.ToJSON()
		if err != nil {
			return fmt.Errorf("failed to render report: %w", err)
		}
	}

	if searchOutput != "" {
		if err := os.WriteFile(searchOutput, []byte(rendered), 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Report written to %s\n", searchOutput)
		return nil
	}
	fmt.Println(rendered)
	return nil
}

// loadSearchConfig loads the optional config file and applies CLI overrides.
func loadSearchConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if searchConfigPath != "" {
		loaded, err := config.LoadConfig(searchConfigPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return cfg, err
		}
		cfg = *loaded
		if searchVerbose {
			fmt.Fprintf(os.Stderr, "Loaded config from: %s\n", searchConfigPath)
		}
	}

	// CLI overrides take priority over config file values.
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = searchAPIKey
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = searchDBURL
	}
	if cmd.Flags().Changed("timeout") {
		cfg.TimeoutSeconds = searchTimeout
	}
	if searchVerbose {
		cfg.Verbose = true
	}

	// Environment fills whatever is still unset.
	cfg = cfg.MergeWithDefaults(config.Config{
		APIKey:       os.Getenv("GEMINI_API_KEY"),
		GNewsAPIKey:  os.Getenv("GNEWS_API_KEY"),
		SocialAPIKey: os.Getenv("SOCIAL_API_KEY"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
	})

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

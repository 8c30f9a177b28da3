package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jonathan/person-intel/internal/cache"
	"github.com/jonathan/person-intel/internal/collect"
	"github.com/jonathan/person-intel/internal/config"
	"github.com/jonathan/person-intel/internal/db"
	"github.com/jonathan/person-intel/internal/fetch"
	"github.com/jonathan/person-intel/internal/llm"
	"github.com/jonathan/person-intel/internal/proxy"
	"github.com/jonathan/person-intel/internal/ratelimit"
	"github.com/jonathan/person-intel/internal/retry"
	"github.com/jonathan/person-intel/internal/workflow"
)

// buildCoordinator wires the full pipeline from configuration. The returned
// cleanup releases the reasoning client and database pool.
func buildCoordinator(ctx context.Context, cfg config.Config, wfConfig workflow.Config) (*workflow.Coordinator, func(), error) {
	if cfg.APIKey == "" {
		return nil, nil, fmt.Errorf("API key is required (set GEMINI_API_KEY or api_key in config)")
	}

	client, err := llm.NewClient(ctx, llm.DefaultConfig(), cfg.APIKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create reasoning client: %w", err)
	}

	deps := buildDeps(cfg)

	collectors := []collect.Collector{
		collect.NewSocialCollector(deps, collect.SocialConfig{
			APIKey:    cfg.SocialAPIKey,
			Platforms: cfg.Platforms,
		}),
		collect.NewPEPCollector(deps, collect.PEPConfig{
			APIKeys: cfg.PEPAPIKeys,
		}),
		collect.NewMediaCollector(deps, collect.MediaConfig{
			GNewsAPIKey: cfg.GNewsAPIKey,
			MaxArticles: cfg.MaxArticles,
		}),
	}

	// Persistence is optional: a missing or unreachable database degrades to
	// a warning and the run still completes.
	var (
		store *db.Store
		saver workflow.ReportSaver
	)
	if cfg.DatabaseURL != "" {
		store, err = db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: report persistence disabled: %v", err)
		} else {
			saver = store
		}
	}

	if cfg.TimeoutSeconds > 0 {
		wfConfig.CollectTimeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	coordinator := workflow.NewCoordinator(client, collectors, saver, wfConfig)

	cleanup := func() {
		coordinator.Close()
		if store != nil {
			store.Close()
		}
		if err := client.Close(); err != nil {
			log.Printf("Warning: failed to close reasoning client: %v", err)
		}
	}
	return coordinator, cleanup, nil
}

// buildDeps assembles the shared collection infrastructure.
func buildDeps(cfg config.Config) *collect.Deps {
	cacheConfig := cache.DefaultConfig()
	cacheConfig.Enabled = !cfg.CacheDisabled
	if cfg.CacheTTLHours > 0 {
		cacheConfig.TTL = time.Duration(cfg.CacheTTLHours) * time.Hour
	}

	limitConfig := ratelimit.DefaultConfig()
	if cfg.RequestsPerMinute > 0 {
		limitConfig.RequestsPerWindow = cfg.RequestsPerMinute
		limitConfig.Window = time.Minute
	}

	proxies := proxy.New(proxy.Config{
		Enabled:  len(cfg.ProxyURLs) > 0,
		URLs:     cfg.ProxyURLs,
		Username: cfg.ProxyUsername,
		Password: cfg.ProxyPassword,
	})

	return &collect.Deps{
		Cache:   cache.New(cacheConfig),
		Limiter: ratelimit.New(limitConfig),
		Fetch:   fetch.NewClient(fetch.DefaultOptions(), proxies),
		Retry:   retry.DefaultPolicy(),
	}
}

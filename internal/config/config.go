// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Credentials
	APIKey       string `json:"api_key,omitempty"`        // Gemini API key
	GNewsAPIKey  string `json:"gnews_api_key,omitempty"`  // News API key
	SocialAPIKey string `json:"social_api_key,omitempty"` // Social search provider key
	DatabaseURL  string `json:"database_url,omitempty"`   // PostgreSQL connection URL

	// Collection
	Platforms   []string          `json:"platforms,omitempty"`    // Social platforms to search
	MaxArticles int               `json:"max_articles,omitempty"` // Articles per media sub-source
	PEPAPIKeys  map[string]string `json:"pep_api_keys,omitempty"` // Registry API keys, keyed by registry name

	// Cache
	CacheDisabled bool `json:"cache_disabled,omitempty"` // Disable the response cache
	CacheTTLHours int  `json:"cache_ttl_hours,omitempty"`

	// Rate limiting
	RequestsPerMinute int `json:"requests_per_minute,omitempty"` // Per-source request budget

	// Proxies
	ProxyURLs     []string `json:"proxy_urls,omitempty"`
	ProxyUsername string   `json:"proxy_username,omitempty"`
	ProxyPassword string   `json:"proxy_password,omitempty"`

	// Behavior
	TimeoutSeconds int  `json:"timeout_seconds,omitempty"` // Per-category collection timeout
	Verbose        bool `json:"verbose,omitempty"`         // Print detailed progress information
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.CacheTTLHours < 0 {
		return fmt.Errorf("config error: 'cache_ttl_hours' must be non-negative")
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("config error: 'requests_per_minute' must be non-negative")
	}
	if c.MaxArticles < 0 {
		return fmt.Errorf("config error: 'max_articles' must be non-negative")
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("config error: 'timeout_seconds' must be non-negative")
	}
	if (c.ProxyUsername != "") != (c.ProxyPassword != "") {
		return fmt.Errorf("config error: 'proxy_username' and 'proxy_password' must be set together")
	}
	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.GNewsAPIKey == "" {
		result.GNewsAPIKey = defaults.GNewsAPIKey
	}
	if result.SocialAPIKey == "" {
		result.SocialAPIKey = defaults.SocialAPIKey
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.ProxyUsername == "" {
		result.ProxyUsername = defaults.ProxyUsername
	}
	if result.ProxyPassword == "" {
		result.ProxyPassword = defaults.ProxyPassword
	}

	// Slice and map fields: use default if empty
	if len(result.Platforms) == 0 {
		result.Platforms = defaults.Platforms
	}
	if len(result.PEPAPIKeys) == 0 {
		result.PEPAPIKeys = defaults.PEPAPIKeys
	}
	if len(result.ProxyURLs) == 0 {
		result.ProxyURLs = defaults.ProxyURLs
	}

	// Int fields: use default if zero
	if result.MaxArticles == 0 {
		result.MaxArticles = defaults.MaxArticles
	}
	if result.CacheTTLHours == 0 {
		result.CacheTTLHours = defaults.CacheTTLHours
	}
	if result.RequestsPerMinute == 0 {
		result.RequestsPerMinute = defaults.RequestsPerMinute
	}
	if result.TimeoutSeconds == 0 {
		result.TimeoutSeconds = defaults.TimeoutSeconds
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

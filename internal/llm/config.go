// Package llm wraps the external text-generation service the pipeline
// treats as a black box: prompt in, text (or JSON) out. The rest of the
// system depends only on the Client interface so tests can substitute
// deterministic stubs.
package llm

// ModelTier represents the reasoning capability requested for a call.
type ModelTier string

const (
	// TierLite is for cheap calls: relevance checks, keyword tagging.
	TierLite ModelTier = "lite"
	// TierStandard is for per-category analysis and strategy generation.
	TierStandard ModelTier = "standard"
	// TierAdvanced is for cross-source synthesis.
	TierAdvanced ModelTier = "advanced"
)

// Provider identifies an upstream service.
type Provider string

// Supported providers.
const (
	ProviderGemini Provider = "gemini"
)

// Config holds the model configuration for the reasoning service.
type Config struct {
	Provider    Provider
	Models      map[ModelTier]string
	Temperature float32
}

// DefaultConfig returns the default Gemini configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider:    ProviderGemini,
		Temperature: 0.2,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
	}
}

// Model returns the model name for a tier, falling back down the tier
// ladder when a tier is not configured.
func (c *Config) Model(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

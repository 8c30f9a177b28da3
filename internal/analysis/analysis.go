// Package analysis turns raw collected evidence into per-category analyses,
// a synthesized summary, and a deterministic risk assessment.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/jonathan/person-intel/internal/collect"
	"github.com/jonathan/person-intel/internal/llm"
	"github.com/jonathan/person-intel/internal/prompts"
	"github.com/jonathan/person-intel/internal/types"
)

// categoryPrompt maps a source category to its analysis prompt key and the
// human label used in degraded output.
var categoryPrompt = map[types.SourceCategory]struct {
	key   string
	label string
}{
	types.CategorySocial: {key: "social-analysis", label: "social media"},
	types.CategoryPEP:    {key: "pep-analysis", label: "political exposure"},
	types.CategoryMedia:  {key: "media-analysis", label: "media coverage"},
}

// Analyzer produces the narrative analysis for one source category.
type Analyzer struct {
	client llm.Client
}

// NewAnalyzer creates an analyzer backed by the reasoning service.
func NewAnalyzer(client llm.Client) *Analyzer {
	return &Analyzer{client: client}
}

// Analyze summarizes one collector outcome. Zero records short-circuits to a
// canned line without a reasoning call, and a reasoning failure degrades to a
// placeholder. The second return reports whether the text is a degraded
// placeholder caused by a reasoning-service failure; the caller decides
// whether the run can still complete.
func (a *Analyzer) Analyze(ctx context.Context, name string, outcome *collect.Outcome) (string, bool) {
	meta, ok := categoryPrompt[outcome.Category]
	if !ok {
		return fmt.Sprintf("No analysis available for category %s.", outcome.Category), false
	}

	if outcome.Records() == 0 {
		return fmt.Sprintf("No %s records were found for %s.", meta.label, name), false
	}

	records, err := recordsJSON(outcome)
	if err != nil {
		log.Printf("analysis: failed to serialize %s records: %v", outcome.Category, err)
		return degraded(meta.label, outcome), false
	}

	prompt := prompts.Format(prompts.MustGet("intel.json", meta.key), map[string]string{
		"Name":    name,
		"Records": records,
	})

	text, err := a.client.GenerateContent(ctx, prompt, llm.TierStandard)
	if err != nil {
		log.Printf("analysis: %s analysis degraded for %q: %v", outcome.Category, name, err)
		return degraded(meta.label, outcome), true
	}
	return strings.TrimSpace(text), false
}

// recordsJSON serializes the outcome's evidence for the prompt.
func recordsJSON(outcome *collect.Outcome) (string, error) {
	var payload any
	switch outcome.Category {
	case types.CategorySocial:
		payload = outcome.Profiles
	case types.CategoryPEP:
		payload = outcome.PEPRecords
	case types.CategoryMedia:
		payload = outcome.Articles
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// degraded is the placeholder used when the narrative could not be produced.
// The raw records are still in the report, only the prose is missing.
func degraded(label string, outcome *collect.Outcome) string {
	return fmt.Sprintf("Automated analysis of %s findings was unavailable; %d record(s) were collected and are included in this report.",
		label, outcome.Records())
}

// Synthesize merges the per-category analyses into one summary. A reasoning
// failure falls back to a deterministic sectioned summary.
func Synthesize(ctx context.Context, client llm.Client, name string, analyses map[types.SourceCategory]string) string {
	prompt := prompts.Format(prompts.MustGet("intel.json", "summary"), map[string]string{
		"Name":           name,
		"SocialAnalysis": analyses[types.CategorySocial],
		"PEPAnalysis":    analyses[types.CategoryPEP],
		"MediaAnalysis":  analyses[types.CategoryMedia],
	})

	text, err := client.GenerateContent(ctx, prompt, llm.TierAdvanced)
	if err != nil {
		log.Printf("analysis: summary synthesis degraded for %q: %v", name, err)
		return sectionedSummary(analyses)
	}
	return strings.TrimSpace(text)
}

// sectionedSummary is the non-narrative fallback: the per-category analyses
// stitched together under fixed headings.
func sectionedSummary(analyses map[types.SourceCategory]string) string {
	sections := []struct {
		heading  string
		category types.SourceCategory
	}{
		{"Social Media", types.CategorySocial},
		{"Political Exposure", types.CategoryPEP},
		{"Media Coverage", types.CategoryMedia},
	}

	var b strings.Builder
	for _, section := range sections {
		text := strings.TrimSpace(analyses[section.category])
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s: %s", section.heading, text)
	}
	if b.Len() == 0 {
		return "No findings were available for synthesis."
	}
	return b.String()
}

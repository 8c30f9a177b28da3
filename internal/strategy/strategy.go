// Package strategy turns a subject name into a SearchStrategy by asking the
// reasoning service for a structured search plan.
package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/jonathan/person-intel/internal/llm"
	"github.com/jonathan/person-intel/internal/prompts"
	"github.com/jonathan/person-intel/internal/schemas"
	"github.com/jonathan/person-intel/internal/types"
)

// Error is a strategy-stage failure. The coordinator treats it as terminal
// for the run.
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("strategy generation failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("strategy generation failed: %s", e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Generate asks the reasoning service for a search plan. An unreachable
// service is a terminal *Error; a plan that comes back malformed degrades
// to the default strategy, since collection can proceed without it.
func Generate(ctx context.Context, client llm.Client, name string) (*types.SearchStrategy, error) {
	prompt := prompts.Format(prompts.MustGet("intel.json", "search-strategy"), map[string]string{
		"Name": name,
	})

	raw, err := client.GenerateJSON(ctx, prompt, llm.TierStandard)
	if err != nil {
		return nil, &Error{Message: "reasoning service unavailable", Cause: err}
	}

	plan, err := decode(name, raw)
	if err != nil {
		log.Printf("strategy: unusable plan for %q, using defaults: %v", name, err)
		return types.DefaultStrategy(name), nil
	}
	return plan, nil
}

// decode validates and parses the model's plan JSON.
func decode(name, raw string) (*types.SearchStrategy, error) {
	if err := schemas.Validate("strategy.json", raw); err != nil {
		return nil, err
	}

	var plan types.SearchStrategy
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan JSON: %w", err)
	}

	normalize(name, &plan)
	return &plan, nil
}

// normalize fills gaps the model left and drops blank entries.
func normalize(name string, plan *types.SearchStrategy) {
	plan.Name = name // the subject name is authoritative, not the echo

	plan.SearchTerms = compact(plan.SearchTerms)
	if len(plan.SearchTerms) == 0 {
		plan.SearchTerms = []string{name}
	}

	plan.Platforms = compact(plan.Platforms)
	if len(plan.Platforms) == 0 {
		plan.Platforms = types.DefaultStrategy(name).Platforms
	}
	for i, p := range plan.Platforms {
		plan.Platforms[i] = strings.ToLower(p)
	}

	plan.NameVariations = compact(plan.NameVariations)
}

func compact(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

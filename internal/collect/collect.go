// Package collect gathers raw evidence about a subject from social,
// political-exposure and media sources. Each collector fans out across its
// sub-sources, tolerates individual failures, and reports what it checked,
// what answered, and what it found.
package collect

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jonathan/person-intel/internal/cache"
	"github.com/jonathan/person-intel/internal/fetch"
	"github.com/jonathan/person-intel/internal/ratelimit"
	"github.com/jonathan/person-intel/internal/retry"
	"github.com/jonathan/person-intel/internal/types"
)

// maxConcurrentSubSources bounds the fan-out inside one collector.
const maxConcurrentSubSources = 4

// Deps bundles the shared infrastructure every collector draws on.
type Deps struct {
	Cache   *cache.Cache
	Limiter *ratelimit.Limiter
	Fetch   *fetch.Client
	Retry   retry.Policy
}

// Outcome is what one collector produced: the evidence records for its
// category plus the bookkeeping the report needs. Successful is always a
// subset of Checked.
type Outcome struct {
	Category   types.SourceCategory
	Profiles   map[string][]types.SocialProfile
	PEPRecords []types.PEPRecord
	Articles   []types.NewsArticle
	Checked    []string
	Successful []string
	Errors     []types.SourceError
}

func newOutcome(category types.SourceCategory) *Outcome {
	return &Outcome{Category: category}
}

// checked records that a sub-source was attempted.
func (o *Outcome) checked(sourceID string) {
	o.Checked = append(o.Checked, sourceID)
}

// succeeded records that a sub-source answered, with or without matches.
func (o *Outcome) succeeded(sourceID string) {
	o.Successful = append(o.Successful, sourceID)
}

// failed records a sub-source failure without aborting the collector.
func (o *Outcome) failed(sourceID string, err error) {
	o.Errors = append(o.Errors, types.SourceError{
		Source:    sourceID,
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
	})
}

// finish sorts the bookkeeping slices for deterministic output.
func (o *Outcome) finish() {
	sort.Strings(o.Checked)
	sort.Strings(o.Successful)
	sort.Slice(o.Errors, func(i, j int) bool { return o.Errors[i].Source < o.Errors[j].Source })
}

// Records returns the number of evidence records in the outcome.
func (o *Outcome) Records() int {
	n := len(o.PEPRecords) + len(o.Articles)
	for _, profiles := range o.Profiles {
		n += len(profiles)
	}
	return n
}

// Apply merges the outcome into the aggregate report.
func (o *Outcome) Apply(report *types.PersonIntelligence) {
	for platform, profiles := range o.Profiles {
		report.SocialProfiles[platform] = append(report.SocialProfiles[platform], profiles...)
	}
	report.PEPRecords = append(report.PEPRecords, o.PEPRecords...)
	report.NewsArticles = append(report.NewsArticles, o.Articles...)
	report.AddSources(o.Checked, o.Successful)
	report.Errors = append(report.Errors, o.Errors...)
}

// Collector is the uniform contract for one source category. Collect never
// fails the run: sub-source errors are carried in the outcome.
type Collector interface {
	Category() types.SourceCategory
	Collect(ctx context.Context, plan *types.SearchStrategy) *Outcome
}

// sourceID builds the canonical sub-source identifier, e.g. "pep_database:ofac".
func sourceID(category types.SourceCategory, name string) string {
	return fmt.Sprintf("%s:%s", category, name)
}

// fetchCached runs one sub-source request through the shared pipeline:
// cache lookup, rate limit, retried fetch, cache write-through. The second
// return value reports whether the payload came from cache.
func (d *Deps) fetchCached(ctx context.Context, query, id string, fn func(ctx context.Context) ([]byte, error)) ([]byte, bool, error) {
	if payload, ok := d.Cache.Get(query, id); ok {
		return payload, true, nil
	}

	if err := d.Limiter.Acquire(ctx, id); err != nil {
		return nil, false, fmt.Errorf("rate limit: %w", err)
	}

	var payload []byte
	err := retry.Do(ctx, d.Retry, func(ctx context.Context) error {
		var err error
		payload, err = fn(ctx)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	d.Cache.Set(query, id, payload, 0)
	return payload, false, nil
}

// Package workflow coordinates a full person intelligence run: strategy
// generation, parallel source collection and analysis, synthesis, and the
// final risk assessment. Runs are asynchronous; callers start a run, poll
// its status, and fetch the report once it reaches a terminal state.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/person-intel/internal/analysis"
	"github.com/jonathan/person-intel/internal/collect"
	"github.com/jonathan/person-intel/internal/llm"
	"github.com/jonathan/person-intel/internal/strategy"
	"github.com/jonathan/person-intel/internal/types"
)

// Status is the lifecycle state of a run.
type Status string

// Run lifecycle states. Completed, failed and cancelled are terminal.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status will never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Stage names the pipeline step a running run is in.
type Stage string

// Pipeline stages in execution order.
const (
	StageStrategy   Stage = "strategy"
	StageCollection Stage = "collection"
	StageSynthesis  Stage = "synthesis"
	StageAssessment Stage = "assessment"
)

// Lookup errors returned by Status, Result and Cancel.
var (
	ErrNotFound    = errors.New("run not found")
	ErrNotFinished = errors.New("run not finished")
	ErrNoReport    = errors.New("run finished without a report")
)

// Options tunes one run. The zero value runs every source category.
type Options struct {
	SkipSocial bool `json:"skip_social,omitempty"`
	SkipPEP    bool `json:"skip_pep,omitempty"`
	SkipMedia  bool `json:"skip_media,omitempty"`
}

// skips reports whether a category is excluded from the run.
func (o Options) skips(category types.SourceCategory) bool {
	switch category {
	case types.CategorySocial:
		return o.SkipSocial
	case types.CategoryPEP:
		return o.SkipPEP
	case types.CategoryMedia:
		return o.SkipMedia
	default:
		return false
	}
}

// Snapshot is a point-in-time copy of a run's state.
type Snapshot struct {
	ID         string    `json:"request_id"`
	Name       string    `json:"name"`
	Status     Status    `json:"status"`
	Stage      Stage     `json:"stage,omitempty"`
	Progress   float64   `json:"progress"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// ReportSaver persists finished reports. Persistence failures degrade to a
// warning; the run still completes.
type ReportSaver interface {
	SaveReport(ctx context.Context, requestID string, report *types.PersonIntelligence) error
}

// Config tunes the coordinator's timeouts and run retention.
type Config struct {
	// StrategyTimeout bounds strategy generation.
	StrategyTimeout time.Duration
	// CollectTimeout bounds collection and analysis per source category.
	CollectTimeout time.Duration
	// SynthesisTimeout bounds summary synthesis.
	SynthesisTimeout time.Duration
	// Retention is how long terminal runs stay queryable.
	Retention time.Duration
	// SweepInterval is how often expired runs are evicted.
	SweepInterval time.Duration
	// OnProgress, when set, is invoked after every state change.
	OnProgress func(Snapshot)
}

// DefaultConfig returns the production coordinator settings.
func DefaultConfig() Config {
	return Config{
		StrategyTimeout:  30 * time.Second,
		CollectTimeout:   2 * time.Minute,
		SynthesisTimeout: time.Minute,
		Retention:        time.Hour,
		SweepInterval:    5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.StrategyTimeout <= 0 {
		c.StrategyTimeout = defaults.StrategyTimeout
	}
	if c.CollectTimeout <= 0 {
		c.CollectTimeout = defaults.CollectTimeout
	}
	if c.SynthesisTimeout <= 0 {
		c.SynthesisTimeout = defaults.SynthesisTimeout
	}
	if c.Retention <= 0 {
		c.Retention = defaults.Retention
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = defaults.SweepInterval
	}
	return c
}

// run is the coordinator's mutable record of one run.
type run struct {
	snapshot  Snapshot
	report    *types.PersonIntelligence
	cancel    context.CancelFunc
	cancelled bool
	done      chan struct{}
}

// Coordinator owns the run registry and drives the pipeline.
type Coordinator struct {
	client     llm.Client
	analyzer   *analysis.Analyzer
	collectors []collect.Collector
	saver      ReportSaver
	config     Config

	mu   sync.RWMutex
	runs map[string]*run

	stopJanitor chan struct{}
	janitorOnce sync.Once
	now         func() time.Time
}

// NewCoordinator wires a coordinator. saver may be nil when persistence is
// disabled.
func NewCoordinator(client llm.Client, collectors []collect.Collector, saver ReportSaver, config Config) *Coordinator {
	c := &Coordinator{
		client:      client,
		analyzer:    analysis.NewAnalyzer(client),
		collectors:  collectors,
		saver:       saver,
		config:      config.withDefaults(),
		runs:        make(map[string]*run),
		stopJanitor: make(chan struct{}),
		now:         time.Now,
	}
	go c.janitor()
	return c
}

// Close stops the retention janitor. Live runs keep executing.
func (c *Coordinator) Close() {
	c.janitorOnce.Do(func() { close(c.stopJanitor) })
}

// Start begins a full run for the subject and returns its request id.
func (c *Coordinator) Start(name string) (string, error) {
	return c.StartWithOptions(name, Options{})
}

// StartWithOptions begins a run limited to the source categories the options
// allow.
func (c *Coordinator) StartWithOptions(name string, opts Options) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("subject name is required")
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	r := &run{
		snapshot: Snapshot{
			ID:        id,
			Name:      name,
			Status:    StatusPending,
			StartedAt: c.now().UTC(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	c.runs[id] = r
	c.mu.Unlock()
	c.notify(r.snapshot)

	go c.execute(ctx, id, name, opts)
	return id, nil
}

// Status returns the current snapshot of a run.
func (c *Coordinator) Status(id string) (Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.runs[id]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return r.snapshot, nil
}

// Result returns the report of a completed run. A live run yields
// ErrNotFinished; failed and cancelled runs yield ErrNoReport.
func (c *Coordinator) Result(id string) (*types.PersonIntelligence, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !r.snapshot.Status.Terminal() {
		return nil, ErrNotFinished
	}
	if r.report == nil {
		return nil, fmt.Errorf("run %s: %w", r.snapshot.Status, ErrNoReport)
	}
	return r.report, nil
}

// Cancel requests cancellation of a live run. Terminal runs are unaffected.
func (c *Coordinator) Cancel(id string) error {
	c.mu.Lock()
	r, ok := c.runs[id]
	if !ok {
		c.mu.Unlock()
		return ErrNotFound
	}
	if r.snapshot.Status.Terminal() {
		c.mu.Unlock()
		return nil
	}
	r.cancelled = true
	c.mu.Unlock()

	r.cancel()
	return nil
}

// Await blocks until the run reaches a terminal state or ctx expires, then
// returns its final snapshot.
func (c *Coordinator) Await(ctx context.Context, id string) (Snapshot, error) {
	c.mu.RLock()
	r, ok := c.runs[id]
	c.mu.RUnlock()
	if !ok {
		return Snapshot{}, ErrNotFound
	}

	select {
	case <-r.done:
		return c.Status(id)
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// execute drives one run through the pipeline.
func (c *Coordinator) execute(ctx context.Context, id, name string, opts Options) {
	c.transition(id, StatusRunning, StageStrategy, 0.05)

	plan, err := c.generateStrategy(ctx, name)
	if err != nil {
		c.finish(ctx, id, nil, err)
		return
	}
	c.transition(id, StatusRunning, StageCollection, 0.15)

	report := types.NewPersonIntelligence(name)
	analyses, unavailable := c.collectAndAnalyze(ctx, id, plan, report, opts)
	if ctx.Err() != nil {
		c.finish(ctx, id, nil, ctx.Err())
		return
	}
	if unavailable {
		c.finish(ctx, id, nil, errors.New("reasoning service unavailable for all analyses"))
		return
	}

	c.transition(id, StatusRunning, StageSynthesis, 0.8)
	report.Summary = c.synthesize(ctx, name, analyses)
	if ctx.Err() != nil {
		c.finish(ctx, id, nil, ctx.Err())
		return
	}

	c.transition(id, StatusRunning, StageAssessment, 0.9)
	verdict := analysis.Assess(report)
	report.RiskLevel = verdict.RiskLevel
	report.ConfidenceScore = verdict.Confidence
	report.RiskJustification = verdict.Justification

	c.finish(ctx, id, report, nil)
}

func (c *Coordinator) generateStrategy(ctx context.Context, name string) (*types.SearchStrategy, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.StrategyTimeout)
	defer cancel()
	return strategy.Generate(ctx, c.client, name)
}

// collectAndAnalyze fans out one goroutine per source category. Each goroutine
// collects and then immediately analyzes its own outcome, so analysis overlaps
// collection still running in sibling categories. The second return reports a
// reasoning-service outage spanning every analysis that had records to work
// with; such a run is escalated to failed rather than completed with
// placeholder prose.
func (c *Coordinator) collectAndAnalyze(ctx context.Context, id string, plan *types.SearchStrategy, report *types.PersonIntelligence, opts Options) (map[types.SourceCategory]string, bool) {
	var active []collect.Collector
	for _, collector := range c.collectors {
		if !opts.skips(collector.Category()) {
			active = append(active, collector)
		}
	}

	analyses := make(map[types.SourceCategory]string, len(active))
	if len(active) == 0 {
		return analyses, false
	}

	step := 0.6 / float64(len(active))
	progress := 0.15

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		attempted int
		degraded  int
	)
	for _, collector := range active {
		wg.Add(1)
		go func() {
			defer wg.Done()

			cctx, cancel := context.WithTimeout(ctx, c.config.CollectTimeout)
			defer cancel()

			outcome := collector.Collect(cctx, plan)
			text, failed := c.analyzer.Analyze(cctx, plan.Name, outcome)

			mu.Lock()
			outcome.Apply(report)
			analyses[outcome.Category] = text
			if outcome.Records() > 0 {
				attempted++
			}
			if failed {
				degraded++
			}
			progress += step
			current := progress
			mu.Unlock()

			c.transition(id, StatusRunning, StageCollection, current)
		}()
	}
	wg.Wait()
	return analyses, attempted > 0 && degraded == attempted
}

func (c *Coordinator) synthesize(ctx context.Context, name string, analyses map[types.SourceCategory]string) string {
	ctx, cancel := context.WithTimeout(ctx, c.config.SynthesisTimeout)
	defer cancel()
	return analysis.Synthesize(ctx, c.client, name, analyses)
}

// finish moves a run to its terminal state and persists the report if a
// saver is configured.
func (c *Coordinator) finish(ctx context.Context, id string, report *types.PersonIntelligence, err error) {
	c.mu.Lock()
	r, ok := c.runs[id]
	if !ok {
		c.mu.Unlock()
		return
	}

	switch {
	case err != nil && (r.cancelled || errors.Is(err, context.Canceled)):
		r.snapshot.Status = StatusCancelled
		r.snapshot.Error = "run cancelled"
	case err != nil:
		r.snapshot.Status = StatusFailed
		r.snapshot.Error = err.Error()
	default:
		r.snapshot.Status = StatusCompleted
		r.snapshot.Progress = 1.0
		r.report = report
	}
	r.snapshot.Stage = ""
	r.snapshot.FinishedAt = c.now().UTC()
	snapshot := r.snapshot
	c.mu.Unlock()

	c.notify(snapshot)

	if snapshot.Status == StatusCompleted && c.saver != nil {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := c.saver.SaveReport(saveCtx, id, report); err != nil {
			log.Printf("workflow: failed to persist report %s: %v", id, err)
		}
	}

	close(r.done)
}

// transition updates a live run's stage and progress. Progress never moves
// backwards and terminal runs are never touched.
func (c *Coordinator) transition(id string, status Status, stage Stage, progress float64) {
	c.mu.Lock()
	r, ok := c.runs[id]
	if !ok || r.snapshot.Status.Terminal() {
		c.mu.Unlock()
		return
	}
	r.snapshot.Status = status
	r.snapshot.Stage = stage
	if progress > r.snapshot.Progress {
		r.snapshot.Progress = progress
	}
	snapshot := r.snapshot
	c.mu.Unlock()

	c.notify(snapshot)
}

func (c *Coordinator) notify(snapshot Snapshot) {
	if c.config.OnProgress != nil {
		c.config.OnProgress(snapshot)
	}
}

// janitor evicts terminal runs past their retention window.
func (c *Coordinator) janitor() {
	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopJanitor:
			return
		}
	}
}

func (c *Coordinator) sweep() int {
	cutoff := c.now().Add(-c.config.Retention)

	c.mu.Lock()
	defer c.mu.Unlock()
	var removed int
	for id, r := range c.runs {
		if r.snapshot.Status.Terminal() && r.snapshot.FinishedAt.Before(cutoff) {
			delete(c.runs, id)
			removed++
		}
	}
	return removed
}

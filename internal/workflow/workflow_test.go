package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/person-intel/internal/collect"
	"github.com/jonathan/person-intel/internal/llm"
	"github.com/jonathan/person-intel/internal/types"
)

const planJSON = `{"name":"John Smith","search_terms":["John Smith"],"platforms":["twitter"]}`

// stubLLM answers strategy calls with a fixed plan and narrative calls with
// fixed prose. textErrFor, when set, limits textErr to prompts containing
// that substring.
type stubLLM struct {
	narrative  string
	jsonErr    error
	textErr    error
	textErrFor string
}

func (s *stubLLM) GenerateContent(_ context.Context, prompt string, _ llm.ModelTier) (string, error) {
	if s.textErr != nil && (s.textErrFor == "" || strings.Contains(prompt, s.textErrFor)) {
		return "", s.textErr
	}
	return s.narrative, nil
}

func (s *stubLLM) GenerateJSON(context.Context, string, llm.ModelTier) (string, error) {
	if s.jsonErr != nil {
		return "", s.jsonErr
	}
	return planJSON, nil
}

func (s *stubLLM) Close() error { return nil }

// stubCollector returns a canned outcome, optionally stalling until the
// context is cancelled.
type stubCollector struct {
	category types.SourceCategory
	outcome  *collect.Outcome
	delay    time.Duration
}

func (s *stubCollector) Category() types.SourceCategory { return s.category }

func (s *stubCollector) Collect(ctx context.Context, _ *types.SearchStrategy) *collect.Outcome {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return &collect.Outcome{Category: s.category}
		}
	}
	if s.outcome != nil {
		return s.outcome
	}
	return &collect.Outcome{Category: s.category}
}

func sanctionedPEPOutcome() *collect.Outcome {
	return &collect.Outcome{
		Category: types.CategoryPEP,
		PEPRecords: []types.PEPRecord{{
			Source:    "ofac",
			Name:      "John Smith",
			Sanctions: []types.Sanction{{Name: "SDN", Authority: "OFAC"}},
		}},
		Checked:    []string{"pep_database:ofac"},
		Successful: []string{"pep_database:ofac"},
	}
}

func mediaOutcome() *collect.Outcome {
	articles := make([]types.NewsArticle, 3)
	for i := range articles {
		articles[i] = types.NewsArticle{
			Source:    "gnews",
			Title:     "coverage",
			Sentiment: types.SentimentNegative,
		}
	}
	return &collect.Outcome{
		Category:   types.CategoryMedia,
		Articles:   articles,
		Checked:    []string{"adverse_media:gnews"},
		Successful: []string{"adverse_media:gnews"},
	}
}

func failedPEPOutcome() *collect.Outcome {
	return &collect.Outcome{
		Category: types.CategoryPEP,
		Checked:  []string{"pep_database:ofac"},
		Errors: []types.SourceError{{
			Source:  "pep_database:ofac",
			Message: "registry timeout",
		}},
	}
}

func newTestCoordinator(client llm.Client, collectors []collect.Collector) *Coordinator {
	c := NewCoordinator(client, collectors, nil, Config{
		StrategyTimeout:  time.Second,
		CollectTimeout:   time.Second,
		SynthesisTimeout: time.Second,
	})
	return c
}

func TestRunCompletesWithRiskVerdict(t *testing.T) {
	c := newTestCoordinator(&stubLLM{narrative: "Elevated risk narrative."}, []collect.Collector{
		&stubCollector{category: types.CategoryPEP, outcome: sanctionedPEPOutcome()},
		&stubCollector{category: types.CategoryMedia, outcome: mediaOutcome()},
	})
	defer c.Close()

	id, err := c.Start("John Smith")
	require.NoError(t, err)

	snapshot, err := c.Await(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, snapshot.Status)
	assert.Equal(t, 1.0, snapshot.Progress)
	assert.False(t, snapshot.FinishedAt.IsZero())

	report, err := c.Result(id)
	require.NoError(t, err)
	assert.Equal(t, types.RiskCritical, report.RiskLevel)
	assert.Contains(t, report.RiskJustification, "ofac")
	assert.Greater(t, report.ConfidenceScore, 0.0)
	assert.Equal(t, "Elevated risk narrative.", report.Summary)
	assert.Len(t, report.PEPRecords, 1)
	assert.Len(t, report.NewsArticles, 3)
	assert.ElementsMatch(t, []string{"adverse_media:gnews", "pep_database:ofac"}, report.SourcesSuccessful)
}

func TestRunToleratesSourceFailure(t *testing.T) {
	c := newTestCoordinator(&stubLLM{narrative: "narrative"}, []collect.Collector{
		&stubCollector{category: types.CategoryPEP, outcome: failedPEPOutcome()},
		&stubCollector{category: types.CategoryMedia, outcome: mediaOutcome()},
	})
	defer c.Close()

	id, err := c.Start("John Smith")
	require.NoError(t, err)

	snapshot, err := c.Await(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, snapshot.Status)

	report, err := c.Result(id)
	require.NoError(t, err)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "pep_database:ofac", report.Errors[0].Source)
	assert.Contains(t, report.SourcesChecked, "pep_database:ofac")
	assert.NotContains(t, report.SourcesSuccessful, "pep_database:ofac")
}

func TestRunCompletesWithZeroConfidenceWhenAllSourcesFail(t *testing.T) {
	dead := &collect.Outcome{
		Category: types.CategoryPEP,
		Checked:  []string{"pep_database:ofac"},
		Errors:   []types.SourceError{{Source: "pep_database:ofac", Message: "down"}},
	}
	c := newTestCoordinator(&stubLLM{narrative: "narrative"}, []collect.Collector{
		&stubCollector{category: types.CategoryPEP, outcome: dead},
	})
	defer c.Close()

	id, err := c.Start("John Smith")
	require.NoError(t, err)

	snapshot, err := c.Await(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, snapshot.Status)

	report, err := c.Result(id)
	require.NoError(t, err)
	assert.Zero(t, report.ConfidenceScore)
	assert.Equal(t, types.RiskUnknown, report.RiskLevel)
}

func TestSkippedCategoryIsNotCollected(t *testing.T) {
	c := newTestCoordinator(&stubLLM{narrative: "narrative"}, []collect.Collector{
		&stubCollector{category: types.CategoryPEP, outcome: sanctionedPEPOutcome()},
		&stubCollector{category: types.CategoryMedia, outcome: mediaOutcome()},
	})
	defer c.Close()

	id, err := c.StartWithOptions("John Smith", Options{SkipPEP: true})
	require.NoError(t, err)

	snapshot, err := c.Await(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, snapshot.Status)

	report, err := c.Result(id)
	require.NoError(t, err)
	assert.Empty(t, report.PEPRecords)
	assert.NotContains(t, report.SourcesChecked, "pep_database:ofac")
	assert.Len(t, report.NewsArticles, 3)
}

func TestRunFailsWhenEveryAnalysisDegrades(t *testing.T) {
	c := newTestCoordinator(&stubLLM{textErr: errors.New("backend down")}, []collect.Collector{
		&stubCollector{category: types.CategoryPEP, outcome: sanctionedPEPOutcome()},
		&stubCollector{category: types.CategoryMedia, outcome: mediaOutcome()},
	})
	defer c.Close()

	id, err := c.Start("John Smith")
	require.NoError(t, err)

	snapshot, err := c.Await(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, snapshot.Status)
	assert.Contains(t, snapshot.Error, "reasoning service unavailable")

	_, err = c.Result(id)
	assert.ErrorIs(t, err, ErrNoReport)
}

func TestRunCompletesWhenOnlySomeAnalysesDegrade(t *testing.T) {
	// The failure is keyed to the PEP prompt; the media analysis and the
	// synthesis still succeed.
	client := &stubLLM{narrative: "narrative", textErr: errors.New("backend down"), textErrFor: "SDN"}
	c := newTestCoordinator(client, []collect.Collector{
		&stubCollector{category: types.CategoryPEP, outcome: sanctionedPEPOutcome()},
		&stubCollector{category: types.CategoryMedia, outcome: mediaOutcome()},
	})
	defer c.Close()

	id, err := c.Start("John Smith")
	require.NoError(t, err)

	snapshot, err := c.Await(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, snapshot.Status)

	report, err := c.Result(id)
	require.NoError(t, err)
	assert.Len(t, report.PEPRecords, 1)
}

func TestStartRejectsBlankName(t *testing.T) {
	c := newTestCoordinator(&stubLLM{}, nil)
	defer c.Close()

	_, err := c.Start("   ")
	assert.Error(t, err)
}

func TestStrategyFailureIsTerminal(t *testing.T) {
	c := newTestCoordinator(&stubLLM{jsonErr: errors.New("backend down")}, []collect.Collector{
		&stubCollector{category: types.CategoryPEP, outcome: sanctionedPEPOutcome()},
	})
	defer c.Close()

	id, err := c.Start("John Smith")
	require.NoError(t, err)

	snapshot, err := c.Await(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, snapshot.Status)
	assert.Contains(t, snapshot.Error, "reasoning service unavailable")

	_, err = c.Result(id)
	assert.ErrorIs(t, err, ErrNoReport)
}

func TestCancelMidCollection(t *testing.T) {
	c := newTestCoordinator(&stubLLM{narrative: "narrative"}, []collect.Collector{
		&stubCollector{category: types.CategoryPEP, delay: 10 * time.Second},
	})
	defer c.Close()

	id, err := c.Start("John Smith")
	require.NoError(t, err)

	// Let the run get past strategy generation before cancelling.
	require.Eventually(t, func() bool {
		snapshot, err := c.Status(id)
		return err == nil && snapshot.Status == StatusRunning
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, c.Cancel(id))

	snapshot, err := c.Await(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, snapshot.Status)

	_, err = c.Result(id)
	assert.ErrorIs(t, err, ErrNoReport)
}

func TestCancelTerminalRunIsNoop(t *testing.T) {
	c := newTestCoordinator(&stubLLM{narrative: "narrative"}, nil)
	defer c.Close()

	id, err := c.Start("John Smith")
	require.NoError(t, err)
	snapshot, err := c.Await(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, snapshot.Status)

	assert.NoError(t, c.Cancel(id))
	after, err := c.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, after.Status)
}

func TestStatusUnknownRun(t *testing.T) {
	c := newTestCoordinator(&stubLLM{}, nil)
	defer c.Close()

	_, err := c.Status("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Result("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, c.Cancel("nope"), ErrNotFound)
}

func TestProgressNeverMovesBackwards(t *testing.T) {
	var (
		mu        sync.Mutex
		snapshots []Snapshot
	)
	c := NewCoordinator(&stubLLM{narrative: "narrative"}, []collect.Collector{
		&stubCollector{category: types.CategoryPEP, outcome: sanctionedPEPOutcome()},
		&stubCollector{category: types.CategoryMedia, outcome: mediaOutcome()},
	}, nil, Config{
		StrategyTimeout:  time.Second,
		CollectTimeout:   time.Second,
		SynthesisTimeout: time.Second,
		OnProgress: func(s Snapshot) {
			mu.Lock()
			snapshots = append(snapshots, s)
			mu.Unlock()
		},
	})
	defer c.Close()

	id, err := c.Start("John Smith")
	require.NoError(t, err)
	_, err = c.Await(context.Background(), id)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, snapshots)
	for i := 1; i < len(snapshots); i++ {
		assert.GreaterOrEqual(t, snapshots[i].Progress, snapshots[i-1].Progress)
	}
	assert.Equal(t, 1.0, snapshots[len(snapshots)-1].Progress)
}

func TestSweepEvictsExpiredRuns(t *testing.T) {
	c := newTestCoordinator(&stubLLM{narrative: "narrative"}, nil)
	defer c.Close()

	id, err := c.Start("John Smith")
	require.NoError(t, err)
	_, err = c.Await(context.Background(), id)
	require.NoError(t, err)

	// Still fresh: nothing to evict.
	assert.Zero(t, c.sweep())

	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.Equal(t, 1, c.sweep())

	_, err = c.Status(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

// savedReport captures persistence calls.
type capturingSaver struct {
	mu      sync.Mutex
	reports map[string]*types.PersonIntelligence
}

func (s *capturingSaver) SaveReport(_ context.Context, requestID string, report *types.PersonIntelligence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reports == nil {
		s.reports = make(map[string]*types.PersonIntelligence)
	}
	s.reports[requestID] = report
	return nil
}

func TestCompletedRunIsPersisted(t *testing.T) {
	saver := &capturingSaver{}
	c := NewCoordinator(&stubLLM{narrative: "narrative"}, []collect.Collector{
		&stubCollector{category: types.CategoryPEP, outcome: sanctionedPEPOutcome()},
	}, saver, Config{StrategyTimeout: time.Second, CollectTimeout: time.Second, SynthesisTimeout: time.Second})
	defer c.Close()

	id, err := c.Start("John Smith")
	require.NoError(t, err)
	_, err = c.Await(context.Background(), id)
	require.NoError(t, err)

	saver.mu.Lock()
	defer saver.mu.Unlock()
	require.Contains(t, saver.reports, id)
	assert.Equal(t, "John Smith", saver.reports[id].Name)
}

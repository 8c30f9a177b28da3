package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/person-intel/internal/collect"
	"github.com/jonathan/person-intel/internal/llm"
	"github.com/jonathan/person-intel/internal/types"
)

type stubClient struct {
	response string
	err      error
	prompts  []string
}

func (s *stubClient) GenerateContent(_ context.Context, prompt string, _ llm.ModelTier) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.response, s.err
}

func (s *stubClient) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	return s.GenerateContent(ctx, prompt, tier)
}

func (s *stubClient) Close() error { return nil }

func pepOutcome() *collect.Outcome {
	return &collect.Outcome{
		Category: types.CategoryPEP,
		PEPRecords: []types.PEPRecord{
			{Source: "ofac", Name: "John Smith", Sanctions: []types.Sanction{{Name: "SDN"}}},
		},
		Checked:    []string{"pep_database:ofac"},
		Successful: []string{"pep_database:ofac"},
	}
}

func TestAnalyzeSendsRecordsToModel(t *testing.T) {
	client := &stubClient{response: "The subject appears on the SDN list."}
	analyzer := NewAnalyzer(client)

	text, failed := analyzer.Analyze(context.Background(), "John Smith", pepOutcome())

	assert.Equal(t, "The subject appears on the SDN list.", text)
	assert.False(t, failed)
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "John Smith")
	assert.Contains(t, client.prompts[0], "SDN")
}

func TestAnalyzeSkipsModelForEmptyOutcome(t *testing.T) {
	client := &stubClient{response: "should not be used"}
	analyzer := NewAnalyzer(client)

	outcome := &collect.Outcome{Category: types.CategoryMedia}
	text, failed := analyzer.Analyze(context.Background(), "John Smith", outcome)

	assert.Equal(t, "No media coverage records were found for John Smith.", text)
	assert.False(t, failed, "no-data is not a reasoning failure")
	assert.Empty(t, client.prompts)
}

func TestAnalyzeDegradesOnModelFailure(t *testing.T) {
	client := &stubClient{err: errors.New("backend down")}
	analyzer := NewAnalyzer(client)

	text, failed := analyzer.Analyze(context.Background(), "John Smith", pepOutcome())

	assert.Contains(t, text, "unavailable")
	assert.Contains(t, text, "1 record(s)")
	assert.True(t, failed)
}

func TestSynthesizeUsesModelNarrative(t *testing.T) {
	client := &stubClient{response: "Overall the subject presents elevated risk."}

	summary := Synthesize(context.Background(), client, "John Smith", map[types.SourceCategory]string{
		types.CategorySocial: "One verified profile.",
		types.CategoryPEP:    "One sanctioned match.",
		types.CategoryMedia:  "Negative coverage.",
	})

	assert.Equal(t, "Overall the subject presents elevated risk.", summary)
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "One sanctioned match.")
}

func TestSynthesizeFallsBackToSections(t *testing.T) {
	client := &stubClient{err: errors.New("backend down")}

	summary := Synthesize(context.Background(), client, "John Smith", map[types.SourceCategory]string{
		types.CategoryPEP:   "One sanctioned match.",
		types.CategoryMedia: "Negative coverage.",
	})

	assert.Contains(t, summary, "Political Exposure: One sanctioned match.")
	assert.Contains(t, summary, "Media Coverage: Negative coverage.")
	assert.NotContains(t, summary, "Social Media")
}

func TestSynthesizeFallbackWithNothingToSay(t *testing.T) {
	client := &stubClient{err: errors.New("backend down")}

	summary := Synthesize(context.Background(), client, "John Smith", nil)
	assert.Equal(t, "No findings were available for synthesis.", summary)
}

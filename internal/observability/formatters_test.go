package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/person-intel/internal/types"
	"github.com/jonathan/person-intel/internal/workflow"
)

func TestPrintStrategy(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf)

	printer.PrintStrategy(&types.SearchStrategy{
		Name:        "John Smith",
		SearchTerms: []string{"John Smith", "John Smith CEO"},
		Platforms:   []string{"twitter", "linkedin"},
		TimePeriod:  "1 year",
	})

	out := buf.String()
	assert.Contains(t, out, "SEARCH STRATEGY")
	assert.Contains(t, out, "John Smith")
	assert.Contains(t, out, "twitter, linkedin")
	assert.Contains(t, out, "1 year")
}

func TestPrintStrategyNilIsSilent(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintStrategy(nil)
	assert.Empty(t, buf.String())
}

func TestPrintProgress(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf)

	printer.PrintProgress(workflow.Snapshot{Status: workflow.StatusRunning, Stage: workflow.StageCollection, Progress: 0.35})
	assert.Equal(t, "[ 35%] collection\n", buf.String())
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf)

	report := types.NewPersonIntelligence("John Smith")
	report.RiskLevel = types.RiskHigh
	report.ConfidenceScore = 0.62
	report.AddSources([]string{"pep_database:ofac", "adverse_media:gnews"}, []string{"pep_database:ofac"})
	report.RecordError("adverse_media:gnews", "timeout")

	printer.PrintReport(report)

	out := buf.String()
	assert.Contains(t, out, "INTELLIGENCE REPORT: John Smith")
	assert.Contains(t, out, "HIGH")
	assert.Contains(t, out, "1/2 successful")
	assert.Contains(t, out, "adverse_media:gnews: timeout")
}

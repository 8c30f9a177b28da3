// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/person-intel/internal/types"
	"github.com/jonathan/person-intel/internal/workflow"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintStrategy outputs a human-readable summary of the search plan.
func (p *Printer) PrintStrategy(plan *types.SearchStrategy) {
	if plan == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Subject:    %s\n", plan.Name))
	if len(plan.NameVariations) > 0 {
		sb.WriteString(fmt.Sprintf("Variations: %s\n", strings.Join(truncateList(plan.NameVariations), ", ")))
	}
	sb.WriteString(fmt.Sprintf("Terms:      %s\n", strings.Join(truncateList(plan.SearchTerms), ", ")))
	sb.WriteString(fmt.Sprintf("Platforms:  %s", strings.Join(plan.Platforms, ", ")))
	if plan.TimePeriod != "" {
		sb.WriteString(fmt.Sprintf("\nPeriod:     %s", plan.TimePeriod))
	}

	p.printBox("SEARCH STRATEGY", sb.String())
}

// PrintProgress outputs a single progress line for a run snapshot.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(snapshot workflow.Snapshot) {
	stage := string(snapshot.Stage)
	if stage == "" {
		stage = string(snapshot.Status)
	}
	fmt.Fprintf(p.out, "[%3.0f%%] %s\n", snapshot.Progress*100, stage)
}

// PrintReport outputs a human-readable summary of the finished report.
func (p *Printer) PrintReport(report *types.PersonIntelligence) {
	if report == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Risk Level:  %s\n", strings.ToUpper(string(report.RiskLevel))))
	sb.WriteString(fmt.Sprintf("Confidence:  %.2f\n", report.ConfidenceScore))
	sb.WriteString(fmt.Sprintf("Records:     %d\n", report.TotalRecords()))
	sb.WriteString(fmt.Sprintf("Sources:     %d/%d successful",
		len(report.SourcesSuccessful), len(report.SourcesChecked)))

	if len(report.Errors) > 0 {
		sb.WriteString("\n\nSource errors:")
		for i, sourceErr := range report.Errors {
			if i == maxItemsToShow {
				sb.WriteString(fmt.Sprintf("\n  ... and %d more", len(report.Errors)-maxItemsToShow))
				break
			}
			sb.WriteString(fmt.Sprintf("\n  %s: %s", sourceErr.Source, sourceErr.Message))
		}
	}

	p.printBox(fmt.Sprintf("INTELLIGENCE REPORT: %s", report.Name), sb.String())
}

// truncateList limits a list to maxItemsToShow entries.
func truncateList(items []string) []string {
	if len(items) <= maxItemsToShow {
		return items
	}
	out := make([]string, maxItemsToShow, maxItemsToShow+1)
	copy(out, items[:maxItemsToShow])
	return append(out, fmt.Sprintf("(+%d more)", len(items)-maxItemsToShow))
}

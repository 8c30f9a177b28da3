package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// SourceError records one non-terminal failure during a run.
type SourceError struct {
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// PersonIntelligence is the aggregate result of one intelligence run.
// It is mutated only by the workflow coordinator while the run is live and
// becomes read-only once the run reaches a terminal state.
type PersonIntelligence struct {
	Name              string                     `json:"name"`
	QueryTime         time.Time                  `json:"query_time"`
	SocialProfiles    map[string][]SocialProfile `json:"social_media_profiles"`
	PEPRecords        []PEPRecord                `json:"pep_records"`
	NewsArticles      []NewsArticle              `json:"news_articles"`
	Summary           string                     `json:"summary"`
	RiskLevel         RiskLevel                  `json:"risk_level"`
	ConfidenceScore   float64                    `json:"confidence_score"`
	RiskJustification string                     `json:"risk_justification,omitempty"`
	SourcesChecked    []string                   `json:"sources_checked"`
	SourcesSuccessful []string                   `json:"sources_successful"`
	Errors            []SourceError              `json:"errors"`
}

// NewPersonIntelligence returns an empty report for the given subject.
func NewPersonIntelligence(name string) *PersonIntelligence {
	return &PersonIntelligence{
		Name:              name,
		QueryTime:         time.Now().UTC(),
		SocialProfiles:    make(map[string][]SocialProfile),
		PEPRecords:        []PEPRecord{},
		NewsArticles:      []NewsArticle{},
		RiskLevel:         RiskUnknown,
		SourcesChecked:    []string{},
		SourcesSuccessful: []string{},
		Errors:            []SourceError{},
	}
}

// AddSources merges checked and successful source ids, keeping both slices
// sorted and duplicate-free. Every successful source is also checked.
func (p *PersonIntelligence) AddSources(checked, successful []string) {
	p.SourcesChecked = mergeSorted(p.SourcesChecked, checked)
	p.SourcesChecked = mergeSorted(p.SourcesChecked, successful)
	p.SourcesSuccessful = mergeSorted(p.SourcesSuccessful, successful)
}

// RecordError appends a non-terminal failure.
func (p *PersonIntelligence) RecordError(source, message string) {
	p.Errors = append(p.Errors, SourceError{
		Source:    source,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// TotalRecords returns the count of evidence records across all categories.
func (p *PersonIntelligence) TotalRecords() int {
	n := len(p.PEPRecords) + len(p.NewsArticles)
	for _, profiles := range p.SocialProfiles {
		n += len(profiles)
	}
	return n
}

// ToJSON renders the report as indented JSON.
func (p *PersonIntelligence) ToJSON() (string, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	return string(data), nil
}

// ToMarkdown renders the report as a human-readable markdown document.
// Both renderings derive from the in-memory object with no further I/O.
func (p *PersonIntelligence) ToMarkdown() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Intelligence Report: %s\n\n", p.Name)
	fmt.Fprintf(&sb, "**Generated:** %s\n", p.QueryTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "**Risk Level:** %s\n", strings.ToUpper(string(p.RiskLevel)))
	fmt.Fprintf(&sb, "**Confidence Score:** %.2f/1.0\n\n", p.ConfidenceScore)

	fmt.Fprintf(&sb, "## Summary\n\n%s\n\n", p.Summary)

	if p.RiskJustification != "" {
		fmt.Fprintf(&sb, "## Risk Assessment\n\n%s\n\n", p.RiskJustification)
	}

	if len(p.SocialProfiles) > 0 {
		sb.WriteString("## Social Media Presence\n\n")
		platforms := make([]string, 0, len(p.SocialProfiles))
		for platform := range p.SocialProfiles {
			platforms = append(platforms, platform)
		}
		sort.Strings(platforms)
		for _, platform := range platforms {
			fmt.Fprintf(&sb, "### %s\n\n", titleCase(platform))
			for _, profile := range p.SocialProfiles[platform] {
				fmt.Fprintf(&sb, "* **Username:** %s\n", profile.Username)
				if profile.DisplayName != "" {
					fmt.Fprintf(&sb, "* **Display Name:** %s\n", profile.DisplayName)
				}
				if profile.URL != "" {
					fmt.Fprintf(&sb, "* **URL:** %s\n", profile.URL)
				}
				if profile.FollowerCount > 0 {
					fmt.Fprintf(&sb, "* **Followers:** %d\n", profile.FollowerCount)
				}
				if profile.IsVerified {
					sb.WriteString("* **Verified Account:** Yes\n")
				}
				if profile.Bio != "" {
					fmt.Fprintf(&sb, "* **Bio:** %s\n", profile.Bio)
				}
				sb.WriteString("\n")
			}
		}
	}

	if len(p.PEPRecords) > 0 {
		sb.WriteString("## Political Exposure & Sanctions\n\n")
		for _, record := range p.PEPRecords {
			fmt.Fprintf(&sb, "### %s\n\n", record.Source)
			fmt.Fprintf(&sb, "* **Name:** %s\n", record.Name)
			if record.Position != "" {
				fmt.Fprintf(&sb, "* **Position:** %s\n", record.Position)
			}
			if record.Organization != "" {
				fmt.Fprintf(&sb, "* **Organization:** %s\n", record.Organization)
			}
			if record.Country != "" {
				fmt.Fprintf(&sb, "* **Country:** %s\n", record.Country)
			}
			if len(record.Sanctions) > 0 {
				names := make([]string, len(record.Sanctions))
				for i, s := range record.Sanctions {
					names[i] = s.Name
				}
				fmt.Fprintf(&sb, "* **Sanctions:** %s\n", strings.Join(names, ", "))
			}
			if len(record.Watchlists) > 0 {
				fmt.Fprintf(&sb, "* **Watchlists:** %s\n", strings.Join(record.Watchlists, ", "))
			}
			if record.URL != "" {
				fmt.Fprintf(&sb, "* **Source URL:** %s\n", record.URL)
			}
			sb.WriteString("\n")
		}
	}

	if len(p.NewsArticles) > 0 {
		sb.WriteString("## Media Coverage\n\n")
		articles := make([]NewsArticle, len(p.NewsArticles))
		copy(articles, p.NewsArticles)
		sort.SliceStable(articles, func(i, j int) bool {
			return articles[i].PublishedDate.After(articles[j].PublishedDate)
		})
		for _, article := range articles {
			fmt.Fprintf(&sb, "### %s\n\n", article.Title)
			fmt.Fprintf(&sb, "* **Source:** %s\n", article.Source)
			if !article.PublishedDate.IsZero() {
				fmt.Fprintf(&sb, "* **Date:** %s\n", article.PublishedDate.Format("2006-01-02"))
			}
			if len(article.Authors) > 0 {
				fmt.Fprintf(&sb, "* **Authors:** %s\n", strings.Join(article.Authors, ", "))
			}
			if article.Sentiment != "" {
				fmt.Fprintf(&sb, "* **Sentiment:** %s\n", article.Sentiment)
			}
			if article.Summary != "" {
				fmt.Fprintf(&sb, "* **Summary:** %s\n", article.Summary)
			}
			fmt.Fprintf(&sb, "* **URL:** %s\n\n", article.URL)
		}
	}

	sb.WriteString("## Sources\n\n")
	fmt.Fprintf(&sb, "* **Sources Checked:** %d\n", len(p.SourcesChecked))
	fmt.Fprintf(&sb, "* **Successful Sources:** %d\n\n", len(p.SourcesSuccessful))

	if len(p.Errors) > 0 {
		sb.WriteString("## Errors\n\n")
		for _, e := range p.Errors {
			fmt.Fprintf(&sb, "* **%s:** %s\n", e.Source, e.Message)
		}
	}

	return sb.String()
}

// mergeSorted merges additions into a sorted, duplicate-free slice.
func mergeSorted(existing, additions []string) []string {
	seen := make(map[string]bool, len(existing)+len(additions))
	for _, s := range existing {
		seen[s] = true
	}
	out := existing
	for _, s := range additions {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

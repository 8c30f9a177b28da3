// Package types defines the shared data model for person intelligence
// gathering: evidence records per source category, the search strategy,
// and the aggregate PersonIntelligence report.
package types

// RiskLevel is the ordered risk classification assigned to a completed report.
type RiskLevel string

const (
	// RiskUnknown means no assessment could be made.
	RiskUnknown RiskLevel = "unknown"
	// RiskLow indicates evidence was found but nothing adverse.
	RiskLow RiskLevel = "low"
	// RiskMedium indicates political exposure or repeated adverse mentions.
	RiskMedium RiskLevel = "medium"
	// RiskHigh indicates significant political exposure combined with adverse findings.
	RiskHigh RiskLevel = "high"
	// RiskCritical indicates sanctions or watchlist presence.
	RiskCritical RiskLevel = "critical"
)

// riskOrder maps levels to their ordinal position for comparisons.
var riskOrder = map[RiskLevel]int{
	RiskUnknown:  0,
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// AtLeast reports whether r is at or above the given level.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return riskOrder[r] >= riskOrder[other]
}

// Valid reports whether r is a recognized risk level.
func (r RiskLevel) Valid() bool {
	_, ok := riskOrder[r]
	return ok
}

// Sentiment classifies the tone of a news article toward the subject.
type Sentiment string

// Sentiment values, from benign to most adverse.
const (
	SentimentPositive     Sentiment = "positive"
	SentimentNeutral      Sentiment = "neutral"
	SentimentNegative     Sentiment = "negative"
	SentimentVeryNegative Sentiment = "very_negative"
)

// Negative reports whether the sentiment counts as adverse coverage.
func (s Sentiment) Negative() bool {
	return s == SentimentNegative || s == SentimentVeryNegative
}

// SourceCategory identifies which collector a source belongs to.
type SourceCategory string

// Source categories.
const (
	CategorySocial SourceCategory = "social_media"
	CategoryPEP    SourceCategory = "pep_database"
	CategoryMedia  SourceCategory = "adverse_media"
)

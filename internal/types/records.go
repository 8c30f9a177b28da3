package types

import "time"

// SocialProfile is one social media profile matched to the subject.
// Field names are a fixed contract consumed by downstream report renderers.
type SocialProfile struct {
	Platform       string    `json:"platform"`
	Username       string    `json:"username"`
	URL            string    `json:"url,omitempty"`
	DisplayName    string    `json:"display_name,omitempty"`
	Bio            string    `json:"bio,omitempty"`
	FollowerCount  int       `json:"follower_count,omitempty"`
	FollowingCount int       `json:"following_count,omitempty"`
	PostCount      int       `json:"post_count,omitempty"`
	IsVerified     bool      `json:"is_verified"`
	Location       string    `json:"location,omitempty"`
	JoinedDate     time.Time `json:"joined_date,omitzero"`
	RelevanceScore float64   `json:"relevance_score"`
}

// Sanction is one sanctions program entry attached to a PEP record.
type Sanction struct {
	Name      string `json:"name"`
	Authority string `json:"authority,omitempty"`
	Program   string `json:"program,omitempty"`
	StartDate string `json:"start_date,omitempty"`
}

// PEPRecord is one politically-exposed-person registry match.
type PEPRecord struct {
	Source          string     `json:"source"`
	Name            string     `json:"name"`
	URL             string     `json:"url,omitempty"`
	Position        string     `json:"position,omitempty"`
	Organization    string     `json:"organization,omitempty"`
	Country         string     `json:"country,omitempty"`
	IsActive        bool       `json:"is_active"`
	Sanctions       []Sanction `json:"sanctions,omitempty"`
	Watchlists      []string   `json:"watchlists,omitempty"`
	RiskLevel       RiskLevel  `json:"risk_level,omitempty"`
	LastUpdated     time.Time  `json:"last_updated,omitzero"`
	SimilarityScore float64    `json:"similarity_score"`
}

// Sanctioned reports whether the record carries any sanction or watchlist entry.
func (r PEPRecord) Sanctioned() bool {
	return len(r.Sanctions) > 0 || len(r.Watchlists) > 0
}

// Entity is a named entity extracted from an article.
type Entity struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// NewsArticle is one media mention of the subject.
type NewsArticle struct {
	Source         string    `json:"source"`
	Title          string    `json:"title"`
	URL            string    `json:"url"`
	PublishedDate  time.Time `json:"published_date,omitzero"`
	Authors        []string  `json:"authors,omitempty"`
	Summary        string    `json:"summary,omitempty"`
	Sentiment      Sentiment `json:"sentiment,omitempty"`
	Entities       []Entity  `json:"entities,omitempty"`
	Keywords       []string  `json:"keywords,omitempty"`
	Language       string    `json:"language,omitempty"`
	RelevanceScore float64   `json:"relevance_score"`
}

package types

// SearchStrategy is the derived query plan produced before collection starts.
// It is immutable once produced; collectors read it but never modify it.
type SearchStrategy struct {
	Name           string   `json:"name"`
	NameVariations []string `json:"name_variations"`
	SearchTerms    []string `json:"search_terms"`
	Platforms      []string `json:"platforms"`
	Regions        []string `json:"regions,omitempty"`
	TimePeriod     string   `json:"time_period,omitempty"`
}

// DefaultStrategy returns the fallback plan used when strategy generation
// yields unusable output: search the bare name on the default platforms.
func DefaultStrategy(name string) *SearchStrategy {
	return &SearchStrategy{
		Name:           name,
		NameVariations: []string{},
		SearchTerms:    []string{name},
		Platforms:      []string{"twitter", "linkedin", "facebook"},
		TimePeriod:     "1 year",
	}
}

// Queries returns the search terms to run, always including the subject name.
func (s *SearchStrategy) Queries() []string {
	if len(s.SearchTerms) == 0 {
		return []string{s.Name}
	}
	return s.SearchTerms
}

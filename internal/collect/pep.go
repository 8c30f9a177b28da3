package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/person-intel/internal/types"
)

// PEPConfig configures the political-exposure collector. Every registry
// endpoint is overridable so deployments can pin mirrors.
type PEPConfig struct {
	OpenSanctionsURL string
	OFACURL          string
	UNSanctionsURL   string
	EUSanctionsURL   string
	// APIKeys is keyed by registry name, e.g. "opensanctions".
	APIKeys map[string]string
	// MinSimilarity drops registry matches below this name score.
	MinSimilarity float64
}

// DefaultPEPConfig returns the production registry endpoints.
func DefaultPEPConfig() PEPConfig {
	return PEPConfig{
		OpenSanctionsURL: "https://api.opensanctions.org/search/default",
		OFACURL:          "https://api.trade.gov/consolidated_screening_list/search",
		UNSanctionsURL:   "https://scsanctions.un.org/resources/v1/search",
		EUSanctionsURL:   "https://webgate.ec.europa.eu/fsd/fsf/public/api/search",
		MinSimilarity:    0.5,
	}
}

// PEPCollector checks sanctions and politically-exposed-person registries.
type PEPCollector struct {
	deps   *Deps
	config PEPConfig
}

// NewPEPCollector creates a political-exposure collector.
func NewPEPCollector(deps *Deps, config PEPConfig) *PEPCollector {
	defaults := DefaultPEPConfig()
	if config.OpenSanctionsURL == "" {
		config.OpenSanctionsURL = defaults.OpenSanctionsURL
	}
	if config.OFACURL == "" {
		config.OFACURL = defaults.OFACURL
	}
	if config.UNSanctionsURL == "" {
		config.UNSanctionsURL = defaults.UNSanctionsURL
	}
	if config.EUSanctionsURL == "" {
		config.EUSanctionsURL = defaults.EUSanctionsURL
	}
	if config.MinSimilarity == 0 {
		config.MinSimilarity = defaults.MinSimilarity
	}
	return &PEPCollector{deps: deps, config: config}
}

func (c *PEPCollector) Category() types.SourceCategory { return types.CategoryPEP }

// registry is one PEP sub-source: its endpoint plus a payload parser.
type registry struct {
	name  string
	url   string
	parse func(subject string, payload []byte) ([]types.PEPRecord, error)
}

func (c *PEPCollector) registries() []registry {
	return []registry{
		{name: "opensanctions", url: c.config.OpenSanctionsURL, parse: parseOpenSanctions},
		{name: "ofac", url: c.config.OFACURL, parse: parseOFAC},
		{name: "un_sanctions", url: c.config.UNSanctionsURL, parse: parseConsolidated("un_sanctions", "UN Consolidated List")},
		{name: "eu_sanctions", url: c.config.EUSanctionsURL, parse: parseConsolidated("eu_sanctions", "EU Financial Sanctions")},
	}
}

// Collect queries every registry in parallel and keeps the matches whose
// name similarity clears the threshold.
func (c *PEPCollector) Collect(ctx context.Context, plan *types.SearchStrategy) *Outcome {
	outcome := newOutcome(c.Category())

	var mu sync.Mutex
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentSubSources)

	for _, reg := range c.registries() {
		id := sourceID(c.Category(), reg.name)
		outcome.checked(id)

		group.Go(func() error {
			records, err := c.search(ctx, plan, reg, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				outcome.failed(id, err)
				return nil
			}
			outcome.succeeded(id)
			outcome.PEPRecords = append(outcome.PEPRecords, records...)
			return nil
		})
	}

	group.Wait() //nolint:errcheck // sub-source errors land in the outcome
	outcome.finish()
	return outcome
}

func (c *PEPCollector) search(ctx context.Context, plan *types.SearchStrategy, reg registry, id string) ([]types.PEPRecord, error) {
	params := url.Values{}
	params.Set("q", plan.Name)
	if key := c.config.APIKeys[reg.name]; key != "" {
		params.Set("api_key", key)
	}

	payload, _, err := c.deps.fetchCached(ctx, plan.Name, id, func(ctx context.Context) ([]byte, error) {
		result, err := c.deps.Fetch.Get(ctx, reg.url, params, nil)
		if err != nil {
			return nil, err
		}
		return result.Body, nil
	})
	if err != nil {
		return nil, err
	}

	records, err := reg.parse(plan.Name, payload)
	if err != nil {
		return nil, err
	}

	kept := records[:0]
	for _, record := range records {
		record.SimilarityScore = bestSimilarity(plan, record.Name)
		if record.SimilarityScore >= c.config.MinSimilarity {
			kept = append(kept, record)
		}
	}
	return kept, nil
}

// bestSimilarity scores a registry name against the subject and variations.
func bestSimilarity(plan *types.SearchStrategy, candidate string) float64 {
	best := Similarity(plan.Name, candidate)
	for _, variation := range plan.NameVariations {
		if score := Similarity(variation, candidate); score > best {
			best = score
		}
	}
	return best
}

// openSanctionsResponse mirrors the OpenSanctions entity search payload.
type openSanctionsResponse struct {
	Results []struct {
		Caption    string `json:"caption"`
		Schema     string `json:"schema"`
		LastSeen   string `json:"last_seen"`
		Properties struct {
			Position []string `json:"position"`
			Country  []string `json:"country"`
			Topics   []string `json:"topics"`
		} `json:"properties"`
	} `json:"results"`
}

func parseOpenSanctions(_ string, payload []byte) ([]types.PEPRecord, error) {
	var response openSanctionsResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, fmt.Errorf("unexpected opensanctions response: %w", err)
	}

	var records []types.PEPRecord
	for _, result := range response.Results {
		if result.Schema != "" && result.Schema != "Person" {
			continue
		}
		record := types.PEPRecord{
			Source:   "opensanctions",
			Name:     result.Caption,
			IsActive: true,
		}
		if len(result.Properties.Position) > 0 {
			record.Position = result.Properties.Position[0]
		}
		if len(result.Properties.Country) > 0 {
			record.Country = result.Properties.Country[0]
		}
		for _, topic := range result.Properties.Topics {
			switch topic {
			case "sanction":
				record.Watchlists = append(record.Watchlists, "OpenSanctions")
				record.RiskLevel = types.RiskHigh
			case "role.pep":
				if record.RiskLevel != types.RiskHigh {
					record.RiskLevel = types.RiskMedium
				}
			}
		}
		if record.RiskLevel == "" {
			record.RiskLevel = types.RiskUnknown
		}
		if seen, err := time.Parse("2006-01-02", result.LastSeen); err == nil {
			record.LastUpdated = seen
		}
		records = append(records, record)
	}
	return records, nil
}

// ofacResponse mirrors the consolidated screening list search payload.
type ofacResponse struct {
	Results []struct {
		Name      string   `json:"name"`
		Source    string   `json:"source"`
		Programs  []string `json:"programs"`
		Countries []string `json:"countries"`
		Remarks   string   `json:"remarks"`
	} `json:"results"`
}

func parseOFAC(_ string, payload []byte) ([]types.PEPRecord, error) {
	var response ofacResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, fmt.Errorf("unexpected ofac response: %w", err)
	}

	var records []types.PEPRecord
	for _, result := range response.Results {
		record := types.PEPRecord{
			Source:    "ofac",
			Name:      result.Name,
			IsActive:  true,
			RiskLevel: types.RiskHigh,
		}
		if len(result.Countries) > 0 {
			record.Country = result.Countries[0]
		}
		for _, program := range result.Programs {
			record.Sanctions = append(record.Sanctions, types.Sanction{
				Name:      program,
				Authority: result.Source,
				Program:   program,
			})
		}
		records = append(records, record)
	}
	return records, nil
}

// consolidatedResponse is the shared shape of the UN and EU list mirrors.
type consolidatedResponse struct {
	Individuals []struct {
		Name     string `json:"name"`
		ListType string `json:"list_type"`
		ListedOn string `json:"listed_on"`
		Comments string `json:"comments"`
	} `json:"individuals"`
}

func parseConsolidated(source, listName string) func(string, []byte) ([]types.PEPRecord, error) {
	return func(_ string, payload []byte) ([]types.PEPRecord, error) {
		var response consolidatedResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			return nil, fmt.Errorf("unexpected %s response: %w", source, err)
		}

		var records []types.PEPRecord
		for _, individual := range response.Individuals {
			record := types.PEPRecord{
				Source:    source,
				Name:      individual.Name,
				IsActive:  true,
				RiskLevel: types.RiskHigh,
				Sanctions: []types.Sanction{{
					Name:      listName,
					Authority: listName,
					Program:   individual.ListType,
					StartDate: individual.ListedOn,
				}},
			}
			records = append(records, record)
		}
		return records, nil
	}
}

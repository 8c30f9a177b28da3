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

// knownPlatforms is the set of platforms the social collector can query.
var knownPlatforms = map[string]bool{
	"twitter":   true,
	"linkedin":  true,
	"facebook":  true,
	"instagram": true,
	"github":    true,
	"reddit":    true,
}

// SocialConfig configures the social media collector.
type SocialConfig struct {
	// BaseURL is the profile search endpoint. Each platform is queried
	// separately through its network parameter.
	BaseURL string
	// APIKey authenticates against the search provider, if required.
	APIKey string
	// Platforms, when set, restricts collection to these platforms even if
	// the plan asks for more.
	Platforms []string
	// MinRelevance drops profiles whose name match falls below this score.
	MinRelevance float64
}

// DefaultSocialConfig returns the production social collector settings.
func DefaultSocialConfig() SocialConfig {
	return SocialConfig{
		BaseURL:      "https://api.social-searcher.com/v2/users",
		MinRelevance: 0.3,
	}
}

// SocialCollector searches social platforms for profiles matching the subject.
type SocialCollector struct {
	deps   *Deps
	config SocialConfig
}

// NewSocialCollector creates a social media collector.
func NewSocialCollector(deps *Deps, config SocialConfig) *SocialCollector {
	if config.BaseURL == "" {
		config.BaseURL = DefaultSocialConfig().BaseURL
	}
	return &SocialCollector{deps: deps, config: config}
}

func (c *SocialCollector) Category() types.SourceCategory { return types.CategorySocial }

// socialSearchResponse is the provider's profile search payload.
type socialSearchResponse struct {
	Users []struct {
		Network   string `json:"network"`
		Username  string `json:"username"`
		URL       string `json:"url"`
		Name      string `json:"name"`
		Bio       string `json:"bio"`
		Followers int    `json:"followers"`
		Following int    `json:"following"`
		Posts     int    `json:"posts"`
		Verified  bool   `json:"verified"`
		Location  string `json:"location"`
		Joined    string `json:"joined"`
	} `json:"users"`
}

// Collect queries each platform from the plan in parallel and keeps the
// profiles that plausibly belong to the subject.
func (c *SocialCollector) Collect(ctx context.Context, plan *types.SearchStrategy) *Outcome {
	outcome := newOutcome(c.Category())
	outcome.Profiles = make(map[string][]types.SocialProfile)

	allowed := make(map[string]bool, len(c.config.Platforms))
	for _, platform := range c.config.Platforms {
		allowed[platform] = true
	}

	platforms := make([]string, 0, len(plan.Platforms))
	for _, platform := range plan.Platforms {
		if !knownPlatforms[platform] {
			continue
		}
		if len(allowed) > 0 && !allowed[platform] {
			continue
		}
		platforms = append(platforms, platform)
	}

	var mu sync.Mutex
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentSubSources)

	for _, platform := range platforms {
		id := sourceID(c.Category(), platform)
		mu.Lock()
		outcome.checked(id)
		mu.Unlock()

		group.Go(func() error {
			profiles, err := c.searchPlatform(ctx, plan, platform, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				outcome.failed(id, err)
				return nil
			}
			outcome.succeeded(id)
			if len(profiles) > 0 {
				outcome.Profiles[platform] = profiles
			}
			return nil
		})
	}

	group.Wait() //nolint:errcheck // sub-source errors land in the outcome
	outcome.finish()
	return outcome
}

func (c *SocialCollector) searchPlatform(ctx context.Context, plan *types.SearchStrategy, platform, id string) ([]types.SocialProfile, error) {
	params := url.Values{}
	params.Set("q", plan.Name)
	params.Set("network", platform)
	if c.config.APIKey != "" {
		params.Set("key", c.config.APIKey)
	}

	payload, _, err := c.deps.fetchCached(ctx, plan.Name, id, func(ctx context.Context) ([]byte, error) {
		result, err := c.deps.Fetch.Get(ctx, c.config.BaseURL, params, nil)
		if err != nil {
			return nil, err
		}
		return result.Body, nil
	})
	if err != nil {
		return nil, err
	}

	var response socialSearchResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, fmt.Errorf("unexpected %s response: %w", platform, err)
	}

	var profiles []types.SocialProfile
	for _, user := range response.Users {
		profile := types.SocialProfile{
			Platform:       platform,
			Username:       user.Username,
			URL:            user.URL,
			DisplayName:    user.Name,
			Bio:            user.Bio,
			FollowerCount:  user.Followers,
			FollowingCount: user.Following,
			PostCount:      user.Posts,
			IsVerified:     user.Verified,
			Location:       user.Location,
			RelevanceScore: profileRelevance(plan, user.Name, user.Username),
		}
		if joined, err := time.Parse(time.RFC3339, user.Joined); err == nil {
			profile.JoinedDate = joined
		}
		if profile.RelevanceScore >= c.config.MinRelevance {
			profiles = append(profiles, profile)
		}
	}
	return profiles, nil
}

// profileRelevance scores a profile against the subject name and its known
// variations, keeping the best match.
func profileRelevance(plan *types.SearchStrategy, displayName, username string) float64 {
	best := Similarity(plan.Name, displayName)
	if score := Similarity(plan.Name, username); score > best {
		best = score
	}
	for _, variation := range plan.NameVariations {
		if score := Similarity(variation, displayName); score > best {
			best = score
		}
	}
	return best
}

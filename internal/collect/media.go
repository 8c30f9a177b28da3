package collect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/person-intel/internal/types"
)

// adverseKeywords flag an article as negative coverage when they show up in
// its title or summary.
var adverseKeywords = []string{
	"fraud", "arrest", "arrested", "convicted", "conviction", "indicted",
	"lawsuit", "sued", "bribery", "corruption", "embezzlement", "laundering",
	"sanction", "scandal", "investigation", "charged", "guilty", "smuggling",
}

// MediaConfig configures the adverse media collector.
type MediaConfig struct {
	// GNewsURL is the news API search endpoint.
	GNewsURL string
	// GNewsAPIKey authenticates against the news API.
	GNewsAPIKey string
	// BingNewsURL is the HTML news search page scraped as a fallback source.
	BingNewsURL string
	// MaxArticles caps how many articles each sub-source contributes.
	MaxArticles int
	// MinRelevance drops articles whose subject match falls below this score.
	MinRelevance float64
}

// DefaultMediaConfig returns the production media collector settings.
func DefaultMediaConfig() MediaConfig {
	return MediaConfig{
		GNewsURL:     "https://gnews.io/api/v4/search",
		BingNewsURL:  "https://www.bing.com/news/search",
		MaxArticles:  10,
		MinRelevance: 0.3,
	}
}

// MediaCollector searches news coverage mentioning the subject.
type MediaCollector struct {
	deps   *Deps
	config MediaConfig
}

// NewMediaCollector creates an adverse media collector.
func NewMediaCollector(deps *Deps, config MediaConfig) *MediaCollector {
	defaults := DefaultMediaConfig()
	if config.GNewsURL == "" {
		config.GNewsURL = defaults.GNewsURL
	}
	if config.BingNewsURL == "" {
		config.BingNewsURL = defaults.BingNewsURL
	}
	if config.MaxArticles == 0 {
		config.MaxArticles = defaults.MaxArticles
	}
	if config.MinRelevance == 0 {
		config.MinRelevance = defaults.MinRelevance
	}
	return &MediaCollector{deps: deps, config: config}
}

func (c *MediaCollector) Category() types.SourceCategory { return types.CategoryMedia }

// Collect runs the API and scrape sub-sources in parallel.
func (c *MediaCollector) Collect(ctx context.Context, plan *types.SearchStrategy) *Outcome {
	outcome := newOutcome(c.Category())

	subSources := []struct {
		name   string
		search func(ctx context.Context, plan *types.SearchStrategy, id string) ([]types.NewsArticle, error)
	}{
		{name: "gnews", search: c.searchGNews},
		{name: "bing_news", search: c.searchBing},
	}

	var mu sync.Mutex
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentSubSources)

	for _, sub := range subSources {
		id := sourceID(c.Category(), sub.name)
		outcome.checked(id)

		group.Go(func() error {
			articles, err := sub.search(ctx, plan, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				outcome.failed(id, err)
				return nil
			}
			outcome.succeeded(id)
			outcome.Articles = append(outcome.Articles, articles...)
			return nil
		})
	}

	group.Wait() //nolint:errcheck // sub-source errors land in the outcome
	outcome.finish()
	return outcome
}

// gnewsResponse mirrors the news API search payload.
type gnewsResponse struct {
	TotalArticles int `json:"totalArticles"`
	Articles      []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

func (c *MediaCollector) searchGNews(ctx context.Context, plan *types.SearchStrategy, id string) ([]types.NewsArticle, error) {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("%q", plan.Name))
	params.Set("lang", "en")
	params.Set("max", fmt.Sprintf("%d", c.config.MaxArticles))
	if c.config.GNewsAPIKey != "" {
		params.Set("token", c.config.GNewsAPIKey)
	}

	payload, _, err := c.deps.fetchCached(ctx, plan.Name, id, func(ctx context.Context) ([]byte, error) {
		result, err := c.deps.Fetch.Get(ctx, c.config.GNewsURL, params, nil)
		if err != nil {
			return nil, err
		}
		return result.Body, nil
	})
	if err != nil {
		return nil, err
	}

	var response gnewsResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, fmt.Errorf("unexpected gnews response: %w", err)
	}

	var articles []types.NewsArticle
	for _, item := range response.Articles {
		article := types.NewsArticle{
			Source:  item.Source.Name,
			Title:   item.Title,
			URL:     item.URL,
			Summary: item.Description,
		}
		if published, err := time.Parse(time.RFC3339, item.PublishedAt); err == nil {
			article.PublishedDate = published
		}
		articles = append(articles, c.classify(plan, article))
	}
	return c.keepRelevant(articles), nil
}

// searchBing scrapes the news search result page. Card markup is the only
// contract here, so parse failures degrade to an empty result rather than
// a sub-source error.
func (c *MediaCollector) searchBing(ctx context.Context, plan *types.SearchStrategy, id string) ([]types.NewsArticle, error) {
	params := url.Values{}
	params.Set("q", plan.Name)

	payload, _, err := c.deps.fetchCached(ctx, plan.Name, id, func(ctx context.Context) ([]byte, error) {
		result, err := c.deps.Fetch.Get(ctx, c.config.BingNewsURL, params, nil)
		if err != nil {
			return nil, err
		}
		return result.Body, nil
	})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("unexpected bing_news response: %w", err)
	}

	var articles []types.NewsArticle
	doc.Find("div.news-card").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		link := card.Find("a.title").First()
		href, ok := link.Attr("href")
		title := strings.TrimSpace(link.Text())
		if !ok || title == "" {
			return true
		}

		article := types.NewsArticle{
			Source:  strings.TrimSpace(card.Find("div.source").First().Text()),
			Title:   title,
			URL:     href,
			Summary: strings.TrimSpace(card.Find("div.snippet").First().Text()),
		}
		if article.Source == "" {
			article.Source = "bing_news"
		}
		articles = append(articles, c.classify(plan, article))
		return len(articles) < c.config.MaxArticles
	})
	return c.keepRelevant(articles), nil
}

// classify fills the derived article fields: sentiment, keywords, relevance.
func (c *MediaCollector) classify(plan *types.SearchStrategy, article types.NewsArticle) types.NewsArticle {
	text := strings.ToLower(article.Title + " " + article.Summary)
	for _, keyword := range adverseKeywords {
		if strings.Contains(text, keyword) {
			article.Keywords = append(article.Keywords, keyword)
		}
	}
	switch {
	case len(article.Keywords) >= 3:
		article.Sentiment = types.SentimentVeryNegative
	case len(article.Keywords) > 0:
		article.Sentiment = types.SentimentNegative
	default:
		article.Sentiment = types.SentimentNeutral
	}
	article.Language = "en"
	article.RelevanceScore = subjectMentionScore(plan, text)
	return article
}

// subjectMentionScore measures how much of the subject name appears in the
// article text, taking the best match across name variations.
func subjectMentionScore(plan *types.SearchStrategy, text string) float64 {
	best := tokenCoverage(plan.Name, text)
	for _, variation := range plan.NameVariations {
		if score := tokenCoverage(variation, text); score > best {
			best = score
		}
	}
	return best
}

func tokenCoverage(name, text string) float64 {
	tokens := tokenize(name)
	if len(tokens) == 0 {
		return 0
	}
	var found int
	for token := range tokens {
		if strings.Contains(text, token) {
			found++
		}
	}
	return float64(found) / float64(len(tokens))
}

func (c *MediaCollector) keepRelevant(articles []types.NewsArticle) []types.NewsArticle {
	kept := articles[:0]
	for _, article := range articles {
		if article.RelevanceScore >= c.config.MinRelevance {
			kept = append(kept, article)
		}
	}
	if len(kept) > c.config.MaxArticles {
		kept = kept[:c.config.MaxArticles]
	}
	return kept
}

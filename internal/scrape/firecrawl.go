package scrape

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dashboard-api/internal/resilience"
	"github.com/sells-group/dashboard-api/pkg/firecrawl"
)

// FirecrawlAdapter wraps a Firecrawl client as a Scraper for single-page scrapes.
type FirecrawlAdapter struct {
	client  firecrawl.Client
	breaker *resilience.Breaker
}

// NewFirecrawlAdapter creates a FirecrawlAdapter from a Firecrawl client.
func NewFirecrawlAdapter(client firecrawl.Client) *FirecrawlAdapter {
	return &FirecrawlAdapter{
		client:  client,
		breaker: resilience.NewBreaker("firecrawl", 3, 0, 0),
	}
}

// Name implements Scraper.
func (f *FirecrawlAdapter) Name() string { return "firecrawl" }

// Supports returns true unless the circuit breaker is open.
func (f *FirecrawlAdapter) Supports(_ string) bool { return f.breaker.Allow() }

// Scrape fetches a single URL via Firecrawl's scrape API, asking for the
// main content as markdown.
func (f *FirecrawlAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := resilience.ExecuteVal(ctx, f.breaker, func(ctx context.Context) (*firecrawl.ScrapeResponse, error) {
		return f.client.Scrape(ctx, firecrawl.ScrapeRequest{
			URL:             targetURL,
			Formats:         []string{"markdown"},
			OnlyMainContent: true,
		})
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, eris.New("firecrawl: scrape not successful")
	}
	if strings.TrimSpace(resp.Data.Markdown) == "" {
		return nil, eris.Errorf("firecrawl: empty markdown for %s", targetURL)
	}

	url := resp.Data.URL
	if url == "" {
		url = targetURL
	}
	return &Result{
		URL:        url,
		Title:      resp.Data.Title,
		Markdown:   resp.Data.Markdown,
		StatusCode: resp.Data.StatusCode,
		Source:     "firecrawl",
	}, nil
}

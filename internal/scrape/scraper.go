// Package scrape turns a URL into markdown through a chain of hosted
// readers, falling back from one provider to the next.
package scrape

import "context"

// Result holds a scraped page with its source.
type Result struct {
	URL        string
	Title      string
	Markdown   string
	StatusCode int
	Source     string // e.g. "jina", "firecrawl"
}

// Scraper fetches a single URL and returns its content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}

package webcontent

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dashboard-api/internal/model"
	"github.com/sells-group/dashboard-api/internal/scrape"
)

// Fetcher retrieves page markdown through a scraper, consulting the cache
// first. Failures are swallowed: a page that cannot be fetched is absent.
type Fetcher struct {
	scraper scrape.Scraper
	cache   *Cache
}

// NewFetcher creates a Fetcher. A nil scraper disables fetching; a nil cache
// gets a fresh one with the default TTL.
func NewFetcher(scraper scrape.Scraper, cache *Cache) *Fetcher {
	if cache == nil {
		cache = NewCache(DefaultTTL)
	}
	return &Fetcher{scraper: scraper, cache: cache}
}

// Enabled reports whether a scraper is configured.
func (f *Fetcher) Enabled() bool { return f.scraper != nil }

// Fetch returns the markdown for url. A cache hit makes no network call.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, bool) {
	if md, ok := f.cache.Get(url); ok {
		return md, true
	}
	if f.scraper == nil {
		return "", false
	}

	res, err := f.scraper.Scrape(ctx, url)
	if err != nil {
		zap.L().Debug("webcontent: fetch failed", zap.String("url", url), zap.Error(err))
		return "", false
	}
	if res == nil || strings.TrimSpace(res.Markdown) == "" {
		zap.L().Debug("webcontent: empty page", zap.String("url", url))
		return "", false
	}

	f.cache.Set(url, res.Markdown)
	return res.Markdown, true
}

// FetchMany fetches at most maxConcurrent URLs from the front of urls in
// parallel and returns the ones that succeeded, in input order. URLs past
// the limit are ignored.
func (f *Fetcher) FetchMany(ctx context.Context, urls []string, maxConcurrent int) []model.WebContent {
	if maxConcurrent <= 0 || len(urls) == 0 {
		return nil
	}
	if len(urls) > maxConcurrent {
		urls = urls[:maxConcurrent]
	}

	var (
		mu      sync.Mutex
		results = make([]*model.WebContent, len(urls))
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for i, u := range urls {
		g.Go(func() error {
			md, ok := f.Fetch(gCtx, u)
			if !ok {
				return nil
			}
			mu.Lock()
			results[i] = &model.WebContent{URL: u, Markdown: md}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var out []model.WebContent
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/dashboard-api/pkg/firecrawl"
)

const (
	maxScrapeChars     = 8000
	defaultExtractWait = 2 * time.Minute
)

type webSearch struct {
	client      firecrawl.Client
	extractWait time.Duration
	pollOpts    []firecrawl.PollOption
}

// WebSearchOption configures the webSearch tool.
type WebSearchOption func(*webSearch)

// WithExtractPolling sets the poll options used while waiting on an extract job.
func WithExtractPolling(opts ...firecrawl.PollOption) WebSearchOption {
	return func(w *webSearch) {
		w.pollOpts = opts
	}
}

// WebSearchTool returns the webSearch tool. A nil client yields a tool that
// validates its input and then reports it is not configured.
func WebSearchTool(client firecrawl.Client, opts ...WebSearchOption) Tool {
	w := &webSearch{client: client, extractWait: defaultExtractWait}
	for _, opt := range opts {
		opt(w)
	}
	return Tool{
		Name:        "webSearch",
		Description: "Search the web, scrape a page to markdown, extract structured data from pages with a prompt, or map the URLs of a site.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{
					"type": "string",
					"enum": []string{"search", "scrape", "extract", "map"},
				},
				"query":  map[string]any{"type": "string", "description": "Search query (search)"},
				"url":    map[string]any{"type": "string", "description": "Page or site URL (scrape, map)"},
				"urls":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Pages to extract from (extract)"},
				"prompt": map[string]any{"type": "string", "description": "What to extract (extract)"},
				"search": map[string]any{"type": "string", "description": "Only return URLs related to this term (map)"},
				"limit":  map[string]any{"type": "integer", "description": "Maximum results (search, map)"},
			},
			"required": []string{"action"},
		},
		Execute: w.execute,
	}
}

type webSearchArgs struct {
	Action string   `json:"action"`
	Query  string   `json:"query"`
	URL    string   `json:"url"`
	URLs   []string `json:"urls"`
	Prompt string   `json:"prompt"`
	Search string   `json:"search"`
	Limit  int      `json:"limit"`
}

func (a webSearchArgs) validate() string {
	switch a.Action {
	case "search":
		if strings.TrimSpace(a.Query) == "" {
			return "query is required for search"
		}
	case "scrape":
		if strings.TrimSpace(a.URL) == "" {
			return "url is required for scrape"
		}
	case "extract":
		if len(a.URLs) == 0 {
			return "urls is required for extract"
		}
		if strings.TrimSpace(a.Prompt) == "" {
			return "prompt is required for extract"
		}
	case "map":
		if strings.TrimSpace(a.URL) == "" {
			return "url is required for map"
		}
	case "":
		return "action is required"
	default:
		return fmt.Sprintf("Unknown action: %s. Use search, scrape, extract or map", a.Action)
	}
	return ""
}

func (w *webSearch) execute(ctx context.Context, input json.RawMessage) Result {
	var args webSearchArgs
	if err := decodeArgs(input, &args); err != nil {
		return fail("Invalid input: " + err.Error())
	}
	if msg := args.validate(); msg != "" {
		return fail(msg)
	}
	if w.client == nil {
		return fail("Web search is not yet configured")
	}

	var (
		res Result
		err error
	)
	switch args.Action {
	case "search":
		res, err = w.search(ctx, args)
	case "scrape":
		res, err = w.scrape(ctx, args)
	case "extract":
		res, err = w.extract(ctx, args)
	case "map":
		res, err = w.mapSite(ctx, args)
	}
	if err != nil {
		zap.L().Warn("tools: web search failed", zap.String("action", args.Action), zap.Error(err))
		return fail(fmt.Sprintf("Web %s failed: %s", args.Action, err.Error()))
	}
	return res
}

func (w *webSearch) search(ctx context.Context, args webSearchArgs) (Result, error) {
	resp, err := w.client.Search(ctx, firecrawl.SearchRequest{
		Query: strings.TrimSpace(args.Query),
		Limit: clampInt(args.Limit, 5, 1, 10),
	})
	if err != nil {
		return nil, err
	}

	results := make([]map[string]string, 0, len(resp.Data.Web))
	for _, r := range resp.Data.Web {
		results = append(results, map[string]string{
			"url":         r.URL,
			"title":       r.Title,
			"description": r.Description,
		})
	}
	return ok(Result{"action": "search", "count": len(results), "results": results}), nil
}

func (w *webSearch) scrape(ctx context.Context, args webSearchArgs) (Result, error) {
	resp, err := w.client.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:             strings.TrimSpace(args.URL),
		Formats:         []string{"markdown"},
		OnlyMainContent: true,
	})
	if err != nil {
		return nil, err
	}

	md := resp.Data.Markdown
	truncated := false
	if r := []rune(md); len(r) > maxScrapeChars {
		md = string(r[:maxScrapeChars])
		truncated = true
	}
	return ok(Result{
		"action":    "scrape",
		"url":       resp.Data.URL,
		"title":     resp.Data.Title,
		"markdown":  md,
		"truncated": truncated,
	}), nil
}

func (w *webSearch) extract(ctx context.Context, args webSearchArgs) (Result, error) {
	job, err := w.client.StartExtract(ctx, firecrawl.ExtractRequest{
		URLs:   args.URLs,
		Prompt: strings.TrimSpace(args.Prompt),
	})
	if err != nil {
		return nil, err
	}

	opts := append([]firecrawl.PollOption{firecrawl.WithPollTimeout(w.extractWait)}, w.pollOpts...)
	status, err := firecrawl.PollExtract(ctx, w.client, job.ID, opts...)
	if err != nil {
		return nil, err
	}

	var data any
	if len(status.Data) > 0 {
		if err := json.Unmarshal(status.Data, &data); err != nil {
			return nil, err
		}
	}
	return ok(Result{"action": "extract", "id": job.ID, "data": data}), nil
}

func (w *webSearch) mapSite(ctx context.Context, args webSearchArgs) (Result, error) {
	resp, err := w.client.Map(ctx, firecrawl.MapRequest{
		URL:    strings.TrimSpace(args.URL),
		Search: strings.TrimSpace(args.Search),
		Limit:  clampInt(args.Limit, 50, 1, 500),
	})
	if err != nil {
		return nil, err
	}

	links := make([]string, 0, len(resp.Links))
	for _, l := range resp.Links {
		links = append(links, l.URL)
	}
	return ok(Result{"action": "map", "count": len(links), "links": links}), nil
}

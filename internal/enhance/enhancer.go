package enhance

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/dashboard-api/internal/model"
)

// Defaults for an Enhancer.
const (
	DefaultMaxURLs         = 3
	DefaultMaxContentChars = 8000
)

const (
	contextHeader   = "\n\n[Web content retrieved from URLs in this message]\n"
	truncatedSuffix = "\n...[truncated]"
)

// Fetcher retrieves page content for a batch of URLs. Only successes are
// returned.
type Fetcher interface {
	FetchMany(ctx context.Context, urls []string, maxConcurrent int) []model.WebContent
}

// Enhancer appends fetched page content to the last user message.
type Enhancer struct {
	fetcher         Fetcher
	maxURLs         int
	maxContentChars int
}

// Option configures an Enhancer.
type Option func(*Enhancer)

// WithMaxURLs caps how many URLs are fetched per message.
func WithMaxURLs(n int) Option {
	return func(e *Enhancer) {
		if n > 0 {
			e.maxURLs = n
		}
	}
}

// WithMaxContentChars caps the characters kept from each page.
func WithMaxContentChars(n int) Option {
	return func(e *Enhancer) {
		if n > 0 {
			e.maxContentChars = n
		}
	}
}

// New creates an Enhancer. A nil fetcher makes Enhance a no-op.
func New(fetcher Fetcher, opts ...Option) *Enhancer {
	e := &Enhancer{
		fetcher:         fetcher,
		maxURLs:         DefaultMaxURLs,
		maxContentChars: DefaultMaxContentChars,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enhance returns msgs with page content appended to the last message when
// it is from the user, links to pages, and at least one page could be
// fetched. Otherwise msgs itself is returned. The input slice and its
// messages are never modified.
func (e *Enhancer) Enhance(ctx context.Context, msgs []model.Message) []model.Message {
	if e == nil || e.fetcher == nil || len(msgs) == 0 {
		return msgs
	}

	last := msgs[len(msgs)-1]
	if last.Role != model.RoleUser {
		return msgs
	}

	urls := ExtractURLs(last.Content)
	if len(urls) == 0 {
		return msgs
	}

	contents := e.fetcher.FetchMany(ctx, urls, e.maxURLs)
	if len(contents) == 0 {
		zap.L().Debug("enhance: no content fetched", zap.Int("urls", len(urls)))
		return msgs
	}

	zap.L().Debug("enhance: appended web content",
		zap.Int("urls", len(urls)),
		zap.Int("fetched", len(contents)),
	)

	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	last.Content += e.formatContext(contents)
	out[len(out)-1] = last
	return out
}

func (e *Enhancer) formatContext(contents []model.WebContent) string {
	var b strings.Builder
	b.WriteString(contextHeader)
	for i, c := range contents {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("--- Content from ")
		b.WriteString(c.URL)
		b.WriteString(" ---\n")
		b.WriteString(truncate(c.Markdown, e.maxContentChars))
	}
	return b.String()
}

// truncate caps s at limit runes, marking the cut.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + truncatedSuffix
}

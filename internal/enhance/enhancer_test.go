package enhance

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dashboard-api/internal/model"
)

type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	gotURLs []string
	gotMax  int
	calls   int
}

func (f *fakeFetcher) FetchMany(_ context.Context, urls []string, maxConcurrent int) []model.WebContent {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotURLs = urls
	f.gotMax = maxConcurrent

	var out []model.WebContent
	for i, u := range urls {
		if i >= maxConcurrent {
			break
		}
		if md, ok := f.pages[u]; ok {
			out = append(out, model.WebContent{URL: u, Markdown: md})
		}
	}
	return out
}

func TestEnhance_AppendsContext(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{"https://acme.com": "# Acme\nWidgets"}}
	e := New(f)

	in := []model.Message{
		{Role: model.RoleUser, Content: "hi"},
		{Role: model.RoleAssistant, Content: "hello"},
		{Role: model.RoleUser, Content: "summarize acme.com"},
	}
	orig := append([]model.Message(nil), in...)

	out := e.Enhance(context.Background(), in)

	require.Len(t, out, 3)
	assert.Equal(t, orig, in, "input must not be mutated")
	assert.Equal(t, in[:2], out[:2])
	assert.Equal(t,
		"summarize acme.com"+
			"\n\n[Web content retrieved from URLs in this message]\n"+
			"--- Content from https://acme.com ---\n# Acme\nWidgets",
		out[2].Content)
	assert.Equal(t, model.RoleUser, out[2].Role)
}

func TestEnhance_MultipleEntriesSeparated(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://a.com": "A",
		"https://b.com": "B",
	}}
	out := New(f).Enhance(context.Background(), []model.Message{
		{Role: model.RoleUser, Content: "a.com b.com"},
	})

	assert.True(t, strings.HasSuffix(out[0].Content,
		"--- Content from https://a.com ---\nA\n\n--- Content from https://b.com ---\nB"))
}

func TestEnhance_Unchanged(t *testing.T) {
	tests := []struct {
		name      string
		msgs      []model.Message
		wantCalls int
	}{
		{name: "empty", msgs: nil},
		{
			name: "last message not from user",
			msgs: []model.Message{
				{Role: model.RoleUser, Content: "acme.com"},
				{Role: model.RoleAssistant, Content: "see acme.com"},
			},
		},
		{
			name: "no urls",
			msgs: []model.Message{{Role: model.RoleUser, Content: "just text"}},
		},
		{
			name:      "nothing fetched",
			msgs:      []model.Message{{Role: model.RoleUser, Content: "down.com"}},
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{pages: map[string]string{}}
			out := New(f).Enhance(context.Background(), tt.msgs)

			assert.Equal(t, tt.msgs, out)
			if len(tt.msgs) > 0 {
				assert.Same(t, &tt.msgs[0], &out[0], "unchanged input is returned as is")
			}
			assert.Equal(t, tt.wantCalls, f.calls)
		})
	}
}

func TestEnhance_NilFetcher(t *testing.T) {
	msgs := []model.Message{{Role: model.RoleUser, Content: "acme.com"}}
	assert.Equal(t, msgs, New(nil).Enhance(context.Background(), msgs))
}

func TestEnhance_CapsURLsAndContent(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://a.com": strings.Repeat("x", 50),
		"https://d.com": "never fetched",
	}}
	e := New(f, WithMaxURLs(2), WithMaxContentChars(10))

	out := e.Enhance(context.Background(), []model.Message{
		{Role: model.RoleUser, Content: "a.com b.com d.com"},
	})

	assert.Equal(t, 2, f.gotMax)
	assert.Equal(t, []string{"https://a.com", "https://b.com", "https://d.com"}, f.gotURLs)
	assert.True(t, strings.HasSuffix(out[0].Content, "xxxxxxxxxx\n...[truncated]"))
	assert.NotContains(t, out[0].Content, "never fetched")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly10!", truncate("exactly10!", 10))
	assert.Equal(t, "héllo"+truncatedSuffix, truncate("héllo wörld", 5))
	assert.Equal(t, "ééé", truncate("ééé", 3), "byte length over limit but runes within")
}

package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient creates an sdkClient pointing at a local test server.
func newTestClient(baseURL string) *sdkClient {
	return &sdkClient{
		client: sdk.NewClient(
			option.WithAPIKey("test-key"),
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(0),
		),
	}
}

// sseServer replays the given events as an Anthropic message stream.
func sseServer(t *testing.T, check func(body map[string]any), events ...string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/messages")
		if check != nil {
			raw, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			var body map[string]any
			require.NoError(t, json.Unmarshal(raw, &body))
			check(body)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range events {
			var typ struct {
				Type string `json:"type"`
			}
			require.NoError(t, json.Unmarshal([]byte(ev), &typ))
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", typ.Type, ev)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

const (
	evMessageStart = `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude-sonnet-4-5-20250929","stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":12,"output_tokens":1,"cache_read_input_tokens":100}}}`
	evMessageStop  = `{"type":"message_stop"}`
)

func TestStreamMessage_Text(t *testing.T) {
	ts := sseServer(t,
		func(body map[string]any) {
			assert.Equal(t, true, body["stream"])
			assert.Equal(t, "claude-sonnet-4-5-20250929", body["model"])
			system, ok := body["system"].([]any)
			require.True(t, ok)
			require.Len(t, system, 1)
		},
		evMessageStart,
		`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"lo"}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":7}}`,
		evMessageStop,
	)

	var deltas []string
	resp, err := newTestClient(ts.URL).StreamMessage(context.Background(), MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 256,
		System:    BuildCachedSystemBlocks("Be brief.", ""),
		Messages:  []Message{{Role: "user", Content: "Hi"}},
	}, func(s string) error {
		deltas = append(deltas, s)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, deltas)
	assert.Equal(t, "Hello", resp.Text())
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, int64(12), resp.Usage.InputTokens)
	assert.Equal(t, int64(7), resp.Usage.OutputTokens)
}

func TestStreamMessage_ToolUse(t *testing.T) {
	ts := sseServer(t,
		func(body map[string]any) {
			tools, ok := body["tools"].([]any)
			require.True(t, ok)
			require.Len(t, tools, 1)
			assert.Equal(t, "searchContacts", tools[0].(map[string]any)["name"])
		},
		evMessageStart,
		`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_1","name":"searchContacts","input":{}}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"query\":"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"\"ada\"}"}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"message_delta","delta":{"stop_reason":"tool_use","stop_sequence":null},"usage":{"output_tokens":20}}`,
		evMessageStop,
	)

	resp, err := newTestClient(ts.URL).StreamMessage(context.Background(), MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 256,
		Messages:  []Message{{Role: "user", Content: "find ada"}},
		Tools: []ToolDefinition{{
			Name:        "searchContacts",
			Description: "Search contacts",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"query": map[string]any{"type": "string"}},
				"required":   []string{"query"},
			},
		}},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "tool_use", resp.StopReason)
	uses := resp.ToolUses()
	require.Len(t, uses, 1)
	assert.Equal(t, "toolu_1", uses[0].ID)
	assert.JSONEq(t, `{"query":"ada"}`, string(uses[0].Input))
}

func TestStreamMessage_CallbackErrorStops(t *testing.T) {
	ts := sseServer(t, nil,
		evMessageStart,
		`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"a"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"b"}}`,
		evMessageStop,
	)

	stop := errors.New("client gone")
	calls := 0
	_, err := newTestClient(ts.URL).StreamMessage(context.Background(), MessageRequest{
		Model:    "claude-sonnet-4-5-20250929",
		Messages: []Message{{Role: "user", Content: "Hi"}},
	}, func(string) error {
		calls++
		return stop
	})
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestStreamMessage_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "17")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"Rate limit exceeded"}}`))
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).StreamMessage(context.Background(), MessageRequest{
		Model:    "claude-sonnet-4-5-20250929",
		Messages: []Message{{Role: "user", Content: "Hi"}},
	}, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "anthropic: stream message"))

	var apiErr *sdk.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestTokenUsage_Add(t *testing.T) {
	a := TokenUsage{InputTokens: 1, OutputTokens: 2, CacheCreationInputTokens: 3, CacheReadInputTokens: 4}
	assert.Equal(t, TokenUsage{InputTokens: 2, OutputTokens: 4, CacheCreationInputTokens: 6, CacheReadInputTokens: 8}, a.Add(a))
}

func TestEstimateCost(t *testing.T) {
	million := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}

	tests := []struct {
		name  string
		usage TokenUsage
		model string
		want  float64
	}{
		{name: "haiku", usage: million, model: "claude-haiku-4-5-20251001", want: 4.80},
		{name: "sonnet", usage: million, model: "claude-sonnet-4-5-20250929", want: 18.00},
		{name: "opus", usage: million, model: "claude-opus-4-6", want: 90.00},
		{
			name: "with cache",
			usage: TokenUsage{
				InputTokens:              500_000,
				OutputTokens:             100_000,
				CacheCreationInputTokens: 200_000,
				CacheReadInputTokens:     300_000,
			},
			model: "claude-haiku-4-5-20251001",
			// 0.40 in + 0.40 out + 0.20 cache write + 0.024 cache read
			want: 1.024,
		},
		{name: "unknown model", usage: million, model: "gpt-4o", want: 0},
		{name: "zero tokens", usage: TokenUsage{}, model: "claude-haiku-4-5-20251001", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.usage.EstimateCost(tt.model), 0.001)
		})
	}
}

func TestLogCost_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		TokenUsage{InputTokens: 100, OutputTokens: 50}.LogCost("claude-haiku-4-5-20251001", "chat")
		TokenUsage{}.LogCost("unknown-model", "")
	})
}

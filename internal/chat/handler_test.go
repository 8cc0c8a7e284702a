package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dashboard-api/internal/llm"
	"github.com/sells-group/dashboard-api/internal/model"
	"github.com/sells-group/dashboard-api/internal/tools"
)

type fakeModel struct {
	got  llm.Request
	run  func(ctx context.Context, req llm.Request, sink llm.Sink) error
	seen bool
}

func (f *fakeModel) Name() string { return "fake:test" }

func (f *fakeModel) Stream(ctx context.Context, req llm.Request, sink llm.Sink) (*llm.Usage, error) {
	f.seen = true
	f.got = req
	usage := &llm.Usage{Model: "fake", Steps: 1}
	if f.run == nil {
		return usage, nil
	}
	return usage, f.run(ctx, req, sink)
}

type suffixEnhancer struct{ suffix string }

func (e suffixEnhancer) Enhance(_ context.Context, msgs []model.Message) []model.Message {
	out := append([]model.Message(nil), msgs...)
	last := &out[len(out)-1]
	last.Content += e.suffix
	return out
}

func resolverFor(m llm.Model) ModelResolver {
	return func() (llm.Model, error) { return m, nil }
}

func testRegistry() *tools.Registry {
	echo := func(name string) tools.Tool {
		return tools.Tool{
			Name:   name,
			Schema: map[string]any{"type": "object"},
			Execute: func(context.Context, json.RawMessage) tools.Result {
				return tools.Result{"success": true, "tool": name}
			},
		}
	}
	return tools.NewRegistry(echo("searchContacts"), echo("webSearch"))
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// frames splits a UI message stream body into decoded frames; the
// terminator is returned as the string "[DONE]".
func frames(t *testing.T, body string) []any {
	t.Helper()
	var out []any
	for _, chunk := range strings.Split(strings.TrimSpace(body), "\n\n") {
		data := strings.TrimPrefix(chunk, "data: ")
		if data == "[DONE]" {
			out = append(out, data)
			continue
		}
		var f map[string]any
		require.NoError(t, json.Unmarshal([]byte(data), &f), data)
		out = append(out, f)
	}
	return out
}

func frameTypes(fs []any) []string {
	types := make([]string, len(fs))
	for i, f := range fs {
		if m, ok := f.(map[string]any); ok {
			types[i] = m["type"].(string)
			continue
		}
		types[i] = f.(string)
	}
	return types
}

func TestHandler_RejectsBadBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"messages":`},
		{name: "missing messages", body: `{}`},
		{name: "empty messages", body: `{"messages":[]}`},
		{name: "messages not an array", body: `{"messages":"hello"}`},
		{name: "null messages", body: `{"messages":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeModel{}
			rec := post(t, NewHandler(nil, resolverFor(m), nil), tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var got map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, llm.CodeAPIError, got["code"])
			assert.NotEmpty(t, got["error"])
			assert.False(t, m.seen)
		})
	}
}

func TestHandler_StreamsText(t *testing.T) {
	m := &fakeModel{run: func(_ context.Context, _ llm.Request, sink llm.Sink) error {
		if err := sink.TextDelta("Hello"); err != nil {
			return err
		}
		return sink.TextDelta(", world")
	}}

	rec := post(t, NewHandler(nil, resolverFor(m), testRegistry()), `{"messages":[{"role":"user","content":"hi"}]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "v1", rec.Header().Get("x-vercel-ai-ui-message-stream"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	fs := frames(t, rec.Body.String())
	assert.Equal(t,
		[]string{"start", "text-start", "text-delta", "text-delta", "text-end", "finish", "[DONE]"},
		frameTypes(fs))

	start := fs[0].(map[string]any)
	assert.True(t, strings.HasPrefix(start["messageId"].(string), "msg-"))
	assert.Equal(t, ", world", fs[3].(map[string]any)["delta"])

	// Fast mode is the default and never exposes tools.
	assert.Equal(t, SystemPrompt(model.ChatModeFast), m.got.System)
	assert.Nil(t, m.got.Tools)
	assert.Nil(t, m.got.Executor)
}

func TestHandler_AgenticToolFrames(t *testing.T) {
	m := &fakeModel{run: func(ctx context.Context, req llm.Request, sink llm.Sink) error {
		if err := sink.TextDelta("Looking that up."); err != nil {
			return err
		}
		call := llm.ToolCall{ID: "call-1", Name: "webSearch", Input: json.RawMessage(`{"action":"search","query":"acme"}`)}
		if err := sink.ToolCall(call); err != nil {
			return err
		}
		out := req.Executor.Execute(ctx, call.Name, call.Input)
		if err := sink.ToolResult(call, out); err != nil {
			return err
		}
		return sink.TextDelta("Done.")
	}}

	h := NewHandler(nil, resolverFor(m), testRegistry(), WithLimits(3, 1000))
	rec := post(t, h, `{"messages":[{"role":"user","content":"find acme"}],"mode":"agentic","enabledTools":["webSearch"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	fs := frames(t, rec.Body.String())
	assert.Equal(t, []string{
		"start",
		"text-start", "text-delta", "text-end",
		"tool-input-available", "tool-output-available",
		"text-start", "text-delta", "text-end",
		"finish", "[DONE]",
	}, frameTypes(fs))

	input := fs[4].(map[string]any)
	assert.Equal(t, "call-1", input["toolCallId"])
	assert.Equal(t, "webSearch", input["toolName"])
	assert.Equal(t, map[string]any{"action": "search", "query": "acme"}, input["input"])

	output := fs[5].(map[string]any)
	assert.Equal(t, map[string]any{"success": true, "tool": "webSearch"}, output["output"])

	// Text parts get distinct ids.
	assert.NotEqual(t, fs[1].(map[string]any)["id"], fs[6].(map[string]any)["id"])

	assert.Equal(t, SystemPrompt(model.ChatModeAgentic), m.got.System)
	require.Len(t, m.got.Tools, 1)
	assert.Equal(t, "webSearch", m.got.Tools[0].Name)
	assert.Equal(t, 3, m.got.MaxSteps)
	assert.Equal(t, int64(1000), m.got.MaxTokens)
}

func TestHandler_AgenticSelection(t *testing.T) {
	tests := []struct {
		name      string
		enabled   string
		wantTools int
	}{
		{name: "omitted selects all", enabled: ``, wantTools: 2},
		{name: "empty selects all", enabled: `,"enabledTools":[]`, wantTools: 2},
		{name: "unknown selects none", enabled: `,"enabledTools":["nope"]`, wantTools: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeModel{}
			body := `{"messages":[{"role":"user","content":"hi"}],"mode":"agentic"` + tt.enabled + `}`
			rec := post(t, NewHandler(nil, resolverFor(m), testRegistry()), body)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Len(t, m.got.Tools, tt.wantTools)
			if tt.wantTools == 0 {
				assert.Nil(t, m.got.Executor)
			}
		})
	}
}

func TestHandler_EnhancesMessages(t *testing.T) {
	m := &fakeModel{}
	h := NewHandler(suffixEnhancer{suffix: " [web]"}, resolverFor(m), nil)

	rec := post(t, h, `{"messages":[{"role":"user","content":"see https://acme.com"}]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, m.got.Messages, 1)
	assert.Equal(t, "see https://acme.com [web]", m.got.Messages[0].Content)

	// A stream with no events still commits and finishes.
	assert.Equal(t, []string{"start", "finish", "[DONE]"}, frameTypes(frames(t, rec.Body.String())))
}

func TestHandler_ErrorsBeforeStreaming(t *testing.T) {
	t.Run("missing credential", func(t *testing.T) {
		resolve := func() (llm.Model, error) {
			return nil, &llm.MissingCredentialError{Provider: "openai", Setting: "DASHBOARD_OPENAI_KEY"}
		}
		rec := post(t, NewHandler(nil, resolve, nil), `{"messages":[{"role":"user","content":"hi"}]}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		var got map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, llm.CodeUnknown, got["code"])
	})

	t.Run("rate limited", func(t *testing.T) {
		m := &fakeModel{run: func(context.Context, llm.Request, llm.Sink) error {
			return &llm.RetryHint{
				Err:        &llm.StatusError{Status: http.StatusTooManyRequests},
				RetryAfter: "30",
			}
		}}
		rec := post(t, NewHandler(nil, resolverFor(m), nil), `{"messages":[{"role":"user","content":"hi"}]}`)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "30", rec.Header().Get("Retry-After"))
		var got map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, llm.CodeRateLimit, got["code"])
		assert.Equal(t, float64(30), got["retryAfter"])
	})

	t.Run("unauthorized", func(t *testing.T) {
		m := &fakeModel{run: func(context.Context, llm.Request, llm.Sink) error {
			return &llm.StatusError{Status: http.StatusUnauthorized, Message: "invalid x-api-key"}
		}}
		rec := post(t, NewHandler(nil, resolverFor(m), nil), `{"messages":[{"role":"user","content":"hi"}]}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, rec.Header().Get("Retry-After"))
		assert.Contains(t, rec.Body.String(), llm.CodeUnauthorized)
	})
}

func TestHandler_ErrorAfterStreaming(t *testing.T) {
	m := &fakeModel{run: func(_ context.Context, _ llm.Request, sink llm.Sink) error {
		if err := sink.TextDelta("partial"); err != nil {
			return err
		}
		return errors.New("connection reset")
	}}

	rec := post(t, NewHandler(nil, resolverFor(m), nil), `{"messages":[{"role":"user","content":"hi"}]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	fs := frames(t, rec.Body.String())
	assert.Equal(t, []string{"start", "text-start", "text-delta", "error", "[DONE]"}, frameTypes(fs))
	assert.NotContains(t, frameTypes(fs), "finish")
	assert.NotEmpty(t, fs[3].(map[string]any)["errorText"])
}

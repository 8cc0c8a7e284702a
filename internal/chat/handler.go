// Package chat serves the streaming chat endpoint.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/dashboard-api/internal/llm"
	"github.com/sells-group/dashboard-api/internal/model"
	"github.com/sells-group/dashboard-api/internal/tools"
)

const maxBodyBytes = 4 << 20

// Enhancer adds fetched web content to the conversation.
type Enhancer interface {
	Enhance(ctx context.Context, msgs []model.Message) []model.Message
}

// ModelResolver returns the model for a request. It is called per request
// so configuration problems surface as classified errors.
type ModelResolver func() (llm.Model, error)

// Handler handles POST /api/chat.
type Handler struct {
	enhancer  Enhancer
	resolve   ModelResolver
	registry  *tools.Registry
	maxSteps  int
	maxTokens int64
}

// Option configures a Handler.
type Option func(*Handler)

// WithLimits sets the tool loop step limit and the per-step token limit.
func WithLimits(maxSteps int, maxTokens int64) Option {
	return func(h *Handler) {
		h.maxSteps = maxSteps
		h.maxTokens = maxTokens
	}
}

// NewHandler creates a chat handler. enhancer and registry may be nil.
func NewHandler(enhancer Enhancer, resolve ModelResolver, registry *tools.Registry, opts ...Option) *Handler {
	h := &Handler{enhancer: enhancer, resolve: resolve, registry: registry}
	for _, o := range opts {
		o(h)
	}
	return h
}

type chatRequest struct {
	Messages     json.RawMessage `json:"messages"`
	Mode         string          `json:"mode"`
	EnabledTools []string        `json:"enabledTools"`
}

func (r chatRequest) messages() ([]model.Message, bool) {
	raw := bytes.TrimSpace(r.Messages)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, false
	}
	var msgs []model.Message
	if err := json.Unmarshal(raw, &msgs); err != nil || len(msgs) == 0 {
		return nil, false
	}
	return msgs, true
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var body chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeClassified(w, llm.Classification{Code: llm.CodeAPIError, Status: http.StatusBadRequest, Message: "Invalid JSON body"})
		return
	}
	msgs, valid := body.messages()
	if !valid {
		writeClassified(w, llm.Classification{Code: llm.CodeAPIError, Status: http.StatusBadRequest, Message: "messages must be a non-empty array"})
		return
	}
	mode := model.ParseChatMode(body.Mode)

	if h.enhancer != nil {
		msgs = h.enhancer.Enhance(ctx, msgs)
	}

	m, err := h.resolve()
	if err != nil {
		h.fail(w, nil, err)
		return
	}

	req := llm.Request{
		System:    SystemPrompt(mode),
		Messages:  msgs,
		MaxSteps:  h.maxSteps,
		MaxTokens: h.maxTokens,
	}
	if mode == model.ChatModeAgentic && h.registry != nil {
		set := h.registry.Select(body.EnabledTools)
		if len(set) > 0 {
			req.Tools = set.Specs()
			req.Executor = set
		}
	}

	stream := newUIStream(w)
	usage, err := m.Stream(ctx, req, stream)
	usage.Log("chat")
	if err != nil {
		h.fail(w, stream, err)
		return
	}
	if err := stream.finish(); err != nil {
		zap.L().Debug("chat: finish stream", zap.Error(err))
		return
	}

	zap.L().Info("chat: completed",
		zap.String("model", m.Name()),
		zap.String("mode", string(mode)),
		zap.Int("messages", len(msgs)),
		zap.Int("tools", len(req.Tools)),
		zap.Duration("duration", time.Since(start)),
	)
}

// fail reports err as JSON when nothing has been streamed yet, otherwise as
// a final error frame.
func (h *Handler) fail(w http.ResponseWriter, stream *uiStream, err error) {
	c := llm.Classify(err)
	zap.L().Warn("chat: request failed",
		zap.String("code", c.Code),
		zap.Int("status", c.Status),
		zap.Error(err),
	)

	if stream != nil && stream.committed {
		if werr := stream.fail(c.Message); werr != nil {
			zap.L().Debug("chat: write error frame", zap.Error(werr))
		}
		return
	}
	writeClassified(w, c)
}

func writeClassified(w http.ResponseWriter, c llm.Classification) {
	if c.RetryAfter != nil {
		w.Header().Set("Retry-After", strconv.Itoa(*c.RetryAfter))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(c.Status)
	if err := json.NewEncoder(w).Encode(c); err != nil {
		zap.L().Debug("chat: write error body", zap.Error(err))
	}
}

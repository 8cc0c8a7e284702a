// Package llm hides the chat model providers behind one streaming interface.
// Each adapter runs the model/tool loop itself and reports progress to a Sink.
package llm

import (
	"context"
	"encoding/json"

	"github.com/sells-group/dashboard-api/internal/model"
	"github.com/sells-group/dashboard-api/pkg/anthropic"
)

// DefaultMaxSteps bounds the model/tool loop when a Request leaves MaxSteps unset.
const DefaultMaxSteps = 5

// DefaultMaxTokens is used when a Request leaves MaxTokens unset.
const DefaultMaxTokens = 4096

// ToolSpec describes a tool the model may call. Schema is a JSON schema object.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID    string          `json:"toolCallId"`
	Name  string          `json:"toolName"`
	Input json.RawMessage `json:"input"`
}

// Executor runs a named tool. Implementations report failures inside the
// returned payload rather than as Go errors.
type Executor interface {
	Execute(ctx context.Context, name string, input json.RawMessage) json.RawMessage
}

// Request is one chat completion with an optional tool loop.
type Request struct {
	System    string
	Messages  []model.Message
	Tools     []ToolSpec
	Executor  Executor
	MaxSteps  int
	MaxTokens int64
}

func (r Request) maxSteps() int {
	if r.MaxSteps <= 0 {
		return DefaultMaxSteps
	}
	return r.MaxSteps
}

func (r Request) maxTokens() int64 {
	if r.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return r.MaxTokens
}

// Sink receives streaming progress. A non-nil error from any method stops
// the stream and is returned from Model.Stream.
type Sink interface {
	TextDelta(text string) error
	ToolCall(call ToolCall) error
	ToolResult(call ToolCall, output json.RawMessage) error
}

// Usage accumulates token counts across every step of one Stream call.
type Usage struct {
	Model            string
	Steps            int
	InputTokens      int64
	OutputTokens     int64
	CacheWriteTokens int64
	CacheReadTokens  int64
}

// Log writes the usage and its estimated cost.
func (u *Usage) Log(phase string) {
	if u == nil {
		return
	}
	anthropic.TokenUsage{
		InputTokens:              u.InputTokens,
		OutputTokens:             u.OutputTokens,
		CacheCreationInputTokens: u.CacheWriteTokens,
		CacheReadInputTokens:     u.CacheReadTokens,
	}.LogCost(u.Model, phase)
}

// Model is a configured chat model.
type Model interface {
	// Name returns "<provider>:<model>".
	Name() string
	// Stream runs req to completion, forwarding progress to sink.
	Stream(ctx context.Context, req Request, sink Sink) (*Usage, error)
}

// splitSystem separates system-role messages from the conversation and
// appends their text to the base system prompt.
func splitSystem(base string, msgs []model.Message) (string, []model.Message) {
	system := base
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == model.RoleSystem {
			if m.Content == "" {
				continue
			}
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		out = append(out, m)
	}
	return system, out
}

// Package tools holds the functions the chat model may call. Every tool
// reports failure inside its result envelope and never returns a Go error.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/dashboard-api/internal/llm"
)

// Result is the flat envelope a tool returns: success, optional error and
// reason, plus tool-specific fields.
type Result map[string]any

func ok(fields Result) Result {
	out := Result{"success": true}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func fail(msg string) Result {
	return Result{"success": false, "error": msg}
}

func failReason(msg, reason string) Result {
	return Result{"success": false, "error": msg, "reason": reason}
}

// Tool is a named function with a JSON schema for its input.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]any
	Execute     func(ctx context.Context, input json.RawMessage) Result
}

// Registry holds tools in registration order.
type Registry struct {
	tools  []Tool
	byName map[string]int
}

// NewRegistry creates a registry with the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{byName: make(map[string]int)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds t, replacing any tool with the same name in place.
func (r *Registry) Register(t Tool) {
	if i, exists := r.byName[t.Name]; exists {
		r.tools[i] = t
		return
	}
	r.byName[t.Name] = len(r.tools)
	r.tools = append(r.tools, t)
}

// Names returns the registered tool names in order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Name
	}
	return names
}

// Select returns the tools named in enabled, in registration order. A nil or
// empty list selects every tool. Unknown names are ignored, so a list naming
// only unknown tools selects none.
func (r *Registry) Select(enabled []string) Set {
	if len(enabled) == 0 {
		return append(Set(nil), r.tools...)
	}

	want := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		want[name] = true
	}

	out := Set{}
	for _, t := range r.tools {
		if want[t.Name] {
			out = append(out, t)
		}
	}
	return out
}

// Set is a selection of tools exposed to one chat request. It implements
// llm.Executor.
type Set []Tool

// Specs describes the set for a model request.
func (s Set) Specs() []llm.ToolSpec {
	if len(s) == 0 {
		return nil
	}
	specs := make([]llm.ToolSpec, len(s))
	for i, t := range s {
		specs[i] = llm.ToolSpec{Name: t.Name, Description: t.Description, Schema: t.Schema}
	}
	return specs
}

// Execute runs the named tool and returns its marshalled result. Tools
// outside the set are refused.
func (s Set) Execute(ctx context.Context, name string, input json.RawMessage) json.RawMessage {
	start := time.Now()

	res := fail(fmt.Sprintf("Unknown tool: %s", name))
	for _, t := range s {
		if t.Name == name {
			res = t.Execute(ctx, input)
			break
		}
	}

	zap.L().Debug("tools: executed",
		zap.String("tool", name),
		zap.Any("success", res["success"]),
		zap.Duration("duration", time.Since(start)),
	)

	out, err := json.Marshal(res)
	if err != nil {
		zap.L().Warn("tools: marshal result", zap.String("tool", name), zap.Error(err))
		return json.RawMessage(`{"success":false,"error":"Tool returned an unencodable result"}`)
	}
	return out
}

// decodeArgs unmarshals tool input into dst. Empty input decodes as {}.
func decodeArgs(input json.RawMessage, dst any) error {
	if len(input) == 0 || string(input) == "null" {
		return nil
	}
	return json.Unmarshal(input, dst)
}

func clampInt(v, def, lo, hi int) int {
	if v == 0 {
		v = def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

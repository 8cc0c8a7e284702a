package llm

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dashboard-api/internal/model"
	"github.com/sells-group/dashboard-api/pkg/anthropic"
)

type anthropicModel struct {
	client anthropic.Client
	model  string
}

// NewAnthropic returns a Model backed by the Anthropic Messages API.
func NewAnthropic(client anthropic.Client, modelID string) Model {
	return &anthropicModel{client: client, model: modelID}
}

func (m *anthropicModel) Name() string { return ProviderAnthropic + ":" + m.model }

func (m *anthropicModel) Stream(ctx context.Context, req Request, sink Sink) (*Usage, error) {
	usage := &Usage{Model: m.model}

	system, history := splitSystem(req.System, req.Messages)
	msgs := toAnthropicMessages(history)
	tools := toAnthropicTools(req.Tools)
	maxSteps := req.maxSteps()

	for step := 1; ; step++ {
		resp, err := m.client.StreamMessage(ctx, anthropic.MessageRequest{
			Model:     m.model,
			MaxTokens: req.maxTokens(),
			System:    anthropic.BuildCachedSystemBlocks(system, ""),
			Messages:  msgs,
			Tools:     tools,
		}, sink.TextDelta)
		if err != nil {
			return usage, eris.Wrapf(err, "llm: anthropic step %d", step)
		}

		usage.Steps = step
		usage.InputTokens += resp.Usage.InputTokens
		usage.OutputTokens += resp.Usage.OutputTokens
		usage.CacheWriteTokens += resp.Usage.CacheCreationInputTokens
		usage.CacheReadTokens += resp.Usage.CacheReadInputTokens

		uses := resp.ToolUses()
		if len(uses) == 0 || req.Executor == nil {
			return usage, nil
		}
		if step >= maxSteps {
			zap.L().Warn("llm: tool loop hit step limit",
				zap.String("model", m.model),
				zap.Int("steps", step),
			)
			return usage, nil
		}

		msgs = append(msgs, anthropic.Message{Role: "assistant", Blocks: nonEmptyBlocks(resp.Content)})

		results := make([]anthropic.ContentBlock, 0, len(uses))
		for _, u := range uses {
			call := ToolCall{ID: u.ID, Name: u.Name, Input: u.Input}
			if err := sink.ToolCall(call); err != nil {
				return usage, err
			}
			out := req.Executor.Execute(ctx, u.Name, u.Input)
			if err := sink.ToolResult(call, out); err != nil {
				return usage, err
			}
			results = append(results, anthropic.ContentBlock{
				Type:      anthropic.BlockToolResult,
				ToolUseID: u.ID,
				Text:      string(out),
			})
		}
		msgs = append(msgs, anthropic.Message{Role: "user", Blocks: results})
	}
}

func toAnthropicMessages(msgs []model.Message) []anthropic.Message {
	out := make([]anthropic.Message, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Role == model.RoleAssistant {
			role = "assistant"
		}
		out = append(out, anthropic.Message{Role: role, Content: m.Content})
	}
	return out
}

func toAnthropicTools(specs []ToolSpec) []anthropic.ToolDefinition {
	if len(specs) == 0 {
		return nil
	}
	out := make([]anthropic.ToolDefinition, 0, len(specs))
	for _, s := range specs {
		out = append(out, anthropic.ToolDefinition{
			Name:        s.Name,
			Description: s.Description,
			InputSchema: s.Schema,
		})
	}
	return out
}

// nonEmptyBlocks drops empty text blocks, which the API rejects when echoed
// back as assistant content.
func nonEmptyBlocks(blocks []anthropic.ContentBlock) []anthropic.ContentBlock {
	out := make([]anthropic.ContentBlock, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == anthropic.BlockText && b.Text == "" {
			continue
		}
		out = append(out, b)
	}
	return out
}

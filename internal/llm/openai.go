package llm

import (
	"context"
	"encoding/json"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dashboard-api/internal/model"
)

// OpenRouter attribution headers.
const (
	openRouterReferer = "https://github.com/sells-group/dashboard-api"
	openRouterTitle   = "dashboard-api"
)

type openaiModel struct {
	client   openai.Client
	provider string
	model    string
}

// NewOpenAI returns a Model speaking the OpenAI chat completions protocol.
// provider is ProviderOpenAI or ProviderOpenRouter; it only affects Name and
// the token limit parameter.
func NewOpenAI(provider, apiKey, baseURL, modelID string, opts ...option.RequestOption) Model {
	all := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		all = append(all, option.WithBaseURL(baseURL))
	}
	if provider == ProviderOpenRouter {
		all = append(all,
			option.WithHeader("HTTP-Referer", openRouterReferer),
			option.WithHeader("X-Title", openRouterTitle),
		)
	}
	all = append(all, opts...)

	return &openaiModel{
		client:   openai.NewClient(all...),
		provider: provider,
		model:    modelID,
	}
}

func (m *openaiModel) Name() string { return m.provider + ":" + m.model }

func (m *openaiModel) Stream(ctx context.Context, req Request, sink Sink) (*Usage, error) {
	usage := &Usage{Model: m.model}

	system, history := splitSystem(req.System, req.Messages)
	msgs := toOpenAIMessages(system, history)
	tools := toOpenAITools(req.Tools)
	maxSteps := req.maxSteps()

	for step := 1; ; step++ {
		params := openai.ChatCompletionNewParams{
			Model:    m.model,
			Messages: msgs,
			StreamOptions: openai.ChatCompletionStreamOptionsParam{
				IncludeUsage: openai.Bool(true),
			},
		}
		// OpenRouter still expects the legacy max_tokens field.
		if m.provider == ProviderOpenRouter {
			params.MaxTokens = openai.Int(req.maxTokens())
		} else {
			params.MaxCompletionTokens = openai.Int(req.maxTokens())
		}
		if len(tools) > 0 {
			params.Tools = tools
		}

		msg, err := m.streamStep(ctx, params, sink, usage)
		if err != nil {
			return usage, eris.Wrapf(err, "llm: %s step %d", m.provider, step)
		}
		usage.Steps = step

		if msg == nil || len(msg.ToolCalls) == 0 || req.Executor == nil {
			return usage, nil
		}
		if step >= maxSteps {
			zap.L().Warn("llm: tool loop hit step limit",
				zap.String("model", m.model),
				zap.Int("steps", step),
			)
			return usage, nil
		}

		msgs = append(msgs, msg.ToParam())
		for _, tc := range msg.ToolCalls {
			input := json.RawMessage(tc.Function.Arguments)
			if len(input) == 0 {
				input = json.RawMessage(`{}`)
			}
			call := ToolCall{ID: tc.ID, Name: tc.Function.Name, Input: input}
			if err := sink.ToolCall(call); err != nil {
				return usage, err
			}
			out := req.Executor.Execute(ctx, call.Name, call.Input)
			if err := sink.ToolResult(call, out); err != nil {
				return usage, err
			}
			msgs = append(msgs, openai.ToolMessage(string(out), tc.ID))
		}
	}
}

// streamStep streams one completion, forwarding text deltas, and returns the
// accumulated assistant message.
func (m *openaiModel) streamStep(ctx context.Context, params openai.ChatCompletionNewParams, sink Sink, usage *Usage) (*openai.ChatCompletionMessage, error) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close() //nolint:errcheck

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			if err := sink.TextDelta(chunk.Choices[0].Delta.Content); err != nil {
				return nil, err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}

	usage.InputTokens += acc.Usage.PromptTokens
	usage.OutputTokens += acc.Usage.CompletionTokens
	usage.CacheReadTokens += acc.Usage.PromptTokensDetails.CachedTokens

	if len(acc.Choices) == 0 {
		return nil, nil
	}
	msg := acc.Choices[0].Message
	return &msg, nil
}

func toOpenAIMessages(system string, msgs []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.SystemMessage(system))
	}
	for _, m := range msgs {
		if m.Role == model.RoleAssistant {
			out = append(out, openai.AssistantMessage(m.Content))
			continue
		}
		out = append(out, openai.UserMessage(m.Content))
	}
	return out
}

func toOpenAITools(specs []ToolSpec) []openai.ChatCompletionToolUnionParam {
	if len(specs) == 0 {
		return nil
	}
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(specs))
	for _, s := range specs {
		out = append(out, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        s.Name,
			Description: openai.String(s.Description),
			Parameters:  openai.FunctionParameters(s.Schema),
		}))
	}
	return out
}

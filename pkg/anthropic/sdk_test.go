package anthropic

import (
	"encoding/json"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSDKMessage(t *testing.T) {
	sdkMsg := &sdk.Message{
		ID:           "msg_test_123",
		Model:        "claude-sonnet-4-5-20250929",
		StopReason:   "end_turn",
		StopSequence: "STOP",
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "Hello world"},
			{Type: "text", Text: "Second block"},
		},
		Usage: sdk.Usage{
			InputTokens:              100,
			OutputTokens:             50,
			CacheCreationInputTokens: 2000,
			CacheReadInputTokens:     3000,
		},
	}

	resp := fromSDKMessage(sdkMsg)
	require.NotNil(t, resp)
	assert.Equal(t, "msg_test_123", resp.ID)
	assert.Equal(t, "claude-sonnet-4-5-20250929", resp.Model)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, "STOP", resp.StopSequence)
	require.Len(t, resp.Content, 2)
	assert.Equal(t, "Hello worldSecond block", resp.Text())
	assert.Empty(t, resp.ToolUses())
	assert.Equal(t, TokenUsage{
		InputTokens:              100,
		OutputTokens:             50,
		CacheCreationInputTokens: 2000,
		CacheReadInputTokens:     3000,
	}, resp.Usage)
}

func TestFromSDKMessage_ToolUse(t *testing.T) {
	sdkMsg := &sdk.Message{
		ID:         "msg_tool",
		StopReason: "tool_use",
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "Let me look."},
			{Type: "tool_use", ID: "toolu_1", Name: "searchContacts", Input: json.RawMessage(`{"query":"ada"}`)},
		},
	}

	resp := fromSDKMessage(sdkMsg)
	uses := resp.ToolUses()
	require.Len(t, uses, 1)
	assert.Equal(t, "toolu_1", uses[0].ID)
	assert.Equal(t, "searchContacts", uses[0].Name)
	assert.JSONEq(t, `{"query":"ada"}`, string(uses[0].Input))
	assert.Equal(t, "Let me look.", resp.Text())
}

func TestFromSDKMessage_EmptyContent(t *testing.T) {
	resp := fromSDKMessage(&sdk.Message{ID: "msg_empty", StopReason: "max_tokens"})
	require.NotNil(t, resp)
	assert.Empty(t, resp.Content)
	assert.Equal(t, "max_tokens", resp.StopReason)
}

func TestToSDKMessages_Roles(t *testing.T) {
	out := toSDKMessages([]Message{
		{Role: "user", Content: "Hi"},
		{Role: "assistant", Content: "Hello"},
		{Role: "system", Content: "treated as user"},
	})
	require.Len(t, out, 3)
	assert.Equal(t, sdk.MessageParamRoleUser, out[0].Role)
	assert.Equal(t, sdk.MessageParamRoleAssistant, out[1].Role)
	assert.Equal(t, sdk.MessageParamRoleUser, out[2].Role)
	assert.Empty(t, toSDKMessages(nil))
}

func TestToSDKMessages_ToolBlocks(t *testing.T) {
	out := toSDKMessages([]Message{
		{Role: "assistant", Blocks: []ContentBlock{
			{Type: BlockText, Text: "checking"},
			{Type: BlockToolUse, ID: "toolu_1", Name: "getContact"},
		}},
		{Role: "user", Blocks: []ContentBlock{
			{Type: BlockToolResult, ToolUseID: "toolu_1", Text: `{"success":true}`},
		}},
	})
	require.Len(t, out, 2)
	require.Len(t, out[0].Content, 2)
	require.NotNil(t, out[0].Content[1].OfToolUse)
	assert.Equal(t, "toolu_1", out[0].Content[1].OfToolUse.ID)
	assert.Equal(t, "getContact", out[0].Content[1].OfToolUse.Name)
	require.NotNil(t, out[1].Content[0].OfToolResult)
	assert.Equal(t, "toolu_1", out[1].Content[0].OfToolResult.ToolUseID)
}

func TestToSDKSystemBlocks(t *testing.T) {
	out := toSDKSystemBlocks([]SystemBlock{
		{Text: "plain"},
		{Text: "cached", CacheControl: &CacheControl{TTL: "1h"}},
		{Text: "default ttl", CacheControl: &CacheControl{}},
	})
	require.Len(t, out, 3)
	assert.Equal(t, "plain", out[0].Text)
	assert.Equal(t, sdk.CacheControlEphemeralTTL("1h"), out[1].CacheControl.TTL)
	assert.Equal(t, sdk.CacheControlEphemeralTTL(""), out[2].CacheControl.TTL)
}

func TestToSDKTools(t *testing.T) {
	out := toSDKTools([]ToolDefinition{{
		Name:        "getContact",
		Description: "Fetch one contact",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"id": map[string]any{"type": "string"}},
			"required":   []string{"id"},
		},
	}})
	require.Len(t, out, 1)
	require.NotNil(t, out[0].OfTool)
	assert.Equal(t, "getContact", out[0].OfTool.Name)
	assert.Equal(t, []string{"id"}, out[0].OfTool.InputSchema.Required)
}

func TestBuildCachedSystemBlocks(t *testing.T) {
	blocks := BuildCachedSystemBlocks("You are helpful.", "1h")
	require.Len(t, blocks, 1)
	assert.Equal(t, "You are helpful.", blocks[0].Text)
	require.NotNil(t, blocks[0].CacheControl)
	assert.Equal(t, "1h", blocks[0].CacheControl.TTL)

	assert.Nil(t, BuildCachedSystemBlocks("", "1h"))
}

func TestNewClient_ReturnsNonNil(t *testing.T) {
	assert.NotNil(t, NewClient("test-key"))
}

package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dashboard-api/internal/config"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name        string
		cfg         ProviderConfig
		wantName    string
		wantSetting string
		wantErr     error
	}{
		{
			name:     "default is anthropic",
			cfg:      ProviderConfig{AnthropicKey: "k", AnthropicModel: "claude-x"},
			wantName: "anthropic:claude-x",
		},
		{
			name:     "openai",
			cfg:      ProviderConfig{Provider: "openai", OpenAIKey: "k", OpenAIModel: "gpt-x"},
			wantName: "openai:gpt-x",
		},
		{
			name:     "openrouter is case insensitive",
			cfg:      ProviderConfig{Provider: " OpenRouter ", OpenRouterKey: "k", OpenRouterModel: "vendor/model"},
			wantName: "openrouter:vendor/model",
		},
		{
			name:        "anthropic without key",
			cfg:         ProviderConfig{Provider: "anthropic", OpenAIKey: "k"},
			wantSetting: "DASHBOARD_ANTHROPIC_KEY",
		},
		{
			name:        "openai without key",
			cfg:         ProviderConfig{Provider: "openai", AnthropicKey: "k"},
			wantSetting: "DASHBOARD_OPENAI_KEY",
		},
		{
			name:        "openrouter without key",
			cfg:         ProviderConfig{Provider: "openrouter"},
			wantSetting: "DASHBOARD_OPENROUTER_KEY",
		},
		{
			name:    "unknown provider",
			cfg:     ProviderConfig{Provider: "gemini", AnthropicKey: "k"},
			wantErr: ErrUnsupportedProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Select(tt.cfg)

			switch {
			case tt.wantSetting != "":
				require.Error(t, err)
				var missing *MissingCredentialError
				require.ErrorAs(t, err, &missing)
				assert.Equal(t, tt.wantSetting, missing.Setting)
				assert.Nil(t, m)
			case tt.wantErr != nil:
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.Contains(t, err.Error(), "gemini")
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantName, m.Name())
			}
		})
	}
}

func TestValidate(t *testing.T) {
	ok, msg := Validate(ProviderConfig{Provider: "openai", OpenAIKey: "k"})
	assert.True(t, ok)
	assert.Contains(t, msg, "openai")

	ok, msg = Validate(ProviderConfig{Provider: "openai"})
	assert.False(t, ok)
	assert.Contains(t, msg, "DASHBOARD_OPENAI_KEY")

	ok, msg = Validate(ProviderConfig{Provider: "nope"})
	assert.False(t, ok)
	assert.Contains(t, msg, "unsupported provider")
}

func TestProviderConfigFrom(t *testing.T) {
	cfg := &config.Config{
		Chat:       config.ChatConfig{Provider: "openrouter"},
		Anthropic:  config.AnthropicConfig{Key: "a", Model: "am"},
		OpenAI:     config.OpenAIConfig{Key: "o", BaseURL: "ob", Model: "om"},
		OpenRouter: config.OpenRouterConfig{Key: "r", BaseURL: "rb", Model: "rm"},
	}

	got := ProviderConfigFrom(cfg)
	assert.Equal(t, ProviderConfig{
		Provider:          "openrouter",
		AnthropicKey:      "a",
		AnthropicModel:    "am",
		OpenAIKey:         "o",
		OpenAIBaseURL:     "ob",
		OpenAIModel:       "om",
		OpenRouterKey:     "r",
		OpenRouterBaseURL: "rb",
		OpenRouterModel:   "rm",
	}, got)
}

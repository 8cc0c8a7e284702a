package llm

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dashboard-api/internal/config"
	"github.com/sells-group/dashboard-api/pkg/anthropic"
)

// Provider names accepted by chat.provider.
const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
)

// ErrUnsupportedProvider is returned for an unknown provider name.
var ErrUnsupportedProvider = eris.New("llm: unsupported provider")

// MissingCredentialError reports a selected provider without its API key.
type MissingCredentialError struct {
	Provider string
	Setting  string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("llm: provider %q selected but %s is not set", e.Provider, e.Setting)
}

// ProviderConfig is the subset of configuration that picks a chat model.
type ProviderConfig struct {
	Provider string

	AnthropicKey   string
	AnthropicModel string

	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string

	OpenRouterKey     string
	OpenRouterBaseURL string
	OpenRouterModel   string
}

// ProviderConfigFrom extracts the provider settings from cfg.
func ProviderConfigFrom(cfg *config.Config) ProviderConfig {
	return ProviderConfig{
		Provider:          cfg.Chat.Provider,
		AnthropicKey:      cfg.Anthropic.Key,
		AnthropicModel:    cfg.Anthropic.Model,
		OpenAIKey:         cfg.OpenAI.Key,
		OpenAIBaseURL:     cfg.OpenAI.BaseURL,
		OpenAIModel:       cfg.OpenAI.Model,
		OpenRouterKey:     cfg.OpenRouter.Key,
		OpenRouterBaseURL: cfg.OpenRouter.BaseURL,
		OpenRouterModel:   cfg.OpenRouter.Model,
	}
}

func (c ProviderConfig) provider() string {
	p := strings.ToLower(strings.TrimSpace(c.Provider))
	if p == "" {
		return ProviderAnthropic
	}
	return p
}

// check returns nil when the configured provider is known and has a key.
func (c ProviderConfig) check() error {
	switch p := c.provider(); p {
	case ProviderAnthropic:
		if c.AnthropicKey == "" {
			return &MissingCredentialError{Provider: p, Setting: "DASHBOARD_ANTHROPIC_KEY"}
		}
	case ProviderOpenAI:
		if c.OpenAIKey == "" {
			return &MissingCredentialError{Provider: p, Setting: "DASHBOARD_OPENAI_KEY"}
		}
	case ProviderOpenRouter:
		if c.OpenRouterKey == "" {
			return &MissingCredentialError{Provider: p, Setting: "DASHBOARD_OPENROUTER_KEY"}
		}
	default:
		return eris.Wrapf(ErrUnsupportedProvider, "%q", c.Provider)
	}
	return nil
}

// Select builds the Model for the configured provider. It never falls back
// to another provider.
func Select(cfg ProviderConfig) (Model, error) {
	if err := cfg.check(); err != nil {
		return nil, err
	}

	switch cfg.provider() {
	case ProviderOpenAI:
		return NewOpenAI(ProviderOpenAI, cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), nil
	case ProviderOpenRouter:
		return NewOpenAI(ProviderOpenRouter, cfg.OpenRouterKey, cfg.OpenRouterBaseURL, cfg.OpenRouterModel), nil
	default:
		return NewAnthropic(anthropic.NewClient(cfg.AnthropicKey), cfg.AnthropicModel), nil
	}
}

// Validate runs the same checks as Select without building a client.
func Validate(cfg ProviderConfig) (bool, string) {
	if err := cfg.check(); err != nil {
		return false, err.Error()
	}
	return true, fmt.Sprintf("provider %s configured", cfg.provider())
}

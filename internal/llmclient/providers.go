package llmclient

import (
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/axAilotl/companion-keeper/pkg/models"
)

// newOpenAIClient serves both the OpenAI-compatible and alternative-proxy
// provider kinds; the proxy case only ever differs in base URL.
func newOpenAIClient(cfg models.LLMConfig) (Client, error) {
	opts := []openai.Option{openai.WithModel(cfg.Model)}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("build openai-compatible client: %w", err)
	}
	return newResilientClient(model, cfg), nil
}

func newAnthropicClient(cfg models.LLMConfig) (Client, error) {
	opts := []anthropic.Option{anthropic.WithModel(cfg.Model)}
	if cfg.APIKey != "" {
		opts = append(opts, anthropic.WithToken(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}

	model, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("build anthropic client: %w", err)
	}
	return newResilientClient(model, cfg), nil
}

func newOllamaClient(cfg models.LLMConfig) (Client, error) {
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}

	model, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("build local ollama client: %w", err)
	}
	return newResilientClient(model, cfg), nil
}

func toLangchainMessages(messages []ChatMessage) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		out = append(out, llms.TextParts(roleToLangchain(m.Role), m.Content))
	}
	return out
}

func roleToLangchain(role models.Role) llms.ChatMessageType {
	switch role {
	case models.RoleSystem:
		return llms.ChatMessageTypeSystem
	case models.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

func callTimeout(cfg models.LLMConfig) time.Duration {
	if cfg.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(cfg.TimeoutSeconds) * time.Second
}

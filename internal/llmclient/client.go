// Package llmclient implements the external LLM client contract described
// in §6: a provider-agnostic chatComplete/chatCompleteJson surface backed by
// concrete OpenAI-compatible, local, proxy, and Anthropic-style providers,
// wrapped in a resilient layer that adds retry, backoff, and JSON repair.
package llmclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/axAilotl/companion-keeper/pkg/models"
)

// ErrAborted is returned in place of a raw context.Canceled/DeadlineExceeded
// when a call is cut short by cancellation, so callers can distinguish an
// aborted run from an actual provider failure via errors.Is (§5, §7).
var ErrAborted = errors.New("llmclient: call aborted")

// ChatMessage is one turn of a chat-style prompt.
type ChatMessage struct {
	Role    models.Role
	Content string
}

// RetryEvent is handed to an Options.OnRetry callback before each backoff
// delay, driving the progress events described in §4.6.11.
type RetryEvent struct {
	Attempt int
	Reason  string
}

// Options carries per-call tracing and retry-observation hooks (§6);
// cancellation comes from the call's context.
type Options struct {
	RequestTag string
	OnRetry    func(RetryEvent)
}

// JSONResult is the outcome of a chatCompleteJson call: the parsed payload
// plus the raw text it was extracted from.
type JSONResult struct {
	Parsed map[string]interface{}
	Raw    string
}

// Client is the capability the generation engine depends on. Implementations
// are tagged per provider kind; the engine never branches on provider.
type Client interface {
	ChatComplete(ctx context.Context, messages []ChatMessage, opts Options) (string, error)
	ChatCompleteJSON(ctx context.Context, messages []ChatMessage, opts Options) (*JSONResult, error)
}

// New builds a Client for the given config's provider kind.
func New(cfg models.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case models.ProviderOpenAICompatible, models.ProviderProxy:
		return newOpenAIClient(cfg)
	case models.ProviderLocal:
		return newOllamaClient(cfg)
	case models.ProviderAnthropic:
		return newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider kind: %q", cfg.Provider)
	}
}

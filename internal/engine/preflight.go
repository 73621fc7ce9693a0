package engine

import (
	"context"

	"github.com/axAilotl/companion-keeper/internal/llmclient"
	"github.com/axAilotl/companion-keeper/pkg/models"
)

// runPreflight issues a single low-cost ping call at temperature 0 with a
// small max-tokens cap to confirm the configured provider/model pair is
// actually reachable before spending retry budget on a full run (§4.6.3).
func runPreflight(ctx context.Context, cfg models.LLMConfig) error {
	preflightCfg := cfg
	preflightCfg.Temperature = 0
	preflightCfg.MaxTokens = 64

	client, err := llmclient.New(preflightCfg)
	if err != nil {
		return &ProviderPreflightError{Err: err}
	}

	messages := []llmclient.ChatMessage{
		{Role: models.RoleSystem, Content: "Reply with exactly: OK"},
		{Role: models.RoleUser, Content: "OK"},
	}
	reply, err := client.ChatComplete(ctx, messages, llmclient.Options{RequestTag: "preflight"})
	if err != nil {
		return &ProviderPreflightError{Err: err}
	}
	if reply == "" {
		return &ProviderPreflightError{Err: errEmptyPreflightReply}
	}
	return nil
}

var errEmptyPreflightReply = preflightEmptyReplyError{}

type preflightEmptyReplyError struct{}

func (preflightEmptyReplyError) Error() string { return "provider returned an empty reply" }

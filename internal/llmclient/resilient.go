package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"golang.org/x/time/rate"

	"github.com/axAilotl/companion-keeper/internal/logging"
	"github.com/axAilotl/companion-keeper/internal/retry"
	"github.com/axAilotl/companion-keeper/pkg/models"
)

// providerCallRate caps outbound calls per client instance so a bounded
// worker pool (§4.6.5) cannot burst past what the provider's own rate limit
// tolerates; the retry/backoff layer still handles 429s it does slip past.
const providerCallRate = 4

// resilientClient wraps a langchaingo model with the call resilience
// described in §4.6.6/§7: a bounded retry budget with decorrelated-jitter
// backoff, run-log request/response tracing, JSON repair on the structured
// path, and a per-client rate limiter.
type resilientClient struct {
	model   llms.Model
	cfg     models.LLMConfig
	limiter *rate.Limiter
}

func newResilientClient(model llms.Model, cfg models.LLMConfig) *resilientClient {
	return &resilientClient{
		model:   model,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(time.Second/providerCallRate), providerCallRate),
	}
}

func (c *resilientClient) ChatComplete(ctx context.Context, messages []ChatMessage, opts Options) (string, error) {
	logger := logging.GetCurrentLogger()
	if logger != nil {
		logger.LogRequest(opts.RequestTag, c.cfg.Model, promptPreview(messages))
	}

	var response string
	call := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("llm call %s: rate limiter: %w", opts.RequestTag, err)
		}

		callCtx, cancel := context.WithTimeout(ctx, callTimeout(c.cfg))
		defer cancel()

		callOpts := []llms.CallOption{llms.WithTemperature(c.cfg.Temperature)}
		if c.cfg.MaxTokens > 0 {
			callOpts = append(callOpts, llms.WithMaxTokens(c.cfg.MaxTokens))
		}

		result, err := c.model.GenerateContent(callCtx, toLangchainMessages(messages), callOpts...)
		if err != nil {
			return fmt.Errorf("llm call %s: %w", opts.RequestTag, err)
		}
		if len(result.Choices) == 0 {
			return fmt.Errorf("llm call %s: empty response", opts.RequestTag)
		}
		response = result.Choices[0].Content
		return nil
	}

	err := retry.RetryLLMCall(ctx, call, func(attempt int, reason string, delay time.Duration) {
		if logger != nil {
			logger.Log("retrying %s (attempt %d/%d): %s, waiting %v", opts.RequestTag, attempt, retry.LLMCallRetryBudget, reason, delay)
		}
		if opts.OnRetry != nil {
			opts.OnRetry(RetryEvent{Attempt: attempt, Reason: reason})
		}
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("llm call %s aborted (%v): %w", opts.RequestTag, err, ErrAborted)
		}
		if logger != nil {
			logger.LogError(opts.RequestTag, err)
		}
		return "", err
	}

	if logger != nil {
		logger.LogResponse(opts.RequestTag, response)
	}
	return response, nil
}

// ChatCompleteJSON calls ChatComplete and shapes the result into a parsed
// object, extracting a JSON payload from surrounding prose or fences and
// repairing it before unmarshalling (§4.6.6).
func (c *resilientClient) ChatCompleteJSON(ctx context.Context, messages []ChatMessage, opts Options) (*JSONResult, error) {
	raw, err := c.ChatComplete(ctx, messages, opts)
	if err != nil {
		return nil, err
	}

	candidate := extractJSON(raw)
	repaired, stats, err := RepairJSON(candidate)
	if err != nil {
		return nil, fmt.Errorf("repair json response for %s: %w", opts.RequestTag, err)
	}

	if logger := logging.GetCurrentLogger(); logger != nil && stats.WasRepaired {
		logger.Log("json repair applied for %s: strategies=%s", opts.RequestTag, strings.Join(stats.RepairStrategies, ","))
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(repaired), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal repaired json for %s: %w", opts.RequestTag, err)
	}

	return &JSONResult{Parsed: parsed, Raw: raw}, nil
}

func promptPreview(messages []ChatMessage) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

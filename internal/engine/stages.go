package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/axAilotl/companion-keeper/internal/llmclient"
	"github.com/axAilotl/companion-keeper/internal/prompts"
	"github.com/axAilotl/companion-keeper/pkg/models"
)

// errCollector gathers per-item failures from concurrent worker-pool
// goroutines without racing (§4.6.10).
type errCollector struct {
	mu   sync.Mutex
	errs []string
}

func (c *errCollector) add(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, fmt.Sprintf(format, args...))
}

func (c *errCollector) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.errs))
	copy(out, c.errs)
	return out
}

// runPersonaObservationStage runs one persona-observation call per packet not
// already recorded in the checkpoint, bounded by workers concurrent calls
// (§4.6.2, §4.6.5). It never returns an error itself; a wholly failed stage
// is detected by the caller via len(errs) == len(packets).
func runPersonaObservationStage(ctx context.Context, client llmclient.Client, tmpl *prompts.Set, state *runState, tracker *progressTracker, companionName string, packets []models.ConversationPacket, workers int, budget contextBudget) []string {
	collector := &errCollector{}

	runWorkerPool(len(packets), workers, func(i int) {
		packet := packets[i]
		if state.hasObservation(packet.ConversationID) {
			return
		}

		tracker.callStarted()

		vars := map[string]string{
			"companion_name":  companionName,
			"conversation_id": packet.ConversationID,
			"transcript":      truncateToTokenBudget(packet.Transcript, budget.PerChatBudget),
		}
		systemPrompt, err := tmpl.Render(prompts.PersonaObservationSystem, vars)
		if err != nil {
			tracker.callFailed()
			collector.add("persona observation %s: %v", packet.ConversationID, err)
			return
		}
		userPrompt, err := tmpl.Render(prompts.PersonaObservationUser, vars)
		if err != nil {
			tracker.callFailed()
			collector.add("persona observation %s: %v", packet.ConversationID, err)
			return
		}

		messages := []llmclient.ChatMessage{
			{Role: models.RoleSystem, Content: systemPrompt},
			{Role: models.RoleUser, Content: userPrompt},
		}
		result, err := client.ChatCompleteJSON(ctx, messages, llmclient.Options{
			RequestTag: "persona_observation:" + packet.ConversationID,
			OnRetry: func(ev llmclient.RetryEvent) {
				tracker.retry(fmt.Sprintf("retrying persona observation for %s (attempt %d): %s", packet.ConversationID, ev.Attempt, ev.Reason))
			},
		})
		if err != nil {
			if errors.Is(err, llmclient.ErrAborted) {
				tracker.callAborted()
				return
			}
			tracker.callFailed()
			collector.add("persona observation %s: %v", packet.ConversationID, err)
			return
		}

		obs, err := decodePersonaObservation(result.Parsed, packet.ConversationID)
		if err != nil {
			tracker.callFailed()
			collector.add("persona observation %s: %v", packet.ConversationID, err)
			return
		}

		if err := state.recordPersonaObservation(packet.ConversationID, obs); err != nil {
			tracker.callFailed()
			collector.add("persona observation %s: recording result: %v", packet.ConversationID, err)
			return
		}

		tracker.callCompleted()
	})

	return collector.all()
}

// runMemoryExtractionStage mirrors runPersonaObservationStage for the
// memory-candidate extraction stage (§4.6.2).
func runMemoryExtractionStage(ctx context.Context, client llmclient.Client, tmpl *prompts.Set, state *runState, tracker *progressTracker, companionName string, packets []models.ConversationPacket, workers int, budget contextBudget) []string {
	collector := &errCollector{}

	runWorkerPool(len(packets), workers, func(i int) {
		packet := packets[i]
		if state.hasMemoryResult(packet.SourceFile) {
			return
		}

		tracker.callStarted()

		vars := map[string]string{
			"companion_name":  companionName,
			"conversation_id": packet.ConversationID,
			"transcript":      truncateToTokenBudget(packet.Transcript, budget.PerChatBudget),
		}
		systemPrompt, err := tmpl.Render(prompts.MemorySystem, vars)
		if err != nil {
			tracker.callFailed()
			collector.add("memory extraction %s: %v", packet.SourceFile, err)
			return
		}
		userPrompt, err := tmpl.Render(prompts.MemoryUser, vars)
		if err != nil {
			tracker.callFailed()
			collector.add("memory extraction %s: %v", packet.SourceFile, err)
			return
		}

		messages := []llmclient.ChatMessage{
			{Role: models.RoleSystem, Content: systemPrompt},
			{Role: models.RoleUser, Content: userPrompt},
		}
		result, err := client.ChatCompleteJSON(ctx, messages, llmclient.Options{
			RequestTag: "memory_extract:" + packet.ConversationID,
			OnRetry: func(ev llmclient.RetryEvent) {
				tracker.retry(fmt.Sprintf("retrying memory extraction for %s (attempt %d): %s", packet.SourceFile, ev.Attempt, ev.Reason))
			},
		})
		if err != nil {
			if errors.Is(err, llmclient.ErrAborted) {
				tracker.callAborted()
				return
			}
			tracker.callFailed()
			collector.add("memory extraction %s: %v", packet.SourceFile, err)
			return
		}

		candidates, err := decodeMemoryCandidates(result.Parsed, packet.ConversationID)
		if err != nil {
			tracker.callFailed()
			collector.add("memory extraction %s: %v", packet.SourceFile, err)
			return
		}

		size, mtimeMs := statFile(packet.SourceFile)
		if err := state.recordMemoryCandidates(packet.SourceFile, size, mtimeMs, candidates); err != nil {
			tracker.callFailed()
			collector.add("memory extraction %s: recording result: %v", packet.SourceFile, err)
			return
		}

		tracker.callCompleted()
	})

	return collector.all()
}

func decodePersonaObservation(parsed map[string]interface{}, conversationID string) (models.PersonaObservation, error) {
	raw, err := json.Marshal(parsed)
	if err != nil {
		return models.PersonaObservation{}, fmt.Errorf("re-marshal persona observation payload: %w", err)
	}
	var obs models.PersonaObservation
	if err := json.Unmarshal(raw, &obs); err != nil {
		return models.PersonaObservation{}, fmt.Errorf("decode persona observation payload: %w", err)
	}
	if obs.ConversationID == "" {
		obs.ConversationID = conversationID
	}
	return obs, nil
}

func decodeMemoryCandidates(parsed map[string]interface{}, conversationID string) ([]models.MemoryCandidate, error) {
	memoriesRaw, ok := parsed["memories"]
	if !ok {
		return nil, nil
	}
	raw, err := json.Marshal(memoriesRaw)
	if err != nil {
		return nil, fmt.Errorf("re-marshal memory candidates payload: %w", err)
	}
	var candidates []models.MemoryCandidate
	if err := json.Unmarshal(raw, &candidates); err != nil {
		return nil, fmt.Errorf("decode memory candidates payload: %w", err)
	}
	for i := range candidates {
		if candidates[i].SourceConversation == "" {
			candidates[i].SourceConversation = conversationID
		}
	}
	return candidates, nil
}

func statFile(path string) (size int64, mtimeMs int64) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0
	}
	return info.Size(), info.ModTime().UnixMilli()
}

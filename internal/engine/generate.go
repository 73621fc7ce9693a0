package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/axAilotl/companion-keeper/internal/card"
	"github.com/axAilotl/companion-keeper/internal/llmclient"
	"github.com/axAilotl/companion-keeper/internal/memory"
	"github.com/axAilotl/companion-keeper/internal/prompts"
	"github.com/axAilotl/companion-keeper/pkg/models"
)

// existingMemoryDecay is subtracted from an existing lorebook entry's
// priority before it re-enters compaction in an append-memories run, so a
// long-standing entry still wins ties against a freshly extracted duplicate
// but no longer crowds out newer, more specific memories indefinitely.
const existingMemoryDecay = 1

// defaultCreator is the creator written into every shaped card; no run
// input sets a different one.
const defaultCreator = "unknown"

// Input bundles everything one generation run needs (§4.6.1).
type Input struct {
	Request          models.GenerationRequest
	AvailableFiles   []string
	AppendMemories   bool
	ExistingCard     models.CharacterCardDraft
	ExistingMemories []models.LorebookEntry
	OnProgress       func(models.ProgressEvent)
}

// Run drives one generation run end to end: preflight, concurrent
// persona-observation/memory-extraction, synthesis, card/lorebook shaping,
// and artifact writing, honoring resume, cancellation, and the append-mode
// persona skip (§4.6.1, §4.6.2).
func Run(ctx context.Context, in Input) (models.GenerationOutput, error) {
	req := in.Request

	budget := deriveContextBudget(req.LLM.ContextWindow)

	sampling := req.Sampling
	clampedMaxTotalChars, maxTotalCharsClamped := clampMaxTotalChars(sampling.MaxTotalChars, budget.ContextWindow)
	sampling.MaxTotalChars = clampedMaxTotalChars

	packets, _, err := selectAndBuildPackets(in.AvailableFiles, sampling)
	if err != nil {
		return models.GenerationOutput{}, err
	}
	if len(packets) == 0 {
		return models.GenerationOutput{
			Status: "failed",
			Errors: []string{"no conversations were selected for this run"},
		}, nil
	}

	signature := ComputeSignature(SignatureInputs{
		ModelDir:                   req.ModelDir,
		PrimaryModel:               req.LLM.Model,
		CompanionName:              req.CompanionName,
		SamplingPolicy:             string(sampling.Policy),
		SamplingSeed:               sampling.Seed,
		MaxMessagesPerConversation: sampling.MaxMessagesPerConversation,
		MaxCharsPerConversation:    sampling.MaxCharsPerConversation,
		MaxTotalChars:              sampling.MaxTotalChars,
		ContextWindow:              req.LLM.ContextWindow,
	})

	checkpoint := loadCheckpoint(req.RunDir, signature, req.ForceRerun)
	scanManifest := loadScanManifest(req.RunDir, req.ModelDir, req.ForceRerun)
	state := newRunState(req.RunDir, checkpoint, scanManifest)

	tmpl := prompts.NewSet()
	if err := tmpl.LoadOverrides(filepath.Join(req.ModelDir, "prompt_overrides")); err != nil {
		return models.GenerationOutput{}, err
	}
	tmpl.ApplyOverrides(req.PromptOverrides)

	workers := clampParallelism(req.MaxParallelCalls)

	personaPacketCount := 0
	if !in.AppendMemories {
		personaPacketCount = len(packets)
	}
	tracker := newProgressTracker(totalCalls(in.AppendMemories, personaPacketCount, len(packets), true), in.OnProgress)
	tracker.setPhase(models.PhaseInit, fmt.Sprintf("selected %d conversations", len(packets)))
	if maxTotalCharsClamped {
		tracker.notice(fmt.Sprintf("maxTotalChars clamped to %d to fit the model's context window", clampedMaxTotalChars))
	}

	tracker.setPhase(models.PhasePreflight, "checking provider reachability")
	tracker.callStarted()
	if err := runPreflight(ctx, req.LLM); err != nil {
		tracker.callFailed()
		return models.GenerationOutput{Status: "failed", Errors: []string{err.Error()}}, err
	}
	tracker.callCompleted()

	if err := ctx.Err(); err != nil {
		return models.GenerationOutput{Status: "cancelled"}, Aborted
	}

	client, err := llmclient.New(req.LLM)
	if err != nil {
		return models.GenerationOutput{}, err
	}

	conversationIDs := make([]string, len(packets))
	sourceFiles := make([]string, len(packets))
	for i, p := range packets {
		conversationIDs[i] = p.ConversationID
		sourceFiles[i] = p.SourceFile
	}

	var personaErrs, memoryErrs []string
	done := make(chan struct{}, 2)

	if !in.AppendMemories {
		tracker.setPhase(models.PhasePersonaObservation, "extracting persona observations")
		go func() {
			personaErrs = runPersonaObservationStage(ctx, client, tmpl, state, tracker, req.CompanionName, packets, workers, budget)
			done <- struct{}{}
		}()
	} else {
		done <- struct{}{}
	}

	tracker.setPhase(models.PhaseMemoryExtract, "extracting memory candidates")
	go func() {
		memoryErrs = runMemoryExtractionStage(ctx, client, tmpl, state, tracker, req.CompanionName, packets, workers, budget)
		done <- struct{}{}
	}()

	<-done
	<-done

	if err := ctx.Err(); err != nil {
		return models.GenerationOutput{Status: "cancelled"}, Aborted
	}

	allErrors := append([]string{}, personaErrs...)
	allErrors = append(allErrors, memoryErrs...)
	if !in.AppendMemories && len(personaErrs) > 0 && len(personaErrs) == personaPacketCount {
		stageErr := &StageExtractionError{Stage: "persona_observation", Errors: personaErrs}
		return models.GenerationOutput{Status: "failed", Errors: append(allErrors, stageErr.Error())}, stageErr
	}
	if len(memoryErrs) > 0 && len(memoryErrs) == len(packets) {
		stageErr := &StageExtractionError{Stage: "memory_extract", Errors: memoryErrs}
		return models.GenerationOutput{Status: "failed", Errors: append(allErrors, stageErr.Error())}, stageErr
	}

	draft := in.ExistingCard
	var personaSourceFiles []string
	if !in.AppendMemories {
		observations := state.observationsInOrder(conversationIDs)
		if len(observations) > 0 {
			tracker.setPhase(models.PhasePersonaSynthesis, "synthesizing persona")
			synthesized, err := synthesizePersona(ctx, client, tmpl, tracker, req.CompanionName, observations, budget)
			if err != nil {
				if errors.Is(err, Aborted) {
					return models.GenerationOutput{Status: "cancelled"}, Aborted
				}
				return models.GenerationOutput{Status: "failed", Errors: allErrors}, &SynthesisError{Stage: "persona", Err: err}
			}
			draft = synthesized
			personaSourceFiles = conversationIDs
		}
	}

	rawCandidates := state.candidatesInOrder(sourceFiles)
	if in.AppendMemories {
		rawCandidates = append(memory.ExistingMemoriesToCandidates(in.ExistingMemories, existingMemoryDecay), rawCandidates...)
	}
	compacted := memory.Compact(rawCandidates)

	maxMemories := req.MaxMemories
	if maxMemories <= 0 {
		maxMemories = 200
	}

	lorebook := memory.ToLorebook(compacted, maxMemories)
	if len(compacted) > 0 {
		tracker.setPhase(models.PhaseMemorySynthesis, "synthesizing memories")
		synthesized, err := synthesizeMemories(ctx, client, tmpl, tracker, req.CompanionName, compacted, maxMemories, budget)
		if err != nil {
			if errors.Is(err, Aborted) {
				return models.GenerationOutput{Status: "cancelled"}, Aborted
			}
			return models.GenerationOutput{Status: "failed", Errors: allErrors}, &SynthesisError{Stage: "memory", Err: err}
		}
		if len(synthesized) > 0 {
			lorebook = synthesized
		}
	}

	now := time.Now().UTC()
	shaped := card.ShapeCard(draft, card.ShapeOptions{
		Creator:             creatorOr(defaultCreator),
		CharacterVersion:    "1",
		CreatedAt:           now,
		ModifiedAt:          now,
		Lorebook:            lorebook,
		LorebookName:        req.CompanionName + " Memories",
		LorebookDescription: "Extracted and synthesized companion memories.",
	})
	wireLorebook := card.ShapeLorebook(req.CompanionName+" Memories", "Extracted and synthesized companion memories.", lorebook)

	tracker.setPhase(models.PhaseManifest, "writing run artifacts")
	if err := writeRunArtifacts(req.RunDir, shaped, wireLorebook, draft, lorebook, packets, allErrors); err != nil {
		return models.GenerationOutput{Status: "failed", Errors: allErrors}, err
	}
	if in.AppendMemories {
		if err := appendMemoryHistory(req.RunDir, newLorebookEntries(in.ExistingMemories, lorebook)); err != nil {
			return models.GenerationOutput{Status: "failed", Errors: allErrors}, err
		}
	}

	tracker.setPhase(models.PhaseDone, "generation complete")

	status := "ok"
	if len(allErrors) > 0 {
		status = "partial"
	}

	return models.GenerationOutput{
		Card:               draft,
		Lorebook:           lorebook,
		PersonaSourceFiles: personaSourceFiles,
		MemorySourceFiles:  sourceFiles,
		ProcessedFiles:     sourceFiles,
		CheckpointPath:      filepath.Join(req.RunDir, checkpointFileName),
		ScanManifestPath:    filepath.Join(req.RunDir, scanManifestFileName),
		Status:             status,
		Errors:             allErrors,
	}, nil
}

// newLorebookEntries returns the entries in updated whose name did not
// appear in existing, for the append-memories history log.
func newLorebookEntries(existing, updated []models.LorebookEntry) []models.LorebookEntry {
	seen := make(map[string]bool, len(existing))
	for _, e := range existing {
		seen[e.Name] = true
	}
	out := make([]models.LorebookEntry, 0)
	for _, e := range updated {
		if !seen[e.Name] {
			out = append(out, e)
		}
	}
	return out
}

func creatorOr(fallback string) string {
	if fallback == "" {
		return defaultCreator
	}
	return fallback
}

// synthesizePersona renders and calls the persona-synthesis prompt over the
// ordered observation set and decodes the result into a card draft (§4.6.2).
func synthesizePersona(ctx context.Context, client llmclient.Client, tmpl *prompts.Set, tracker *progressTracker, companionName string, observations []models.PersonaObservation, budget contextBudget) (models.CharacterCardDraft, error) {
	tracker.callStarted()

	packed, err := json.Marshal(observations)
	if err != nil {
		tracker.callFailed()
		return models.CharacterCardDraft{}, fmt.Errorf("marshal observation packets: %w", err)
	}

	vars := map[string]string{
		"companion_name":      companionName,
		"observation_packets": truncateToTokenBudget(string(packed), budget.SynthesisBudget),
	}
	systemPrompt, err := tmpl.Render(prompts.PersonaSynthesisSystem, vars)
	if err != nil {
		tracker.callFailed()
		return models.CharacterCardDraft{}, err
	}
	userPrompt, err := tmpl.Render(prompts.PersonaSynthesisUser, vars)
	if err != nil {
		tracker.callFailed()
		return models.CharacterCardDraft{}, err
	}

	messages := []llmclient.ChatMessage{
		{Role: models.RoleSystem, Content: systemPrompt},
		{Role: models.RoleUser, Content: userPrompt},
	}
	result, err := client.ChatCompleteJSON(ctx, messages, llmclient.Options{
		RequestTag: "persona_synthesis",
		OnRetry: func(ev llmclient.RetryEvent) {
			tracker.retry(fmt.Sprintf("retrying persona synthesis (attempt %d): %s", ev.Attempt, ev.Reason))
		},
	})
	if err != nil {
		if errors.Is(err, llmclient.ErrAborted) {
			tracker.callAborted()
			return models.CharacterCardDraft{}, Aborted
		}
		tracker.callFailed()
		return models.CharacterCardDraft{}, err
	}

	raw, err := json.Marshal(result.Parsed)
	if err != nil {
		tracker.callFailed()
		return models.CharacterCardDraft{}, fmt.Errorf("re-marshal persona synthesis payload: %w", err)
	}
	var draft models.CharacterCardDraft
	if err := json.Unmarshal(raw, &draft); err != nil {
		tracker.callFailed()
		return models.CharacterCardDraft{}, fmt.Errorf("decode persona synthesis payload: %w", err)
	}

	tracker.callCompleted()
	return draft, nil
}

// synthesizeMemories renders and calls the memory-synthesis prompt over the
// compacted candidate set (§4.6.2, §4.6.9).
func synthesizeMemories(ctx context.Context, client llmclient.Client, tmpl *prompts.Set, tracker *progressTracker, companionName string, candidates []models.MemoryCandidate, maxMemories int, budget contextBudget) ([]models.LorebookEntry, error) {
	tracker.callStarted()

	packed, err := json.Marshal(candidates)
	if err != nil {
		tracker.callFailed()
		return nil, fmt.Errorf("marshal candidate memories: %w", err)
	}

	vars := map[string]string{
		"companion_name":     companionName,
		"max_memories":       fmt.Sprintf("%d", maxMemories),
		"candidate_memories": truncateToTokenBudget(string(packed), budget.SynthesisBudget),
	}
	systemPrompt, err := tmpl.Render(prompts.MemorySynthesisSystem, vars)
	if err != nil {
		tracker.callFailed()
		return nil, err
	}
	userPrompt, err := tmpl.Render(prompts.MemorySynthesisUser, vars)
	if err != nil {
		tracker.callFailed()
		return nil, err
	}

	messages := []llmclient.ChatMessage{
		{Role: models.RoleSystem, Content: systemPrompt},
		{Role: models.RoleUser, Content: userPrompt},
	}
	result, err := client.ChatCompleteJSON(ctx, messages, llmclient.Options{
		RequestTag: "memory_synthesis",
		OnRetry: func(ev llmclient.RetryEvent) {
			tracker.retry(fmt.Sprintf("retrying memory synthesis (attempt %d): %s", ev.Attempt, ev.Reason))
		},
	})
	if err != nil {
		if errors.Is(err, llmclient.ErrAborted) {
			tracker.callAborted()
			return nil, Aborted
		}
		tracker.callFailed()
		return nil, err
	}

	memoriesRaw, ok := result.Parsed["memories"]
	if !ok {
		tracker.callCompleted()
		return nil, nil
	}
	raw, err := json.Marshal(memoriesRaw)
	if err != nil {
		tracker.callFailed()
		return nil, fmt.Errorf("re-marshal memory synthesis payload: %w", err)
	}
	var entries []models.LorebookEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		tracker.callFailed()
		return nil, fmt.Errorf("decode memory synthesis payload: %w", err)
	}

	tracker.callCompleted()
	return entries, nil
}

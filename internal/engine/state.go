package engine

import (
	"sync"

	"github.com/axAilotl/companion-keeper/pkg/models"
)

// runState owns the checkpoint and scan manifest for one run and serializes
// every write behind a single mutex, matching the "one-at-a-time write
// queue" discipline in §4.6.5 — a mutex gives the same ordering guarantee
// as a chained-promise queue without needing an async runtime.
type runState struct {
	mu         sync.Mutex
	runDir     string
	checkpoint *models.ResumeCheckpoint
	scanManifest *models.ScanManifest
}

func newRunState(runDir string, checkpoint *models.ResumeCheckpoint, scanManifest *models.ScanManifest) *runState {
	return &runState{runDir: runDir, checkpoint: checkpoint, scanManifest: scanManifest}
}

// recordPersonaObservation writes one conversation's parsed observation into
// the checkpoint and flushes it to disk before returning (§4.6.7).
func (s *runState) recordPersonaObservation(conversationID string, obs models.PersonaObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoint.PersonaObservationsByConvID[conversationID] = obs
	return saveCheckpoint(s.runDir, s.checkpoint)
}

// recordMemoryCandidates writes one source file's extracted candidates into
// the checkpoint, marks the file processed, updates the scan manifest, and
// flushes both before returning (§4.6.7).
func (s *runState) recordMemoryCandidates(sourceFile string, fileSize, fileMtimeMs int64, candidates []models.MemoryCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoint.MemoryCandidatesBySourceFile[sourceFile] = candidates
	if !containsString(s.checkpoint.ProcessedMemoryFiles, sourceFile) {
		s.checkpoint.ProcessedMemoryFiles = append(s.checkpoint.ProcessedMemoryFiles, sourceFile)
	}
	if err := saveCheckpoint(s.runDir, s.checkpoint); err != nil {
		return err
	}

	s.scanManifest.ScannedFiles[sourceFile] = models.ScannedFileInfo{
		FileSize:    fileSize,
		FileMtimeMs: fileMtimeMs,
		ScannedAt:   nowUTC(),
	}
	return saveScanManifest(s.runDir, s.scanManifest)
}

func (s *runState) hasObservation(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	obs, ok := s.checkpoint.PersonaObservationsByConvID[conversationID]
	return ok && !isEmptyObservation(obs)
}

func (s *runState) hasMemoryResult(sourceFile string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, inCandidates := s.checkpoint.MemoryCandidatesBySourceFile[sourceFile]
	return inCandidates && containsString(s.checkpoint.ProcessedMemoryFiles, sourceFile)
}

// observationsInOrder returns the checkpoint's persona observations ordered
// to match conversationIDs, skipping any conversation with no observation
// recorded. Synthesis relies on this fixed order to stay reproducible under
// a fixed seed (§5 Ordering guarantees).
func (s *runState) observationsInOrder(conversationIDs []string) []models.PersonaObservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PersonaObservation, 0, len(conversationIDs))
	for _, id := range conversationIDs {
		if obs, ok := s.checkpoint.PersonaObservationsByConvID[id]; ok {
			out = append(out, obs)
		}
	}
	return out
}

// candidatesInOrder returns the checkpoint's memory candidates ordered to
// match sourceFiles (§5 Ordering guarantees).
func (s *runState) candidatesInOrder(sourceFiles []string) []models.MemoryCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.MemoryCandidate{}
	for _, file := range sourceFiles {
		out = append(out, s.checkpoint.MemoryCandidatesBySourceFile[file]...)
	}
	return out
}

func isEmptyObservation(obs models.PersonaObservation) bool {
	return len(obs.ObservedTraits) == 0 &&
		len(obs.VoiceMarkers) == 0 &&
		len(obs.RelationalPatterns) == 0 &&
		len(obs.EmotionalDynamics) == 0 &&
		len(obs.EvidenceSnippets) == 0
}

func containsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}

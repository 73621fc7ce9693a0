package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/axAilotl/companion-keeper/internal/logging"
	"github.com/axAilotl/companion-keeper/pkg/models"
)

const (
	checkpointFileName   = "generation_resume.json"
	scanManifestFileName = "scan_manifest.json"
)

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func emptyCheckpoint(signature string) *models.ResumeCheckpoint {
	now := nowUTC()
	return &models.ResumeCheckpoint{
		Version:                      1,
		Signature:                    signature,
		CreatedAtUtc:                 now,
		UpdatedAtUtc:                 now,
		PersonaObservationsByConvID:  map[string]models.PersonaObservation{},
		MemoryCandidatesBySourceFile: map[string][]models.MemoryCandidate{},
		ProcessedMemoryFiles:         []string{},
	}
}

// loadCheckpoint loads generation_resume.json from runDir, returning a fresh
// empty checkpoint if the file is missing, unparseable ("CheckpointCorrupt",
// §7 — treated as absent with no fatal error), or its signature doesn't
// match. forceRerun unconditionally returns an empty checkpoint.
//
// The legacy fallback described in §9 (accepting a checkpoint with no
// signature if persona/memory data is present) is intentionally omitted —
// see DESIGN.md.
func loadCheckpoint(runDir, signature string, forceRerun bool) *models.ResumeCheckpoint {
	if forceRerun {
		return emptyCheckpoint(signature)
	}

	path := filepath.Join(runDir, checkpointFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return emptyCheckpoint(signature)
	}

	var cp models.ResumeCheckpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		if logger := logging.GetCurrentLogger(); logger != nil {
			logger.Log("checkpoint %s is corrupt, starting fresh: %v", path, err)
		}
		return emptyCheckpoint(signature)
	}
	if cp.Signature != signature {
		return emptyCheckpoint(signature)
	}
	if cp.PersonaObservationsByConvID == nil {
		cp.PersonaObservationsByConvID = map[string]models.PersonaObservation{}
	}
	if cp.MemoryCandidatesBySourceFile == nil {
		cp.MemoryCandidatesBySourceFile = map[string][]models.MemoryCandidate{}
	}
	return &cp
}

// saveCheckpoint atomically persists the checkpoint via write-to-temp then
// rename, matching internal/cache's manifest discipline.
func saveCheckpoint(runDir string, cp *models.ResumeCheckpoint) error {
	cp.UpdatedAtUtc = nowUTC()
	path := filepath.Join(runDir, checkpointFileName)
	return atomicWriteJSON(path, cp)
}

func loadScanManifest(runDir, inputDir string, forceRerun bool) *models.ScanManifest {
	if !forceRerun {
		path := filepath.Join(runDir, scanManifestFileName)
		if data, err := os.ReadFile(path); err == nil {
			var sm models.ScanManifest
			if err := json.Unmarshal(data, &sm); err == nil {
				if sm.ScannedFiles == nil {
					sm.ScannedFiles = map[string]models.ScannedFileInfo{}
				}
				return &sm
			}
		}
	}

	now := nowUTC()
	return &models.ScanManifest{
		InputDir:     inputDir,
		CreatedAtUtc: now,
		UpdatedAtUtc: now,
		ScannedFiles: map[string]models.ScannedFileInfo{},
	}
}

func saveScanManifest(runDir string, sm *models.ScanManifest) error {
	sm.UpdatedAtUtc = nowUTC()
	path := filepath.Join(runDir, scanManifestFileName)
	return atomicWriteJSON(path, sm)
}

func atomicWriteJSON(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

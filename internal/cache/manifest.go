package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/axAilotl/companion-keeper/pkg/models"
)

func manifestPath(fingerprintDir string) string {
	return filepath.Join(fingerprintDir, "manifest.json")
}

func loadManifest(fingerprintDir string) (*models.ExtractionCacheManifest, error) {
	data, err := os.ReadFile(manifestPath(fingerprintDir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: read manifest: %w", err)
	}

	var m models.ExtractionCacheManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("cache: parse manifest: %w", err)
	}
	return &m, nil
}

// saveManifest writes the manifest via a temp-file-then-rename so a reader
// never observes a partially written file (§4.4).
func saveManifest(fingerprintDir string, m *models.ExtractionCacheManifest) error {
	if err := os.MkdirAll(fingerprintDir, 0755); err != nil {
		return fmt.Errorf("cache: create fingerprint dir: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: marshal manifest: %w", err)
	}

	final := manifestPath(fingerprintDir)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("cache: write temp manifest: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("cache: rename manifest: %w", err)
	}
	return nil
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

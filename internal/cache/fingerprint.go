package cache

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint hashes (resolved absolute path, size, floor(mtime ms)) into a
// stable identifier for one source export (§3).
func Fingerprint(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cache: resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("cache: stat: %w", err)
	}

	mtimeMs := info.ModTime().UnixMilli()
	payload := fmt.Sprintf("%s|%d|%d", abs, info.Size(), mtimeMs)

	sum := blake2b.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:]), nil
}

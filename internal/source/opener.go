// Package source resolves a filesystem path to a byte stream: a raw file,
// or the conversations.json entry inside a ZIP archive (§4.2).
package source

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Kind identifies how a source path was opened.
type Kind string

const (
	KindJSON Kind = "json"
	KindZIP  Kind = "zip"
)

var (
	ErrNotAFile               = errors.New("source: not a file")
	ErrConversationsJSONMissing = errors.New("source: conversations.json not found in archive")
	ErrArchiveCorrupt         = errors.New("source: archive is corrupt")
)

// Stream is an opened source: a byte reader plus its kind, closing which
// also closes any underlying archive so partial reads never leak file
// descriptors.
type Stream struct {
	Kind   Kind
	Reader io.ReadCloser

	archive *zip.ReadCloser
}

// Close closes the entry reader and, for ZIP sources, the archive itself.
func (s *Stream) Close() error {
	var firstErr error
	if s.Reader != nil {
		if err := s.Reader.Close(); err != nil {
			firstErr = err
		}
	}
	if s.archive != nil {
		if err := s.archive.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Open resolves path to a Stream. ZIP archives are detected by extension;
// their conversations.json entry is matched case-insensitively by basename.
func Open(path string) (*Stream, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotAFile, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotAFile, path)
	}

	if isZipPath(path) {
		return openZip(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotAFile, path, err)
	}
	return &Stream{Kind: KindJSON, Reader: f}, nil
}

func isZipPath(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".zip")
}

func openZip(path string) (*Stream, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArchiveCorrupt, path, err)
	}

	for _, f := range archive.File {
		if strings.EqualFold(baseName(f.Name), "conversations.json") {
			rc, err := f.Open()
			if err != nil {
				archive.Close()
				return nil, fmt.Errorf("%w: opening entry %s: %v", ErrArchiveCorrupt, f.Name, err)
			}
			return &Stream{Kind: KindZIP, Reader: rc, archive: archive}, nil
		}
	}

	archive.Close()
	return nil, fmt.Errorf("%w: %s", ErrConversationsJSONMissing, path)
}

func baseName(entryName string) string {
	entryName = strings.ReplaceAll(entryName, "\\", "/")
	if idx := strings.LastIndex(entryName, "/"); idx != -1 {
		return entryName[idx+1:]
	}
	return entryName
}

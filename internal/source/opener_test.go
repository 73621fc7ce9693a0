package source

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func writeZip(t *testing.T, dir, name string, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for entryName, content := range entries {
		entry, err := w.Create(entryName)
		if err != nil {
			t.Fatalf("create entry %s: %v", entryName, err)
		}
		if _, err := entry.Write([]byte(content)); err != nil {
			t.Fatalf("write entry %s: %v", entryName, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	return path
}

func TestOpen_PlainJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "conversations.json", `[{"a":1}]`)

	stream, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stream.Close()

	if stream.Kind != KindJSON {
		t.Errorf("expected KindJSON, got %s", stream.Kind)
	}
}

func TestOpen_ZipWithConversationsJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeZip(t, dir, "export.zip", map[string]string{
		"export/conversations.json": `[{"a":1}]`,
		"export/user.json":          `{}`,
	})

	stream, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stream.Close()

	if stream.Kind != KindZIP {
		t.Errorf("expected KindZIP, got %s", stream.Kind)
	}
}

func TestOpen_ZipMissingConversationsJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeZip(t, dir, "export.zip", map[string]string{
		"export/user.json": `{}`,
	})

	_, err := Open(path)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestOpen_NonExistentPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("expected error")
	}
}

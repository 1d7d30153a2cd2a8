package storage

import (
	"path/filepath"
	"testing"
)

func TestResolveDBPathUsesDataDir(t *testing.T) {
	originalResolver := dataDirResolver
	t.Cleanup(func() {
		dataDirResolver = originalResolver
	})

	tempDir := t.TempDir()
	dataDirResolver = func() string {
		return tempDir
	}

	got := resolveDBPath()
	want := filepath.Join(tempDir, "clipcast.db")
	if got != want {
		t.Fatalf("resolveDBPath() = %q, want %q", got, want)
	}
}

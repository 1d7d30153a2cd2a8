package log

import (
	"path/filepath"
	"testing"
)

func TestResolveLogDirDefaultsToCurrentDir(t *testing.T) {
	old := LogDir
	t.Cleanup(func() { LogDir = old })

	LogDir = "   "
	if got := ResolveLogDir(); got != "." {
		t.Fatalf("ResolveLogDir() = %q, want %q", got, ".")
	}
}

func TestResolveLogFilePath(t *testing.T) {
	old := LogDir
	t.Cleanup(func() { LogDir = old })

	LogDir = "somewhere"
	want := filepath.Join("somewhere", logFileName)
	if got := ResolveLogFilePath(); got != want {
		t.Fatalf("ResolveLogFilePath() = %q, want %q", got, want)
	}
}

func TestGetLoggerNeverNil(t *testing.T) {
	old := Logger
	t.Cleanup(func() { Logger = old })

	Logger = nil
	if GetLogger() == nil {
		t.Fatal("GetLogger() returned nil")
	}
}

package skills

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeManifest(t *testing.T, dir, manifestJSON string, runnable string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(manifestJSON), 0o644); err != nil {
		t.Fatalf("WriteFile manifest: %v", err)
	}
	if runnable != "" {
		if err := os.WriteFile(filepath.Join(dir, runnable), []byte("#!/bin/sh\ncat\n"), 0o755); err != nil {
			t.Fatalf("WriteFile runnable: %v", err)
		}
	}
}

func TestLoadEntryResolvesExecutableAndDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"name":"echo","description":"echoes input"}`, "run.sh")

	entry, err := loadEntry(dir)
	if err != nil {
		t.Fatalf("loadEntry: %v", err)
	}
	if entry.Manifest.Name != "echo" {
		t.Fatalf("Name = %q, want echo", entry.Manifest.Name)
	}
	if entry.Manifest.Timeout() != defaultTimeout {
		t.Fatalf("Timeout = %v, want default %v", entry.Manifest.Timeout(), defaultTimeout)
	}
	if entry.Interpreter != "sh" {
		t.Fatalf("Interpreter = %q, want sh", entry.Interpreter)
	}
}

func TestLoadEntryHonorsExplicitTimeout(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"name":"slow","timeout":5}`, "run.py")

	entry, err := loadEntry(dir)
	if err != nil {
		t.Fatalf("loadEntry: %v", err)
	}
	if entry.Manifest.Timeout() != 5*time.Second {
		t.Fatalf("Timeout = %v, want 5s", entry.Manifest.Timeout())
	}
}

func TestLoadEntryRejectsMissingExecutable(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"name":"nothing"}`, "")

	if _, err := loadEntry(dir); err == nil {
		t.Fatal("expected an error when no runnable executable is present")
	}
}

func TestDiscoverAllSkipsInvalidDirectories(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "good"), `{"name":"good"}`, "run")
	// bad: manifest with no name.
	writeManifest(t, filepath.Join(root, "bad"), `{"description":"no name"}`, "run")

	entries, err := discoverAll(root)
	if err != nil {
		t.Fatalf("discoverAll: %v", err)
	}
	if len(entries) != 1 || entries[0].Manifest.Name != "good" {
		t.Fatalf("entries = %+v, want just 'good'", entries)
	}
}

func TestDiscoverAllToleratesMissingRoot(t *testing.T) {
	entries, err := discoverAll(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("discoverAll: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %+v, want none", entries)
	}
}

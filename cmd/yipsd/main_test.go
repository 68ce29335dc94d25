package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuildRootCmdIncludesServeSubcommand(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	if !names["serve"] {
		t.Fatal("expected the serve subcommand to be registered")
	}
}

func TestResolveSocketPathPrefersExplicitFlag(t *testing.T) {
	got := resolveSocketPath("/custom/daemon.sock")
	if got != "/custom/daemon.sock" {
		t.Fatalf("resolveSocketPath = %q, want /custom/daemon.sock", got)
	}
}

func TestResolveSocketPathUsesXDGRuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	got := resolveSocketPath("")
	want := filepath.Join("/run/user/1000", "yips", "daemon.sock")
	if got != want {
		t.Fatalf("resolveSocketPath = %q, want %q", got, want)
	}
}

func TestResolveSocketPathFallsBackToTmp(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")
	os.Unsetenv("XDG_RUNTIME_DIR")
	got := resolveSocketPath("")
	if got != "/tmp/yips/daemon.sock" {
		t.Fatalf("resolveSocketPath = %q, want /tmp/yips/daemon.sock", got)
	}
}

func TestServeCmdFlagDefaults(t *testing.T) {
	cmd := buildServeCmd()

	model, err := cmd.Flags().GetString("llm-model")
	if err != nil {
		t.Fatalf("GetString(llm-model): %v", err)
	}
	if model != "local-model" {
		t.Fatalf("llm-model default = %q, want local-model", model)
	}

	maxRounds, err := cmd.Flags().GetInt("max-rounds")
	if err != nil {
		t.Fatalf("GetInt(max-rounds): %v", err)
	}
	if maxRounds != 6 {
		t.Fatalf("max-rounds default = %d, want 6", maxRounds)
	}
}

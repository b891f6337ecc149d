package main

import (
	"path/filepath"
	"testing"
)

func TestRunVersionCommand(t *testing.T) {
	if code := run([]string{"version"}); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	if code := run([]string{"unknown-command"}); code == 0 {
		t.Fatalf("expected non-zero exit code for unknown command")
	}
}

func TestRunWithoutConfig(t *testing.T) {
	t.Setenv("GUESTCTL_CONFIG", filepath.Join(t.TempDir(), "config.yaml"))
	if code := run([]string{"job", "list"}); code != 1 {
		t.Fatalf("expected exit code 1 without a config, got %d", code)
	}
}

package policy

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitFor(t *testing.T, deadline time.Duration, cond func() bool) bool {
	t.Helper()
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestSourceWatcherInitialAvailability(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guard.rego")
	if err := os.WriteFile(path, []byte("package mcp.guard\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sw, err := NewSourceWatcher(path)
	if err != nil {
		t.Fatalf("create watcher: %v", err)
	}
	defer sw.Close()

	if !sw.Available() {
		t.Error("expected existing source to be available")
	}
}

func TestSourceWatcherMissingSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guard.rego")

	sw, err := NewSourceWatcher(path)
	if err != nil {
		t.Fatalf("create watcher: %v", err)
	}
	defer sw.Close()

	if sw.Available() {
		t.Error("expected missing source to be unavailable")
	}

	if err := os.WriteFile(path, []byte("package mcp.guard\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, 3*time.Second, sw.Available) {
		t.Error("source creation not observed")
	}
}

func TestSourceWatcherRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guard.rego")
	if err := os.WriteFile(path, []byte("package mcp.guard\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sw, err := NewSourceWatcher(path)
	if err != nil {
		t.Fatalf("create watcher: %v", err)
	}
	defer sw.Close()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, 3*time.Second, func() bool { return !sw.Available() }) {
		t.Error("source removal not observed")
	}
}

package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherDetectsModification(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	if err := os.WriteFile(path, []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewFileWatcher(dir, 10*time.Millisecond)
	w.scan() // baseline

	// Push the mtime forward explicitly; coarse filesystem clocks would
	// otherwise make this flaky.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	changed := w.scan()
	if len(changed) != 1 || changed[0] != path {
		t.Errorf("changed = %v", changed)
	}
	if again := w.scan(); len(again) != 0 {
		t.Errorf("second scan should be quiet, got %v", again)
	}
}

func TestWatcherIgnoresAgentDir(t *testing.T) {
	dir := t.TempDir()
	hidden := filepath.Join(dir, ".agent", "logs")
	if err := os.MkdirAll(hidden, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(hidden, "run.log")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewFileWatcher(dir, 10*time.Millisecond)
	w.scan()
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	if changed := w.scan(); len(changed) != 0 {
		t.Errorf(".agent changes must be ignored, got %v", changed)
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	w := NewFileWatcher(t.TempDir(), 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Watch(ctx, func([]string) {})
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop on cancel")
	}
}

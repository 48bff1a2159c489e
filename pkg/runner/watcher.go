package runner

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"shellcraft/pkg/logx"
)

// FileWatcher polls the workspace for source file modifications. Polling
// keeps the watcher dependency-free and works on every filesystem the
// assistant runs against.
type FileWatcher struct {
	lastSeen map[string]time.Time
	root     string
	interval time.Duration
}

// ignoredDirs are never scanned by the watcher.
var ignoredDirs = map[string]bool{
	".git":         true,
	".agent":       true,
	"node_modules": true,
	"target":       true,
	"vendor":       true,
	"dist":         true,
}

// NewFileWatcher creates a watcher over root polling at the given interval.
func NewFileWatcher(root string, interval time.Duration) *FileWatcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &FileWatcher{
		root:     root,
		interval: interval,
		lastSeen: make(map[string]time.Time),
	}
}

// scan returns paths modified since the previous scan.
func (w *FileWatcher) scan() []string {
	var changed []string
	_ = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if ignoredDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") && path != w.root {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		prev, seen := w.lastSeen[path]
		w.lastSeen[path] = info.ModTime()
		if seen && info.ModTime().After(prev) {
			changed = append(changed, path)
		}
		return nil
	})
	return changed
}

// Watch invokes onChange with the changed paths each time modifications are
// detected, until the context is done. The first scan primes the baseline
// without firing.
func (w *FileWatcher) Watch(ctx context.Context, onChange func([]string)) {
	logger := logx.NewLogger("watcher")
	w.scan() // prime baseline

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if changed := w.scan(); len(changed) > 0 {
				logger.Info("detected %d changed files", len(changed))
				onChange(changed)
			}
		}
	}
}

// AutonomousRunner reruns the workspace verification commands whenever
// watched files change.
type AutonomousRunner struct {
	runner  *CommandRunner
	watcher *FileWatcher
	logger  *logx.Logger
	workDir string
}

// NewAutonomousRunner creates an autonomous verification loop for workDir.
func NewAutonomousRunner(runner *CommandRunner, workDir string, interval time.Duration) *AutonomousRunner {
	return &AutonomousRunner{
		runner:  runner,
		watcher: NewFileWatcher(workDir, interval),
		logger:  logx.NewLogger("autonomous"),
		workDir: workDir,
	}
}

// Run blocks until the context is done, verifying on every change batch.
// Verification runs as a task graph so independent commands can overlap.
func (a *AutonomousRunner) Run(ctx context.Context) {
	a.logger.Info("watching %s for changes", a.workDir)
	executor := NewGraphExecutor(a.runner)
	a.watcher.Watch(ctx, func(changed []string) {
		graph := VerifyGraph(a.workDir)
		if len(graph.Tasks) == 0 {
			a.logger.Warn("no build tool detected, nothing to verify")
			return
		}
		if _, err := executor.Execute(ctx, graph); err != nil {
			a.logger.Error("verification failed after change: %v", err)
			return
		}
		a.logger.Info("verification passed after %d changes", len(changed))
	})
}

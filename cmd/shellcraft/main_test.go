package main

import (
	"context"
	"path/filepath"
	"testing"

	"shellcraft/pkg/config"
	"shellcraft/pkg/logx"
	"shellcraft/pkg/report"
)

func TestExitCommandSavesReportOnce(t *testing.T) {
	t.Cleanup(config.ResetForTest)
	workDir := t.TempDir()
	if err := config.Load(workDir); err != nil {
		t.Fatal(err)
	}

	s := &session{
		tracker: report.NewTracker(),
		logger:  logx.NewLogger("cli"),
		workDir: workDir,
	}

	reports := func() []string {
		matches, err := filepath.Glob(filepath.Join(workDir, ".agent", "reports", "session-*.md"))
		if err != nil {
			t.Fatal(err)
		}
		return matches
	}

	done, err := s.slashCommand(context.Background(), "/exit")
	if err != nil {
		t.Fatalf("slashCommand failed: %v", err)
	}
	if !done {
		t.Fatal("/exit should end the chat loop")
	}
	// Saving happens once, when the loop winds down.
	if got := reports(); len(got) != 0 {
		t.Fatalf("report saved before the loop exited: %v", got)
	}

	s.finish()
	if got := reports(); len(got) != 1 {
		t.Fatalf("reports after finish = %v, want exactly one", got)
	}
}

package logx

import (
	"strings"
	"testing"
)

func TestLoggerTagsLines(t *testing.T) {
	logger := NewLogger("planner")
	logger.Info("plan ready: %d edits", 3)

	lines := Tail(1)
	if len(lines) != 1 {
		t.Fatalf("expected 1 buffered line, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[planner]") {
		t.Errorf("line missing agent tag: %q", lines[0])
	}
	if !strings.Contains(lines[0], "INFO: plan ready: 3 edits") {
		t.Errorf("line missing message: %q", lines[0])
	}
}

func TestErrorfReturnsError(t *testing.T) {
	logger := NewLogger("worker")
	err := logger.Errorf("edit failed for %s", "main.go")
	if err == nil {
		t.Fatal("Errorf should return an error")
	}
	if err.Error() != "edit failed for main.go" {
		t.Errorf("unexpected error message: %q", err.Error())
	}
}

func TestWrapNilPassthrough(t *testing.T) {
	logger := NewLogger("worker")
	if err := logger.Wrap(nil, "context"); err != nil {
		t.Errorf("Wrap(nil) should return nil, got %v", err)
	}
}

func TestTailBounded(t *testing.T) {
	logger := NewLogger("runner")
	for i := 0; i < 5; i++ {
		logger.Info("line %d", i)
	}
	lines := Tail(3)
	if len(lines) != 3 {
		t.Fatalf("Tail(3) returned %d lines", len(lines))
	}
	if !strings.Contains(lines[2], "line 4") {
		t.Errorf("expected newest line last, got %q", lines[2])
	}
}

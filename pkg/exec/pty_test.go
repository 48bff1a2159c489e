package exec

import (
	"context"
	"strings"
	"testing"
)

func TestPTYExecCapturesOutput(t *testing.T) {
	e := NewPTYExec()
	if !e.Available() {
		t.Skip("no pseudo terminal available")
	}

	result, err := e.Run(context.Background(), []string{"sh", "-c", "echo hello from a terminal"}, ExecOpts{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("exit code = %d", result.ExitCode)
	}
	if !strings.Contains(result.Stdout, "hello from a terminal") {
		t.Errorf("stdout = %q", result.Stdout)
	}
	if result.ExecutorUsed != "pty" {
		t.Errorf("executor = %q", result.ExecutorUsed)
	}
}

func TestPTYExecInterleavesStderr(t *testing.T) {
	e := NewPTYExec()
	if !e.Available() {
		t.Skip("no pseudo terminal available")
	}

	result, err := e.Run(context.Background(), []string{"sh", "-c", "echo out; echo err >&2"}, ExecOpts{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(result.Stdout, "out") || !strings.Contains(result.Stdout, "err") {
		t.Errorf("terminal transcript = %q", result.Stdout)
	}
}

func TestPTYExecReportsExitCode(t *testing.T) {
	e := NewPTYExec()
	if !e.Available() {
		t.Skip("no pseudo terminal available")
	}

	result, err := e.Run(context.Background(), []string{"sh", "-c", "exit 3"}, ExecOpts{})
	if err != nil {
		t.Fatalf("non-zero exit should not be an error: %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", result.ExitCode)
	}
}

func TestPreferredFallsBackToLocal(t *testing.T) {
	e := Preferred()
	if e == nil {
		t.Fatal("Preferred returned nil")
	}
	if !e.Available() {
		t.Errorf("preferred executor %q is not available", e.Name())
	}
}

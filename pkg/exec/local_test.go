package exec

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestLocalExecRun(t *testing.T) {
	e := NewLocalExec()
	result, err := e.Run(context.Background(), []string{"echo", "hello"}, ExecOpts{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("exit code = %d", result.ExitCode)
	}
	if strings.TrimSpace(result.Stdout) != "hello" {
		t.Errorf("stdout = %q", result.Stdout)
	}
}

func TestLocalExecNonZeroExit(t *testing.T) {
	e := NewLocalExec()
	result, err := e.Run(context.Background(), []string{"sh", "-c", "exit 3"}, ExecOpts{})
	if err != nil {
		t.Fatalf("non-zero exit should not be an error: %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", result.ExitCode)
	}
}

func TestLocalExecEmptyCommand(t *testing.T) {
	e := NewLocalExec()
	if _, err := e.Run(context.Background(), nil, ExecOpts{}); err == nil {
		t.Error("empty command should be an error")
	}
}

func TestLocalExecWorkDir(t *testing.T) {
	e := NewLocalExec()
	dir := t.TempDir()
	result, err := e.Run(context.Background(), []string{"pwd"}, ExecOpts{WorkDir: dir})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(result.Stdout, dir) {
		t.Errorf("pwd = %q, want under %q", result.Stdout, dir)
	}
}

func TestLocalExecMissingWorkDir(t *testing.T) {
	e := NewLocalExec()
	if _, err := e.Run(context.Background(), []string{"pwd"}, ExecOpts{WorkDir: "/nonexistent-dir-zzz"}); err == nil {
		t.Error("missing workdir should be an error")
	}
}

func TestLocalExecTimeout(t *testing.T) {
	e := NewLocalExec()
	result, err := e.Run(context.Background(), []string{"sleep", "5"}, ExecOpts{Timeout: 50 * time.Millisecond})
	if err != nil && result.ExitCode == 0 {
		t.Fatalf("unexpected failure mode: %v", err)
	}
	if result.ExitCode == 0 {
		t.Error("timed out command should not report success")
	}
}

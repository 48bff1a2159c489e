package exec

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// LocalExec executes commands directly on the local system.
type LocalExec struct{}

// NewLocalExec creates a new local executor.
func NewLocalExec() *LocalExec {
	return &LocalExec{}
}

// Name returns the executor type name.
func (e *LocalExec) Name() string {
	return "local"
}

// Available returns true; local execution is always possible.
func (e *LocalExec) Available() bool {
	return true
}

// Run executes a command locally with the given options.
func (e *LocalExec) Run(ctx context.Context, cmd []string, opts ExecOpts) (ExecResult, error) {
	if len(cmd) == 0 {
		return ExecResult{}, fmt.Errorf("command cannot be empty")
	}

	start := time.Now()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	execCmd := exec.CommandContext(ctx, cmd[0], cmd[1:]...)
	if opts.WorkDir != "" {
		if _, err := os.Stat(opts.WorkDir); os.IsNotExist(err) {
			return ExecResult{}, fmt.Errorf("working directory does not exist: %s", opts.WorkDir)
		}
		execCmd.Dir = opts.WorkDir
	}
	if len(opts.Env) > 0 {
		execCmd.Env = append(os.Environ(), opts.Env...)
	}

	var stdoutBuf, stderrBuf strings.Builder
	execCmd.Stdout = &stdoutBuf
	execCmd.Stderr = &stderrBuf

	err := execCmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
			// Non-zero exit is reported via ExitCode, not the error.
			err = nil
		} else {
			exitCode = -1
		}
	}

	return ExecResult{
		Stdout:       stdoutBuf.String(),
		Stderr:       stderrBuf.String(),
		ExitCode:     exitCode,
		Duration:     time.Since(start),
		ExecutorUsed: e.Name(),
	}, err
}

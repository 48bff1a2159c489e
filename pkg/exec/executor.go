// Package exec abstracts command execution so tools can run against the
// local system today and other backends later.
package exec

import (
	"context"
	"time"
)

// ExecOpts controls a single command execution.
type ExecOpts struct {
	WorkDir string
	Env     []string
	Timeout time.Duration
}

// ExecResult captures the outcome of a command execution.
type ExecResult struct {
	Stdout       string
	Stderr       string
	ExecutorUsed string
	Duration     time.Duration
	ExitCode     int
}

// Executor runs commands.
type Executor interface {
	// Run executes cmd (argv form). A non-zero exit code is reported via
	// ExecResult.ExitCode, not the error.
	Run(ctx context.Context, cmd []string, opts ExecOpts) (ExecResult, error)
	// Name identifies the executor backend.
	Name() string
	// Available reports whether this backend can run commands right now.
	Available() bool
}

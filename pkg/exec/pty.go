package exec

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/creack/pty"
)

// ptyWinsize keeps tool output wrapped the way a normal terminal would.
var ptyWinsize = pty.Winsize{Cols: 120, Rows: 30}

// PTYExec runs commands under a pseudo terminal so child programs keep their
// interactive behavior (line buffering, progress output, colors). The
// terminal interleaves stdout and stderr; the combined transcript is
// reported as Stdout.
type PTYExec struct{}

// NewPTYExec creates a pseudo-terminal executor.
func NewPTYExec() *PTYExec {
	return &PTYExec{}
}

// Name returns the executor type name.
func (e *PTYExec) Name() string {
	return "pty"
}

// Available reports whether a pseudo terminal can be allocated.
func (e *PTYExec) Available() bool {
	master, slave, err := pty.Open()
	if err != nil {
		return false
	}
	master.Close()
	slave.Close()
	return true
}

// Run executes a command under a freshly allocated pseudo terminal and
// captures everything the terminal carried.
func (e *PTYExec) Run(ctx context.Context, cmd []string, opts ExecOpts) (ExecResult, error) {
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

	ws := ptyWinsize
	pt, err := pty.StartWithSize(execCmd, &ws)
	if err != nil {
		return ExecResult{}, fmt.Errorf("failed to start %q under a pty: %w", cmd[0], err)
	}

	var transcript strings.Builder
	// The master side returns EIO once the child exits; treat any read error
	// after copying as end of output.
	_, _ = io.Copy(&transcript, pt)
	pt.Close()

	err = execCmd.Wait()
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
		Stdout:       transcript.String(),
		ExitCode:     exitCode,
		Duration:     time.Since(start),
		ExecutorUsed: e.Name(),
	}, err
}

// Preferred returns the pseudo-terminal executor when one can be allocated,
// falling back to plain pipes.
func Preferred() Executor {
	if p := NewPTYExec(); p.Available() {
		return p
	}
	return NewLocalExec()
}

package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shellcraft/pkg/config"
	execpkg "shellcraft/pkg/exec"
	"shellcraft/pkg/logx"
	"shellcraft/pkg/metrics"
)

// RunResult is the outcome of a guarded command run.
type RunResult struct {
	Command  string
	Output   string
	LogPath  string
	Duration time.Duration
	ExitCode int
	Attempts int
	DryRun   bool
}

// CommandRunner executes shell commands with guardrails, retries, and log
// teeing to .agent/logs/<name>.log.
type CommandRunner struct {
	executor execpkg.Executor
	logger   *logx.Logger
	retries  int
	backoff  time.Duration
}

// NewCommandRunner creates a runner using the configured retry count.
func NewCommandRunner(executor execpkg.Executor) *CommandRunner {
	cfg := config.GetConfig()
	return &CommandRunner{
		executor: executor,
		logger:   logx.NewLogger("runner"),
		retries:  cfg.CommandRetries,
		backoff:  time.Second,
	}
}

// Run executes command under sh -c after the guardrail check, retrying
// failures with exponential backoff. name labels the log file and metrics.
func (r *CommandRunner) Run(ctx context.Context, name, command string) (RunResult, error) {
	cfg := config.GetConfig()

	if err := GuardCommand(command); err != nil {
		metrics.RecordToolRun(name, err)
		return RunResult{Command: command}, err
	}

	if cfg.DryRun {
		r.logger.Info("dry-run: would execute %q", command)
		return RunResult{Command: command, DryRun: true}, nil
	}

	var result RunResult
	result.Command = command
	backoff := r.backoff

	for attempt := 0; attempt <= r.retries; attempt++ {
		result.Attempts = attempt + 1
		if attempt > 0 {
			r.logger.Warn("retrying %q (attempt %d/%d) after %s", command, attempt+1, r.retries+1, backoff)
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		execResult, err := r.executor.Run(ctx, []string{"sh", "-c", command}, execpkg.ExecOpts{
			WorkDir: cfg.WorkDir,
		})
		if err != nil {
			metrics.RecordToolRun(name, err)
			return result, fmt.Errorf("failed to start %q: %w", command, err)
		}

		result.Output = combineOutput(execResult.Stdout, execResult.Stderr)
		result.ExitCode = execResult.ExitCode
		result.Duration = execResult.Duration

		if logPath, logErr := r.teeLog(name, command, result.Output, execResult.ExitCode); logErr == nil {
			result.LogPath = logPath
		} else {
			r.logger.Warn("failed to write command log: %v", logErr)
		}

		if execResult.ExitCode == 0 {
			metrics.RecordToolRun(name, nil)
			r.logger.Info("%s succeeded in %.2fs (attempt %d)", name, execResult.Duration.Seconds(), attempt+1)
			return result, nil
		}
		r.logger.Error("%s exited %d (attempt %d)", name, execResult.ExitCode, attempt+1)
	}

	err := fmt.Errorf("%s failed with exit code %d after %d attempts", name, result.ExitCode, result.Attempts)
	metrics.RecordToolRun(name, err)
	return result, err
}

func combineOutput(stdout, stderr string) string {
	if stderr == "" {
		return stdout
	}
	if stdout == "" {
		return stderr
	}
	return stdout + "\n" + stderr
}

// teeLog appends the run transcript to .agent/logs/<name>.log.
func (r *CommandRunner) teeLog(name, command, output string, exitCode int) (string, error) {
	path, err := config.AgentPath("logs", sanitizeLogName(name)+".log")
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to open log %s: %w", path, err)
	}
	defer f.Close()

	fmt.Fprintf(f, "--- %s | exit=%d | %s\n%s\n", time.Now().UTC().Format(time.RFC3339), exitCode, command, output)
	return path, nil
}

func sanitizeLogName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" {
		name = "command"
	}
	return filepath.Base(name)
}

// TailLog returns up to maxChars of the end of a command log file.
func TailLog(path string, maxChars int) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	s := string(data)
	if len(s) > maxChars {
		s = s[len(s)-maxChars:]
	}
	return s
}

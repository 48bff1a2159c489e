package runner

import (
	"context"
	"fmt"
	"strings"

	"shellcraft/pkg/agent/llm"
	"shellcraft/pkg/config"
	"shellcraft/pkg/editor"
	execpkg "shellcraft/pkg/exec"
)

// logTailChars bounds how much failure output is quoted to the model.
const logTailChars = 4000

// RunWithSelfHealing executes a verification command; on failure it asks the
// model for a patch based on the failure output and the current git diff,
// applies it, and retries. Healing stops after the configured attempt count.
func (r *CommandRunner) RunWithSelfHealing(ctx context.Context, client llm.LLMClient, name, command string) (RunResult, error) {
	result, err := r.Run(ctx, name, command)
	if err == nil {
		return result, nil
	}

	cfg := config.GetConfig()
	for attempt := 1; attempt <= cfg.HealAttempts; attempt++ {
		r.logger.Warn("self-healing attempt %d/%d for %q", attempt, cfg.HealAttempts, command)

		tail := TailLog(result.LogPath, logTailChars)
		if tail == "" {
			tail = result.Output
			if len(tail) > logTailChars {
				tail = tail[len(tail)-logTailChars:]
			}
		}
		gitDiff := r.currentDiff(ctx)

		patch, patchErr := llm.ProposePatch(ctx, client,
			fmt.Sprintf("Fix the failure of %q", command),
			fmt.Sprintf("Failure output:\n%s\n\nCurrent uncommitted changes:\n%s", tail, gitDiff))
		if patchErr != nil {
			return result, fmt.Errorf("self-healing failed to obtain patch: %w (original: %v)", patchErr, err)
		}
		if strings.TrimSpace(patch) == "" {
			return result, fmt.Errorf("self-healing produced no patch (original: %w)", err)
		}

		if applyErr := editor.ApplyPatch(cfg.WorkDir, patch); applyErr != nil {
			r.logger.Error("self-healing patch did not apply: %v", applyErr)
			return result, fmt.Errorf("self-healing patch failed: %w (original: %v)", applyErr, err)
		}
		r.logger.Info("self-healing patch applied, re-running %q", command)

		result, err = r.Run(ctx, name, command)
		if err == nil {
			return result, nil
		}
	}
	return result, fmt.Errorf("self-healing exhausted after %d attempts: %w", cfg.HealAttempts, err)
}

// currentDiff returns the uncommitted git diff, empty when git is absent or
// the workspace is not a repository.
func (r *CommandRunner) currentDiff(ctx context.Context) string {
	res, err := r.executor.Run(ctx, []string{"git", "diff"}, execpkg.ExecOpts{
		WorkDir: config.GetConfig().WorkDir,
	})
	if err != nil || res.ExitCode != 0 {
		return ""
	}
	return res.Stdout
}

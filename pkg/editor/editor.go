// Package editor applies changes to the workspace: whole-file rewrites,
// unified patches via patch(1), ad-hoc snippet execution, and handoff to the
// user's $EDITOR for manual review.
package editor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"shellcraft/pkg/config"
	"shellcraft/pkg/metrics"
	"shellcraft/pkg/utils"
)

// WriteFile applies a whole-file rewrite atomically. The path must stay
// inside the workspace.
func WriteFile(workDir, relPath, content string) error {
	if !utils.WithinRoot(workDir, relPath) {
		return fmt.Errorf("path %q escapes the workspace", relPath)
	}
	path := filepath.Join(workDir, relPath)
	if err := utils.AtomicWrite(path, []byte(content)); err != nil {
		return fmt.Errorf("failed to write %s: %w", relPath, err)
	}
	metrics.EditsApplied.Inc()
	return nil
}

// ApplyPatch applies a unified diff to the workspace with patch(1). The
// patch is validated with --dry-run first; a patch that fails validation is
// saved under .agent/patches/ for manual review and reported as an error.
func ApplyPatch(workDir, patchContent string) error {
	if strings.TrimSpace(patchContent) == "" {
		return fmt.Errorf("patch content is empty")
	}
	if _, err := exec.LookPath("patch"); err != nil {
		return fmt.Errorf("patch(1) not found on PATH: %w", err)
	}

	if err := runPatch(workDir, patchContent, true); err != nil {
		saved, saveErr := savePatch(patchContent)
		if saveErr != nil {
			return fmt.Errorf("patch validation failed: %w", err)
		}
		return fmt.Errorf("patch validation failed (saved to %s): %w", saved, err)
	}
	if err := runPatch(workDir, patchContent, false); err != nil {
		return fmt.Errorf("patch application failed: %w", err)
	}
	metrics.EditsApplied.Inc()
	return nil
}

func runPatch(workDir, patchContent string, dryRun bool) error {
	args := []string{"-p0", "--batch"}
	if dryRun {
		args = append(args, "--dry-run")
	}
	cmd := exec.Command("patch", args...)
	cmd.Dir = workDir
	cmd.Stdin = strings.NewReader(patchContent)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %s", err, strings.TrimSpace(out.String()))
	}
	return nil
}

// savePatch writes a rejected patch under .agent/patches/ named by content
// hash.
func savePatch(patchContent string) (string, error) {
	name := fmt.Sprintf("%s.patch", utils.ContentHash([]byte(patchContent)))
	path, err := config.AgentPath("patches", name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(patchContent), 0o644); err != nil {
		return "", fmt.Errorf("failed to save patch: %w", err)
	}
	return path, nil
}

// ExportPatch writes a patch artifact without applying it, used in dry-run
// mode. Returns the saved path.
func ExportPatch(patchContent string) (string, error) {
	return savePatch(patchContent)
}

// ExecuteSnippet writes a generated script to a temp file and runs it with
// the given interpreter. Output is combined stdout and stderr.
func ExecuteSnippet(ctx context.Context, interpreter, snippet string) (string, error) {
	ext := map[string]string{"python3": ".py", "bash": ".sh", "sh": ".sh", "node": ".js"}[interpreter]
	tmp, err := os.CreateTemp("", "shellcraft-snippet-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create snippet file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(snippet); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write snippet: %w", err)
	}
	tmp.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	cmd := exec.CommandContext(ctx, interpreter, tmp.Name())
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err = cmd.Run()
	return out.String(), err
}

// GuessEditor returns the user's editor from VISUAL, then EDITOR, falling
// back to vi.
func GuessEditor() string {
	if v := os.Getenv("VISUAL"); v != "" {
		return v
	}
	if v := os.Getenv("EDITOR"); v != "" {
		return v
	}
	return "vi"
}

// OpenInEditor opens path in the user's editor, connected to the terminal.
func OpenInEditor(path string) error {
	cmd := exec.Command(GuessEditor(), path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("editor exited with error: %w", err)
	}
	return nil
}

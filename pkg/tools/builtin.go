package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"shellcraft/pkg/agent/llm"
	"shellcraft/pkg/editor"
	"shellcraft/pkg/exec"
	"shellcraft/pkg/runner"
	"shellcraft/pkg/utils"
)

// Canonical tool names. The loop treats ToolDone and ToolSubmitPlan as
// terminal signals.
const (
	ToolShell      = "shell"
	ToolReadFile   = "read_file"
	ToolFileEdit   = "file_edit"
	ToolListFiles  = "list_files"
	ToolGetDiff    = "get_diff"
	ToolSubmitPlan = "submit_plan"
	ToolDone       = "done"
)

const (
	maxReadBytes    = 256 * 1024
	maxOutputChars  = 16 * 1024
	shellTimeout    = 5 * time.Minute
	maxListedFiles  = 500
)

func init() {
	Register(ToolShell, func(ac AgentContext) Tool { return &shellTool{ac} })
	Register(ToolReadFile, func(ac AgentContext) Tool { return &readFileTool{ac} })
	Register(ToolFileEdit, func(ac AgentContext) Tool { return &fileEditTool{ac} })
	Register(ToolListFiles, func(ac AgentContext) Tool { return &listFilesTool{ac} })
	Register(ToolGetDiff, func(ac AgentContext) Tool { return &getDiffTool{ac} })
	Register(ToolSubmitPlan, func(ac AgentContext) Tool { return &submitPlanTool{} })
	Register(ToolDone, func(ac AgentContext) Tool { return &doneTool{} })
}

type shellTool struct{ ac AgentContext }

func (t *shellTool) Name() string { return ToolShell }

func (t *shellTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ToolShell,
		Description: "Run a shell command in the workspace and return its output and exit code.",
		InputSchema: llm.InputSchema{
			Type: "object",
			Properties: map[string]llm.Property{
				"command": {Type: "string", Description: "Shell command to execute"},
			},
			Required: []string{"command"},
		},
	}
}

func (t *shellTool) Exec(ctx context.Context, args map[string]any) (map[string]any, error) {
	command, err := argString(args, "command")
	if err != nil {
		return nil, err
	}
	if t.ac.ReadOnly {
		return nil, fmt.Errorf("shell is not available in read-only mode")
	}
	if err := runner.GuardCommand(command); err != nil {
		return nil, err
	}
	result, err := t.ac.Executor.Run(ctx, []string{"sh", "-c", command}, exec.ExecOpts{
		WorkDir: t.ac.WorkDir,
		Timeout: shellTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("command execution failed: %w", err)
	}
	output := result.Stdout
	if result.Stderr != "" {
		output += "\n" + result.Stderr
	}
	return map[string]any{
		"output":    truncate(output, maxOutputChars),
		"exit_code": result.ExitCode,
	}, nil
}

type readFileTool struct{ ac AgentContext }

func (t *readFileTool) Name() string { return ToolReadFile }

func (t *readFileTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ToolReadFile,
		Description: "Read a file from the workspace. Path is relative to the project root.",
		InputSchema: llm.InputSchema{
			Type: "object",
			Properties: map[string]llm.Property{
				"path": {Type: "string", Description: "Workspace-relative file path"},
			},
			Required: []string{"path"},
		},
	}
}

func (t *readFileTool) Exec(_ context.Context, args map[string]any) (map[string]any, error) {
	rel, err := argString(args, "path")
	if err != nil {
		return nil, err
	}
	if !utils.WithinRoot(t.ac.WorkDir, rel) {
		return nil, fmt.Errorf("path %q escapes the workspace", rel)
	}
	data, err := os.ReadFile(filepath.Join(t.ac.WorkDir, rel))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rel, err)
	}
	if len(data) > maxReadBytes {
		data = data[:maxReadBytes]
	}
	return map[string]any{"content": string(data), "size": len(data)}, nil
}

type fileEditTool struct{ ac AgentContext }

func (t *fileEditTool) Name() string { return ToolFileEdit }

func (t *fileEditTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ToolFileEdit,
		Description: "Write the complete new content of one workspace file.",
		InputSchema: llm.InputSchema{
			Type: "object",
			Properties: map[string]llm.Property{
				"path":    {Type: "string", Description: "Workspace-relative file path"},
				"content": {Type: "string", Description: "Complete new file content"},
			},
			Required: []string{"path", "content"},
		},
	}
}

func (t *fileEditTool) Exec(_ context.Context, args map[string]any) (map[string]any, error) {
	rel, err := argString(args, "path")
	if err != nil {
		return nil, err
	}
	content, err := argString(args, "content")
	if err != nil {
		return nil, err
	}
	if t.ac.ReadOnly {
		return nil, fmt.Errorf("file_edit is not available in read-only mode")
	}
	if err := editor.WriteFile(t.ac.WorkDir, rel, content); err != nil {
		return nil, err
	}
	return map[string]any{"path": rel, "bytes": len(content)}, nil
}

type listFilesTool struct{ ac AgentContext }

func (t *listFilesTool) Name() string { return ToolListFiles }

func (t *listFilesTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ToolListFiles,
		Description: "List workspace files, optionally under a subdirectory.",
		InputSchema: llm.InputSchema{
			Type: "object",
			Properties: map[string]llm.Property{
				"dir": {Type: "string", Description: "Subdirectory to list, defaults to the root"},
			},
		},
	}
}

func (t *listFilesTool) Exec(_ context.Context, args map[string]any) (map[string]any, error) {
	sub := ""
	if v, ok := args["dir"].(string); ok {
		sub = v
	}
	root := t.ac.WorkDir
	if sub != "" {
		if !utils.WithinRoot(root, sub) {
			return nil, fmt.Errorf("path %q escapes the workspace", sub)
		}
		root = filepath.Join(root, sub)
	}
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if name != "." && (strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor" || name == "target") {
				if path != root {
					return filepath.SkipDir
				}
			}
			return nil
		}
		rel, relErr := filepath.Rel(t.ac.WorkDir, path)
		if relErr == nil {
			files = append(files, filepath.ToSlash(rel))
		}
		if len(files) >= maxListedFiles {
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	sort.Strings(files)
	return map[string]any{"files": files, "count": len(files)}, nil
}

type getDiffTool struct{ ac AgentContext }

func (t *getDiffTool) Name() string { return ToolGetDiff }

func (t *getDiffTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ToolGetDiff,
		Description: "Show uncommitted changes in the workspace as a unified diff.",
		InputSchema: llm.InputSchema{Type: "object", Properties: map[string]llm.Property{}},
	}
}

func (t *getDiffTool) Exec(ctx context.Context, args map[string]any) (map[string]any, error) {
	result, err := t.ac.Executor.Run(ctx, []string{"git", "diff"}, exec.ExecOpts{
		WorkDir: t.ac.WorkDir,
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("git diff failed: %w", err)
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("git diff exited %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return map[string]any{"diff": truncate(result.Stdout, maxOutputChars)}, nil
}

// submitPlanTool is a terminal signal: the loop stops and hands the plan
// payload back to the caller.
type submitPlanTool struct{}

func (t *submitPlanTool) Name() string { return ToolSubmitPlan }

func (t *submitPlanTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ToolSubmitPlan,
		Description: "Submit the final change plan. Call exactly once, when planning is complete.",
		InputSchema: llm.InputSchema{
			Type: "object",
			Properties: map[string]llm.Property{
				"plan": {Type: "string", Description: "The plan as a JSON object"},
			},
			Required: []string{"plan"},
		},
	}
}

func (t *submitPlanTool) Exec(_ context.Context, args map[string]any) (map[string]any, error) {
	plan, err := argString(args, "plan")
	if err != nil {
		return nil, err
	}
	return map[string]any{"plan": plan, "accepted": true}, nil
}

// doneTool is a terminal signal: the loop stops and reports the summary.
type doneTool struct{}

func (t *doneTool) Name() string { return ToolDone }

func (t *doneTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ToolDone,
		Description: "Signal that the task is complete, with a short summary of what was done.",
		InputSchema: llm.InputSchema{
			Type: "object",
			Properties: map[string]llm.Property{
				"summary": {Type: "string", Description: "What was accomplished"},
			},
			Required: []string{"summary"},
		},
	}
}

func (t *doneTool) Exec(_ context.Context, args map[string]any) (map[string]any, error) {
	summary, err := argString(args, "summary")
	if err != nil {
		return nil, err
	}
	return map[string]any{"summary": summary, "done": true}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n... (truncated)"
}

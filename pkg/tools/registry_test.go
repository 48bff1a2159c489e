package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"shellcraft/pkg/config"
	"shellcraft/pkg/exec"
)

func newTestProvider(t *testing.T, readOnly bool) (*Provider, string) {
	t.Helper()
	dir := t.TempDir()
	t.Cleanup(config.ResetForTest)
	if err := config.Load(dir); err != nil {
		t.Fatal(err)
	}
	p, err := DefaultProvider(AgentContext{
		Executor: exec.NewLocalExec(),
		WorkDir:  dir,
		ReadOnly: readOnly,
	})
	if err != nil {
		t.Fatalf("DefaultProvider failed: %v", err)
	}
	return p, dir
}

func TestProviderHasBuiltins(t *testing.T) {
	p, _ := newTestProvider(t, false)
	for _, name := range []string{ToolShell, ToolReadFile, ToolFileEdit, ToolListFiles, ToolGetDiff, ToolSubmitPlan, ToolDone} {
		if _, err := p.Get(name); err != nil {
			t.Errorf("missing builtin %s: %v", name, err)
		}
	}
	defs := p.Definitions()
	if len(defs) < 7 {
		t.Errorf("definitions = %d, want >= 7", len(defs))
	}
	for i := 1; i < len(defs); i++ {
		if defs[i-1].Name >= defs[i].Name {
			t.Error("definitions must be sorted by name")
			break
		}
	}
}

func TestRegistrySealPanics(t *testing.T) {
	r := NewRegistry()
	r.Register("a", func(AgentContext) Tool { return &doneTool{} })
	r.Seal()
	defer func() {
		if recover() == nil {
			t.Error("registering after seal must panic")
		}
	}()
	r.Register("b", func(AgentContext) Tool { return &doneTool{} })
}

func TestReadFileTool(t *testing.T) {
	p, dir := newTestProvider(t, false)
	if err := os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hi there"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := p.Exec(context.Background(), ToolReadFile, map[string]any{"path": "hello.txt"})
	if err != nil {
		t.Fatalf("read_file failed: %v", err)
	}
	if out["content"] != "hi there" {
		t.Errorf("content = %v", out["content"])
	}

	if _, err := p.Exec(context.Background(), ToolReadFile, map[string]any{"path": "../escape"}); err == nil {
		t.Error("path escape must be rejected")
	}
}

func TestFileEditTool(t *testing.T) {
	p, dir := newTestProvider(t, false)
	_, err := p.Exec(context.Background(), ToolFileEdit, map[string]any{
		"path":    "notes/todo.md",
		"content": "first\n",
	})
	if err != nil {
		t.Fatalf("file_edit failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "notes", "todo.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "first\n" {
		t.Errorf("content = %q", string(data))
	}
}

func TestFileEditReadOnly(t *testing.T) {
	p, _ := newTestProvider(t, true)
	_, err := p.Exec(context.Background(), ToolFileEdit, map[string]any{
		"path":    "x.txt",
		"content": "x",
	})
	if err == nil {
		t.Error("file_edit must fail in read-only mode")
	}
}

func TestListFilesTool(t *testing.T) {
	p, dir := newTestProvider(t, false)
	for _, rel := range []string{"a.go", "sub/b.go", ".hidden/c.go"} {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	out, err := p.Exec(context.Background(), ToolListFiles, nil)
	if err != nil {
		t.Fatalf("list_files failed: %v", err)
	}
	files, ok := out["files"].([]string)
	if !ok {
		t.Fatalf("files = %T", out["files"])
	}
	found := map[string]bool{}
	for _, f := range files {
		found[f] = true
	}
	if !found["a.go"] || !found["sub/b.go"] {
		t.Errorf("files = %v", files)
	}
	if found[".hidden/c.go"] {
		t.Error("hidden directories must be skipped")
	}
}

func TestDoneToolSignals(t *testing.T) {
	p, _ := newTestProvider(t, false)
	out, err := p.Exec(context.Background(), ToolDone, map[string]any{"summary": "all set"})
	if err != nil {
		t.Fatalf("done failed: %v", err)
	}
	if out["done"] != true || out["summary"] != "all set" {
		t.Errorf("out = %v", out)
	}
}

func TestShellToolMissingArg(t *testing.T) {
	p, _ := newTestProvider(t, false)
	if _, err := p.Exec(context.Background(), ToolShell, map[string]any{}); err == nil {
		t.Error("missing command argument must error")
	}
}

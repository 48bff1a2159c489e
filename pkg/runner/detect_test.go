package runner

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetectBuildTool(t *testing.T) {
	dir := t.TempDir()
	if _, ok := DetectBuildTool(dir); ok {
		t.Error("empty dir should detect nothing")
	}

	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tool, ok := DetectBuildTool(dir)
	if !ok || tool.Name != "go" {
		t.Errorf("tool = %+v, ok = %v", tool, ok)
	}
}

func TestDetectBuildToolOrder(t *testing.T) {
	// go.mod wins over Makefile when both are present.
	dir := t.TempDir()
	for _, f := range []string{"go.mod", "Makefile"} {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	tool, ok := DetectBuildTool(dir)
	if !ok || tool.Name != "go" {
		t.Errorf("tool = %+v", tool)
	}
}

func TestVerifyCommands(t *testing.T) {
	dir := t.TempDir()
	if cmds := VerifyCommands(dir); cmds != nil {
		t.Errorf("no toolchain should yield no commands, got %v", cmds)
	}

	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cmds := VerifyCommands(dir)
	if len(cmds) != 2 || cmds[0] != "go build ./..." || cmds[1] != "go test ./..." {
		t.Errorf("cmds = %v", cmds)
	}

	// pyproject.toml projects have no build step.
	pyDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(pyDir, "pyproject.toml"), []byte("[project]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if cmds := VerifyCommands(pyDir); len(cmds) != 1 {
		t.Errorf("python cmds = %v", cmds)
	}
}

func TestVerifyGraphLinksTestToBuild(t *testing.T) {
	dir := t.TempDir()
	if g := VerifyGraph(dir); len(g.Tasks) != 0 {
		t.Errorf("no toolchain should yield an empty graph, got %v", g.Tasks)
	}

	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	g := VerifyGraph(dir)
	if err := g.Validate(); err != nil {
		t.Fatalf("graph invalid: %v", err)
	}
	if len(g.Tasks) != 2 {
		t.Fatalf("tasks = %v", g.Tasks)
	}
	if g.Tasks[1].ID != "test" || len(g.Tasks[1].DependsOn) != 1 || g.Tasks[1].DependsOn[0] != "build" {
		t.Errorf("test task should depend on build, got %+v", g.Tasks[1])
	}

	// No build step means an independent test task.
	pyDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(pyDir, "pyproject.toml"), []byte("[project]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	pg := VerifyGraph(pyDir)
	if len(pg.Tasks) != 1 || len(pg.Tasks[0].DependsOn) != 0 {
		t.Errorf("python graph = %+v", pg.Tasks)
	}
}

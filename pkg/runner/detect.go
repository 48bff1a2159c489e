package runner

import (
	"os"
	"path/filepath"
)

// BuildTool pairs verification commands with the marker file that indicates
// the project uses them.
type BuildTool struct {
	Name       string
	MarkerFile string
	BuildCmd   string
	TestCmd    string
}

// buildTools lists the toolchains shellcraft knows how to verify, checked in
// order; the first marker match wins.
var buildTools = []BuildTool{
	{Name: "go", MarkerFile: "go.mod", BuildCmd: "go build ./...", TestCmd: "go test ./..."},
	{Name: "cargo", MarkerFile: "Cargo.toml", BuildCmd: "cargo build", TestCmd: "cargo test"},
	{Name: "npm", MarkerFile: "package.json", BuildCmd: "npm run build --if-present", TestCmd: "npm test --if-present"},
	{Name: "pytest", MarkerFile: "pyproject.toml", BuildCmd: "", TestCmd: "python3 -m pytest"},
	{Name: "make", MarkerFile: "Makefile", BuildCmd: "make", TestCmd: "make test"},
}

// DetectBuildTool returns the toolchain for the workspace, or false when no
// marker file is present.
func DetectBuildTool(workDir string) (BuildTool, bool) {
	for _, tool := range buildTools {
		if _, err := os.Stat(filepath.Join(workDir, tool.MarkerFile)); err == nil {
			return tool, true
		}
	}
	return BuildTool{}, false
}

// VerifyCommands returns the build and test commands for the workspace, in
// execution order. Empty when no toolchain is detected.
func VerifyCommands(workDir string) []string {
	tool, ok := DetectBuildTool(workDir)
	if !ok {
		return nil
	}
	var cmds []string
	if tool.BuildCmd != "" {
		cmds = append(cmds, tool.BuildCmd)
	}
	if tool.TestCmd != "" {
		cmds = append(cmds, tool.TestCmd)
	}
	return cmds
}

// VerifyGraph returns the verification commands as a task graph, the test
// task depending on the build task when both exist.
func VerifyGraph(workDir string) *TaskGraph {
	tool, ok := DetectBuildTool(workDir)
	if !ok {
		return &TaskGraph{}
	}
	g := &TaskGraph{}
	if tool.BuildCmd != "" {
		g.Tasks = append(g.Tasks, Task{ID: "build", Command: tool.BuildCmd})
	}
	if tool.TestCmd != "" {
		task := Task{ID: "test", Command: tool.TestCmd}
		if tool.BuildCmd != "" {
			task.DependsOn = []string{"build"}
		}
		g.Tasks = append(g.Tasks, task)
	}
	return g
}

// Package capabilities probes the environment the assistant is running in:
// which model providers have credentials and which command line tools are on
// PATH. The resulting manifest is rendered into the system prompt so the
// model only proposes actions the workspace can actually execute.
package capabilities

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"shellcraft/pkg/config"
)

// probedTools are the executables checked on PATH at manifest build time.
var probedTools = []string{"git", "go", "python3", "node", "npm", "cargo", "docker", "make", "patch", "rg"}

// Manifest describes the capabilities of the current environment.
type Manifest struct {
	// Providers maps provider name to key availability.
	Providers map[string]bool
	// Tools maps executable name to PATH availability.
	Tools map[string]bool
	// Workspace is the absolute workspace root.
	Workspace string
}

// Build probes provider credentials and PATH tools for the given workspace.
func Build(workDir string) *Manifest {
	m := &Manifest{
		Providers: make(map[string]bool),
		Tools:     make(map[string]bool),
		Workspace: workDir,
	}

	m.Providers[config.ProviderAnthropic] = os.Getenv("ANTHROPIC_API_KEY") != ""
	m.Providers[config.ProviderOpenAI] = os.Getenv("OPENAI_API_KEY") != ""
	m.Providers[config.ProviderGoogle] = os.Getenv("GEMINI_API_KEY") != "" || os.Getenv("GOOGLE_API_KEY") != ""
	// A local ollama daemon needs no credentials; assume reachable when the
	// host is configured or the binary is installed.
	m.Providers[config.ProviderOllama] = os.Getenv("OLLAMA_HOST") != "" || lookPath("ollama")

	for _, tool := range probedTools {
		m.Tools[tool] = lookPath(tool)
	}
	return m
}

func lookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// CanRun reports whether the named executable was found on PATH.
func (m *Manifest) CanRun(tool string) bool {
	return m.Tools[tool]
}

// HasProvider reports whether the named provider has credentials.
func (m *Manifest) HasProvider(provider string) bool {
	return m.Providers[provider]
}

// SystemPreamble renders the manifest as a system prompt fragment.
func (m *Manifest) SystemPreamble() string {
	var b strings.Builder
	b.WriteString("You are a coding assistant working in the repository at ")
	b.WriteString(m.Workspace)
	b.WriteString(".\n")

	available := make([]string, 0, len(m.Tools))
	for tool, ok := range m.Tools {
		if ok {
			available = append(available, tool)
		}
	}
	sort.Strings(available)
	if len(available) > 0 {
		fmt.Fprintf(&b, "Available command line tools: %s.\n", strings.Join(available, ", "))
	} else {
		b.WriteString("No development tools were found on PATH; do not propose shell actions.\n")
	}
	b.WriteString("Only propose commands using the tools listed above. Prefer small, reviewable changes.")
	return b.String()
}

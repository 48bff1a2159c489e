// Package planner turns a user goal plus a workspace inventory into a
// structured change plan: files to read, files to edit with intent, and
// verification commands to run.
package planner

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"shellcraft/pkg/agent/llm"
	"shellcraft/pkg/logx"
	"shellcraft/pkg/runner"
	"shellcraft/pkg/utils"
)

// EditPlan names one file to change and why.
type EditPlan struct {
	Path   string `json:"path"`
	Intent string `json:"intent"`
}

// Action is a shell command the plan wants executed after edits.
type Action struct {
	Run string `json:"run"`
}

// Plan is the structured output of planning: context files, edits, and
// follow-up actions.
type Plan struct {
	Notes   string     `json:"notes,omitempty"`
	Read    []string   `json:"read"`
	Edit    []EditPlan `json:"edit"`
	Actions []Action   `json:"actions"`
}

// maxIndexEntries bounds the inventory listing sent to the model. Larger
// workspaces are compacted down to the most plan-relevant files.
const maxIndexEntries = 800

// extensionWeight ranks files by how likely they are to matter for a code
// change. Source files outrank config, config outranks everything else.
var extensionWeight = map[string]int{
	".go": 3, ".rs": 3, ".py": 3, ".ts": 3, ".js": 3, ".java": 3, ".c": 3, ".h": 3,
	".toml": 2, ".yaml": 2, ".yml": 2, ".json": 2, ".mod": 2,
	".md": 1, ".txt": 1,
}

// Planner produces plans for a workspace using an LLM with a heuristic
// fallback.
type Planner struct {
	client  llm.LLMClient
	logger  *logx.Logger
	workDir string
}

// New returns a planner bound to a workspace and model client.
func New(client llm.LLMClient, workDir string) *Planner {
	return &Planner{
		client:  client,
		logger:  logx.NewLogger("planner"),
		workDir: workDir,
	}
}

// PlanChanges builds the workspace index, asks the model for a JSON plan,
// and falls back to keyword heuristics when the model reply cannot be
// parsed. The returned plan always uses workspace-relative paths.
func (p *Planner) PlanChanges(ctx context.Context, goal string) (*Plan, error) {
	files, err := FileInventory(p.workDir)
	if err != nil {
		return nil, p.logger.Wrap(err, "failed to index workspace")
	}
	index := CompactIndex(files)

	prompt := buildPlanPrompt(goal, index)
	p.logger.Debug("planning prompt: %d files, ~%d tokens", len(index), utils.EstimateTokens(prompt))
	var plan Plan
	if err := llm.ChatJSON(ctx, p.client, planSystemPrompt, prompt, &plan); err != nil {
		p.logger.Warn("model plan unavailable, using heuristic fallback: %v", err)
		fallback := FallbackPlan(goal, files)
		for _, cmd := range runner.VerifyCommands(p.workDir) {
			fallback.Actions = append(fallback.Actions, Action{Run: cmd})
		}
		return fallback, nil
	}
	normalizePlan(&plan)
	p.logger.Info("plan: %d read, %d edit, %d actions", len(plan.Read), len(plan.Edit), len(plan.Actions))
	return &plan, nil
}

const planSystemPrompt = `You are a senior engineer planning a code change.
Reply with a single JSON object of the shape
{"read": ["path"], "edit": [{"path": "path", "intent": "what to change"}], "actions": [{"run": "command"}], "notes": "optional"}.
Paths must be relative to the project root and come from the provided file index.
Keep the plan minimal: only files that must change, only commands that verify the change.`

func buildPlanPrompt(goal string, index []FileMeta) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n\nProject files (%d):\n", goal, len(index))
	for _, f := range index {
		fmt.Fprintf(&b, "%s (%d bytes)\n", f.Path, f.Size)
	}
	return b.String()
}

// CompactIndex trims an oversized inventory to maxIndexEntries, preferring
// recently modified files with plan-relevant extensions.
func CompactIndex(files []FileMeta) []FileMeta {
	if len(files) <= maxIndexEntries {
		return files
	}
	scored := make([]FileMeta, len(files))
	copy(scored, files)
	sort.SliceStable(scored, func(i, j int) bool {
		wi := extensionWeight[filepath.Ext(scored[i].Path)]
		wj := extensionWeight[filepath.Ext(scored[j].Path)]
		if wi != wj {
			return wi > wj
		}
		return scored[i].ModTime.After(scored[j].ModTime)
	})
	return scored[:maxIndexEntries]
}

// normalizePlan enforces plan invariants: relative slash paths, no
// duplicate edit targets, no empty entries.
func normalizePlan(plan *Plan) {
	seen := make(map[string]bool)
	var edits []EditPlan
	for _, e := range plan.Edit {
		e.Path = cleanRelPath(e.Path)
		if e.Path == "" || seen[e.Path] {
			continue
		}
		seen[e.Path] = true
		edits = append(edits, e)
	}
	plan.Edit = edits

	var reads []string
	readSeen := make(map[string]bool)
	for _, r := range plan.Read {
		r = cleanRelPath(r)
		if r == "" || readSeen[r] {
			continue
		}
		readSeen[r] = true
		reads = append(reads, r)
	}
	plan.Read = reads

	var actions []Action
	for _, a := range plan.Actions {
		if strings.TrimSpace(a.Run) != "" {
			actions = append(actions, a)
		}
	}
	plan.Actions = actions
}

func cleanRelPath(p string) string {
	p = filepath.ToSlash(strings.TrimSpace(p))
	p = strings.TrimPrefix(p, "./")
	if p == "" || strings.HasPrefix(p, "/") || strings.HasPrefix(p, "..") {
		return ""
	}
	return p
}

// fallbackCap bounds how many files the heuristic plan may touch.
const fallbackCap = 6

// FallbackPlan builds a plan without the model by matching goal keywords
// against file paths. Matched files become edit targets with the goal as
// intent; the rest of the top matches become read context.
func FallbackPlan(goal string, files []FileMeta) *Plan {
	keywords := goalKeywords(goal)

	type match struct {
		meta  FileMeta
		score int
	}
	var matches []match
	for _, f := range files {
		lower := strings.ToLower(f.Path)
		score := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				score += 2
			}
		}
		score += extensionWeight[filepath.Ext(f.Path)]
		if score > 0 {
			matches = append(matches, match{meta: f, score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	plan := &Plan{Notes: "heuristic plan (model unavailable)"}
	seen := make(map[string]bool)
	for _, m := range matches {
		if len(plan.Edit) >= fallbackCap {
			break
		}
		if seen[m.meta.Path] {
			continue
		}
		seen[m.meta.Path] = true
		plan.Edit = append(plan.Edit, EditPlan{Path: m.meta.Path, Intent: goal})
		plan.Read = append(plan.Read, m.meta.Path)
	}
	return plan
}

// goalKeywords extracts lowercase words longer than three characters from
// the goal, skipping common filler words.
func goalKeywords(goal string) []string {
	filler := map[string]bool{
		"that": true, "this": true, "with": true, "from": true, "into": true,
		"should": true, "make": true, "please": true, "file": true, "files": true,
		"code": true, "change": true, "update": true,
	}
	var out []string
	for _, w := range strings.Fields(strings.ToLower(goal)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) > 3 && !filler[w] {
			out = append(out, w)
		}
	}
	return out
}

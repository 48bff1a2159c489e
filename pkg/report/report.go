// Package report tracks session budgets and renders the end-of-session
// summary: model usage per provider, a timeline of notable events, and a
// metrics snapshot.
package report

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"shellcraft/pkg/config"
	"shellcraft/pkg/logx"
	"shellcraft/pkg/metrics"
)

// Budget caps the model spend for one session.
type Budget struct {
	MaxCalls  int
	MaxTokens int
}

// ErrBudgetExceeded is returned by Charge when a cap is hit.
type ErrBudgetExceeded struct {
	What  string
	Used  int
	Limit int
}

func (e *ErrBudgetExceeded) Error() string {
	return fmt.Sprintf("session %s budget exceeded: %d of %d used", e.What, e.Used, e.Limit)
}

// usageEntry accumulates tokens for one model.
type usageEntry struct {
	Provider         string
	Calls            int
	PromptTokens     int
	CompletionTokens int
}

// timelineEntry is one recorded event.
type timelineEntry struct {
	At     time.Time
	Kind   string
	Detail string
}

// Tracker accumulates usage and events for one session.
type Tracker struct {
	mu       sync.Mutex
	budget   Budget
	usage    map[string]*usageEntry
	timeline []timelineEntry
	started  time.Time
	calls    int
	tokens   int
}

// NewTracker creates a tracker with the configured budget.
func NewTracker() *Tracker {
	cfg := config.GetConfig()
	return &Tracker{
		budget:  Budget{MaxCalls: cfg.MaxLLMCalls, MaxTokens: cfg.MaxLLMTokens},
		usage:   make(map[string]*usageEntry),
		started: time.Now(),
	}
}

// Charge records one model call against the budget. Returns
// *ErrBudgetExceeded once a cap is crossed; the call itself is still
// recorded.
func (t *Tracker) Charge(model, provider string, promptTokens, completionTokens int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.usage[model]
	if !ok {
		entry = &usageEntry{Provider: provider}
		t.usage[model] = entry
	}
	entry.Calls++
	entry.PromptTokens += promptTokens
	entry.CompletionTokens += completionTokens

	t.calls++
	t.tokens += promptTokens + completionTokens

	if t.budget.MaxCalls > 0 && t.calls > t.budget.MaxCalls {
		return &ErrBudgetExceeded{What: "call", Used: t.calls, Limit: t.budget.MaxCalls}
	}
	if t.budget.MaxTokens > 0 && t.tokens > t.budget.MaxTokens {
		return &ErrBudgetExceeded{What: "token", Used: t.tokens, Limit: t.budget.MaxTokens}
	}
	return nil
}

// Event appends a timeline entry.
func (t *Tracker) Event(kind, detail string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeline = append(t.timeline, timelineEntry{At: time.Now(), Kind: kind, Detail: detail})
}

// Totals returns calls and tokens charged so far.
func (t *Tracker) Totals() (calls, tokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls, t.tokens
}

// EstimatedCost computes the dollar cost of recorded usage from registry
// pricing. Models without pricing contribute zero.
func (t *Tracker) EstimatedCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.estimatedCostLocked()
}

// Markdown renders the session report.
func (t *Tracker) Markdown() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var b strings.Builder
	b.WriteString("# Session Report\n\n")
	fmt.Fprintf(&b, "Duration: %s\n\n", time.Since(t.started).Round(time.Second))

	b.WriteString("## Model Usage\n\n")
	if len(t.usage) == 0 {
		b.WriteString("No model calls.\n\n")
	} else {
		b.WriteString("| Model | Provider | Calls | Prompt | Completion |\n")
		b.WriteString("|-------|----------|-------|--------|------------|\n")
		models := make([]string, 0, len(t.usage))
		for m := range t.usage {
			models = append(models, m)
		}
		sort.Strings(models)
		for _, m := range models {
			e := t.usage[m]
			fmt.Fprintf(&b, "| %s | %s | %d | %d | %d |\n", m, e.Provider, e.Calls, e.PromptTokens, e.CompletionTokens)
		}
		fmt.Fprintf(&b, "\nTotal: %d calls, %d tokens", t.calls, t.tokens)
		if cost := t.estimatedCostLocked(); cost > 0 {
			fmt.Fprintf(&b, ", ~$%.4f", cost)
		}
		b.WriteString("\n\n")
	}

	b.WriteString("## Timeline\n\n")
	if len(t.timeline) == 0 {
		b.WriteString("No events recorded.\n")
	} else {
		for _, e := range t.timeline {
			fmt.Fprintf(&b, "- %s %s: %s\n", e.At.Format("15:04:05"), e.Kind, e.Detail)
		}
	}

	if tail := logx.Tail(logTailLines); len(tail) > 0 {
		b.WriteString("\n## Recent Log\n\n```\n")
		for _, line := range tail {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("```\n")
	}
	return b.String()
}

// logTailLines bounds the log excerpt included in the report.
const logTailLines = 50

func (t *Tracker) estimatedCostLocked() float64 {
	total := 0.0
	for model, entry := range t.usage {
		info, ok := config.LookupModel(model)
		if !ok {
			continue
		}
		total += float64(entry.PromptTokens) / 1_000_000 * info.InputCPM
		total += float64(entry.CompletionTokens) / 1_000_000 * info.OutputCPM
	}
	return total
}

// Save writes the report and a metrics snapshot under .agent/reports/.
func (t *Tracker) Save() (string, error) {
	stamp := time.Now().UTC().Format("20060102-150405")
	path, err := config.AgentPath("reports", fmt.Sprintf("session-%s.md", stamp))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(t.Markdown()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	metricsPath, err := config.AgentPath("reports", fmt.Sprintf("metrics-%s.prom", stamp))
	if err != nil {
		return path, nil
	}
	// Snapshot failures do not invalidate the report.
	_ = metrics.WriteSnapshot(metricsPath)
	return path, nil
}

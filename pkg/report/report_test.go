package report

import (
	"errors"
	"os"
	"strings"
	"testing"

	"shellcraft/pkg/config"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	t.Cleanup(config.ResetForTest)
	if err := config.Load(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	return NewTracker()
}

func TestChargeAccumulates(t *testing.T) {
	tr := newTestTracker(t)
	if err := tr.Charge("gpt-4o", "openai", 100, 40); err != nil {
		t.Fatalf("Charge failed: %v", err)
	}
	if err := tr.Charge("gpt-4o", "openai", 50, 10); err != nil {
		t.Fatalf("Charge failed: %v", err)
	}
	calls, tokens := tr.Totals()
	if calls != 2 || tokens != 200 {
		t.Errorf("totals = %d calls, %d tokens", calls, tokens)
	}
}

func TestCallBudgetEnforced(t *testing.T) {
	t.Cleanup(config.ResetForTest)
	if err := config.Load(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	tr := NewTracker()
	tr.budget = Budget{MaxCalls: 2, MaxTokens: 0}

	if err := tr.Charge("m", "openai", 1, 1); err != nil {
		t.Fatal(err)
	}
	if err := tr.Charge("m", "openai", 1, 1); err != nil {
		t.Fatal(err)
	}
	err := tr.Charge("m", "openai", 1, 1)
	var budgetErr *ErrBudgetExceeded
	if !errors.As(err, &budgetErr) {
		t.Fatalf("expected budget error, got %v", err)
	}
	if budgetErr.What != "call" {
		t.Errorf("What = %q", budgetErr.What)
	}
}

func TestTokenBudgetEnforced(t *testing.T) {
	tr := newTestTracker(t)
	tr.budget = Budget{MaxTokens: 100}
	if err := tr.Charge("m", "openai", 80, 30); err == nil {
		t.Fatal("expected token budget error")
	}
}

func TestMarkdownReport(t *testing.T) {
	tr := newTestTracker(t)
	if err := tr.Charge("gpt-4o", "openai", 1000, 200); err != nil {
		t.Fatal(err)
	}
	tr.Event("plan", "2 edits")
	tr.Event("run", "go test ./...")

	md := tr.Markdown()
	for _, want := range []string{"# Session Report", "gpt-4o", "openai", "plan: 2 edits", "run: go test"} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q:\n%s", want, md)
		}
	}
}

func TestEstimatedCostUsesRegistry(t *testing.T) {
	tr := newTestTracker(t)
	// gpt-4o ships with pricing in the known model table.
	if err := tr.Charge("gpt-4o", "openai", 1_000_000, 0); err != nil {
		t.Fatal(err)
	}
	if cost := tr.EstimatedCost(); cost <= 0 {
		t.Errorf("cost = %v, want > 0", cost)
	}
	if cost := newTestTracker(t).EstimatedCost(); cost != 0 {
		t.Errorf("empty tracker cost = %v", cost)
	}
}

func TestSaveWritesReport(t *testing.T) {
	tr := newTestTracker(t)
	tr.Event("start", "session")
	path, err := tr.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "# Session Report") {
		t.Errorf("report content = %q", string(data))
	}
}

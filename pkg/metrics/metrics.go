// Package metrics exposes Prometheus counters for LLM and tool activity and
// can render a text snapshot of everything gathered for inclusion in session
// reports.
package metrics

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

var (
	registry = prometheus.NewRegistry()

	// LLMRequests counts completions by model and outcome.
	LLMRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shellcraft_llm_requests_total",
		Help: "LLM completion requests by model and outcome.",
	}, []string{"model", "outcome"})

	// LLMTokens counts tokens by model and direction (prompt/completion).
	LLMTokens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shellcraft_llm_tokens_total",
		Help: "LLM tokens consumed by model and direction.",
	}, []string{"model", "direction"})

	// ToolRuns counts guarded command executions by tool name.
	ToolRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shellcraft_tool_runs_total",
		Help: "Tool command executions by tool.",
	}, []string{"tool"})

	// ToolFailures counts failed command executions by tool name.
	ToolFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shellcraft_tool_failures_total",
		Help: "Failed tool command executions by tool.",
	}, []string{"tool"})

	// EditsApplied counts file edits written to the workspace.
	EditsApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shellcraft_edits_applied_total",
		Help: "File edits applied to the workspace.",
	})
)

func init() {
	registry.MustRegister(LLMRequests, LLMTokens, ToolRuns, ToolFailures, EditsApplied)
}

// RecordLLMRequest records one completion attempt.
func RecordLLMRequest(model string, promptTokens, completionTokens int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	LLMRequests.WithLabelValues(model, outcome).Inc()
	if promptTokens > 0 {
		LLMTokens.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokens.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}

// RecordToolRun records one guarded command execution.
func RecordToolRun(tool string, err error) {
	ToolRuns.WithLabelValues(tool).Inc()
	if err != nil {
		ToolFailures.WithLabelValues(tool).Inc()
	}
}

// WriteSnapshot renders all gathered metric families in Prometheus text
// exposition format to the given path.
func WriteSnapshot(path string) error {
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metrics snapshot: %w", err)
	}
	defer f.Close()

	enc := expfmt.NewEncoder(f, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, fam := range families {
		if err := enc.Encode(fam); err != nil {
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	return nil
}

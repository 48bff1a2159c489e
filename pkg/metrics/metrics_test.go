package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteSnapshotContainsRecordedCounters(t *testing.T) {
	RecordLLMRequest("snapshot-model", 120, 30, nil)
	RecordLLMRequest("snapshot-model", 0, 0, errors.New("boom"))
	RecordToolRun("snapshot-tool", nil)
	RecordToolRun("snapshot-tool", errors.New("exit 1"))

	path := filepath.Join(t.TempDir(), "metrics.prom")
	if err := WriteSnapshot(path); err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		`shellcraft_llm_requests_total{model="snapshot-model",outcome="ok"}`,
		`shellcraft_llm_requests_total{model="snapshot-model",outcome="error"}`,
		`shellcraft_llm_tokens_total{direction="prompt",model="snapshot-model"} 120`,
		`shellcraft_tool_runs_total{tool="snapshot-tool"} 2`,
		`shellcraft_tool_failures_total{tool="snapshot-tool"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("snapshot missing %q", want)
		}
	}
}

package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shellcraft/pkg/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	t.Cleanup(config.ResetForTest)
	require.NoError(t, config.Load(t.TempDir()))
	s, err := Open()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndQueryRuns(t *testing.T) {
	s := newTestStore(t)
	s.AppendRun(RunRecord{
		Timestamp: time.Now(),
		Name:      "test",
		Command:   "go test ./...",
		ExitCode:  0,
		Duration:  1500 * time.Millisecond,
		Attempts:  1,
	})
	s.AppendRun(RunRecord{
		Timestamp: time.Now(),
		Name:      "build",
		Command:   "go build ./...",
		ExitCode:  1,
		Duration:  300 * time.Millisecond,
		Attempts:  2,
	})
	s.Flush()

	runs, err := s.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Newest first.
	assert.Equal(t, "build", runs[0].Name)
	assert.Equal(t, 1, runs[0].ExitCode)
	assert.Equal(t, 2, runs[0].Attempts)
	assert.Equal(t, 1500*time.Millisecond, runs[1].Duration)
}

func TestUsageTotalsAggregate(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		s.AppendUsage(UsageRecord{
			Timestamp:        time.Now(),
			Model:            "gpt-4o",
			Provider:         "openai",
			PromptTokens:     100,
			CompletionTokens: 50,
		})
	}
	s.AppendUsage(UsageRecord{
		Timestamp:        time.Now(),
		Model:            "llama3.2",
		Provider:         "ollama",
		PromptTokens:     10,
		CompletionTokens: 5,
	})
	s.Flush()

	totals, err := s.UsageTotals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 300, totals["gpt-4o"].PromptTokens)
	assert.Equal(t, 150, totals["gpt-4o"].CompletionTokens)
	assert.Equal(t, "ollama", totals["llama3.2"].Provider)
}

func TestTimelineOrder(t *testing.T) {
	s := newTestStore(t)
	s.AppendEvent("plan", "3 edits planned")
	s.AppendEvent("edit", "src/main.go")
	s.AppendEvent("run", "go test ./...")
	s.Flush()

	events, err := s.Timeline(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "plan", events[0].Kind)
	assert.Equal(t, "run", events[2].Kind)
}

func TestTimelineLimitKeepsNewest(t *testing.T) {
	s := newTestStore(t)
	for _, kind := range []string{"a", "b", "c", "d"} {
		s.AppendEvent(kind, "")
	}
	s.Flush()

	events, err := s.Timeline(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "c", events[0].Kind)
	assert.Equal(t, "d", events[1].Kind)
}

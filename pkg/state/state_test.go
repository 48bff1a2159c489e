package state

import (
	"testing"

	"shellcraft/pkg/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	t.Cleanup(config.ResetForTest)
	if err := config.Load(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	return NewStore()
}

func TestSetGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	err := s.Set(AgentStatus{
		AgentID: "worker",
		State:   StateWorking,
		Goal:    "rename the config loader",
	})
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok, err := s.Get("worker")
	if err != nil || !ok {
		t.Fatalf("Get = %v, ok=%v", err, ok)
	}
	if got.State != StateWorking || got.Goal != "rename the config loader" {
		t.Errorf("got %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt must be stamped on Set")
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.Get("ghost")
	if err != nil {
		t.Fatalf("missing status should not error: %v", err)
	}
	if ok {
		t.Error("missing status should report ok=false")
	}
}

func TestListAndClear(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"planner", "worker", "executor"} {
		if err := s.Set(AgentStatus{AgentID: id, State: StateIdle}); err != nil {
			t.Fatal(err)
		}
	}
	statuses, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(statuses) != 3 {
		t.Fatalf("List = %d entries, want 3", len(statuses))
	}

	if err := s.Clear("worker"); err != nil {
		t.Fatal(err)
	}
	statuses, err = s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(statuses) != 2 {
		t.Errorf("after Clear, List = %d entries, want 2", len(statuses))
	}
	if err := s.Clear("worker"); err != nil {
		t.Errorf("clearing a missing status must be a no-op: %v", err)
	}
}

func TestSetRequiresAgentID(t *testing.T) {
	s := newTestStore(t)
	if err := s.Set(AgentStatus{State: StateIdle}); err == nil {
		t.Error("empty agent ID must be rejected")
	}
}

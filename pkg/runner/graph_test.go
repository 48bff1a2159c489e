package runner

import (
	"context"
	"testing"
)

func TestValidateRejectsCycle(t *testing.T) {
	g := &TaskGraph{Tasks: []Task{
		{ID: "a", Command: "true", DependsOn: []string{"b"}},
		{ID: "b", Command: "true", DependsOn: []string{"a"}},
	}}
	if err := g.Validate(); err == nil {
		t.Error("cycle must be rejected")
	}
}

func TestValidateRejectsUnknownDep(t *testing.T) {
	g := &TaskGraph{Tasks: []Task{
		{ID: "a", Command: "true", DependsOn: []string{"ghost"}},
	}}
	if err := g.Validate(); err == nil {
		t.Error("unknown dependency must be rejected")
	}
}

func TestValidateRejectsDuplicateID(t *testing.T) {
	g := &TaskGraph{Tasks: []Task{
		{ID: "a", Command: "true"},
		{ID: "a", Command: "false"},
	}}
	if err := g.Validate(); err == nil {
		t.Error("duplicate IDs must be rejected")
	}
}

func TestExecuteRespectsOrder(t *testing.T) {
	exec := &fakeExecutor{}
	r := newUnsafeRunner(t, exec)
	g := &TaskGraph{Tasks: []Task{
		{ID: "build", Command: "make build"},
		{ID: "test", Command: "make test", DependsOn: []string{"build"}},
		{ID: "lint", Command: "make lint"},
	}}

	results, err := NewGraphExecutor(r).Execute(context.Background(), g)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	for id, res := range results {
		if res.Status != TaskDone {
			t.Errorf("task %s status = %s", id, res.Status)
		}
	}
}

func TestExecuteSkipsDependentsOfFailure(t *testing.T) {
	// First executed command fails every attempt (3 with default retries),
	// the rest succeed.
	exec := &fakeExecutor{exitCodes: []int{1, 1, 1}}
	r := newUnsafeRunner(t, exec)
	g := &TaskGraph{Tasks: []Task{
		{ID: "build", Command: "make build"},
		{ID: "test", Command: "make test", DependsOn: []string{"build"}},
		{ID: "package", Command: "make package", DependsOn: []string{"test"}},
	}}

	results, err := NewGraphExecutor(r).Execute(context.Background(), g)
	if err == nil {
		t.Fatal("expected failure to propagate")
	}
	if results["build"].Status != TaskFailed {
		t.Errorf("build status = %s", results["build"].Status)
	}
	if results["test"].Status != TaskSkipped {
		t.Errorf("test status = %s", results["test"].Status)
	}
	if results["package"].Status != TaskSkipped {
		t.Errorf("package status = %s", results["package"].Status)
	}
}

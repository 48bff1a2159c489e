package runner

import (
	"context"
	"fmt"
	"sync"

	"shellcraft/pkg/config"
	"shellcraft/pkg/logx"
)

// TaskStatus tracks a task through the graph executor.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskDone    TaskStatus = "done"
	TaskFailed  TaskStatus = "failed"
	TaskSkipped TaskStatus = "skipped"
)

// Task is one node of a task graph.
type Task struct {
	ID        string
	Command   string
	DependsOn []string
}

// TaskGraph is a set of tasks with dependency edges.
type TaskGraph struct {
	Tasks []Task
}

// Validate rejects graphs with duplicate IDs, unknown dependencies, or
// cycles. Cycle detection is Kahn's algorithm: if the topological ordering
// does not cover every task, a cycle exists.
func (g *TaskGraph) Validate() error {
	ids := make(map[string]bool, len(g.Tasks))
	for i := range g.Tasks {
		if g.Tasks[i].ID == "" {
			return fmt.Errorf("task %d has no ID", i)
		}
		if ids[g.Tasks[i].ID] {
			return fmt.Errorf("duplicate task ID %q", g.Tasks[i].ID)
		}
		ids[g.Tasks[i].ID] = true
	}

	indegree := make(map[string]int, len(g.Tasks))
	dependents := make(map[string][]string)
	for i := range g.Tasks {
		task := &g.Tasks[i]
		indegree[task.ID] += 0
		for _, dep := range task.DependsOn {
			if !ids[dep] {
				return fmt.Errorf("task %q depends on unknown task %q", task.ID, dep)
			}
			indegree[task.ID]++
			dependents[dep] = append(dependents[dep], task.ID)
		}
	}

	var queue []string
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if visited != len(g.Tasks) {
		return fmt.Errorf("task graph contains a cycle")
	}
	return nil
}

// TaskResult is the outcome of one executed task.
type TaskResult struct {
	Run    RunResult
	ID     string
	Status TaskStatus
	Err    error
}

// GraphExecutor runs a validated task graph, executing ready tasks
// concurrently under a semaphore. Tasks whose dependencies failed are
// skipped.
type GraphExecutor struct {
	runner *CommandRunner
	logger *logx.Logger
}

// NewGraphExecutor creates an executor backed by the given command runner.
func NewGraphExecutor(runner *CommandRunner) *GraphExecutor {
	return &GraphExecutor{
		runner: runner,
		logger: logx.NewLogger("executor"),
	}
}

// Execute runs the graph and returns results keyed by task ID.
func (e *GraphExecutor) Execute(ctx context.Context, graph *TaskGraph) (map[string]TaskResult, error) {
	if err := graph.Validate(); err != nil {
		return nil, err
	}

	maxParallel := config.GetConfig().MaxParallelTasks
	if maxParallel < 1 {
		maxParallel = 1
	}
	sem := make(chan struct{}, maxParallel)

	var mu sync.Mutex
	status := make(map[string]TaskStatus, len(graph.Tasks))
	results := make(map[string]TaskResult, len(graph.Tasks))
	byID := make(map[string]*Task, len(graph.Tasks))
	for i := range graph.Tasks {
		status[graph.Tasks[i].ID] = TaskPending
		byID[graph.Tasks[i].ID] = &graph.Tasks[i]
	}

	// readiness returns whether a task can start, and whether any
	// dependency failure forces a skip.
	readiness := func(task *Task) (ready, skip bool) {
		for _, dep := range task.DependsOn {
			switch status[dep] {
			case TaskFailed, TaskSkipped:
				return false, true
			case TaskDone:
			default:
				return false, false
			}
		}
		return true, false
	}

	var wg sync.WaitGroup
	for {
		mu.Lock()
		launched := 0
		pendingLeft := 0
		for id, st := range status {
			if st != TaskPending {
				continue
			}
			task := byID[id]
			ready, skip := readiness(task)
			if skip {
				status[id] = TaskSkipped
				results[id] = TaskResult{ID: id, Status: TaskSkipped, Err: fmt.Errorf("dependency failed")}
				e.logger.Warn("skipping task %s: dependency failed", id)
				continue
			}
			if !ready {
				pendingLeft++
				continue
			}

			status[id] = TaskRunning
			launched++
			wg.Add(1)
			go func(task *Task) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				run, err := e.runner.Run(ctx, task.ID, task.Command)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					status[task.ID] = TaskFailed
					results[task.ID] = TaskResult{ID: task.ID, Status: TaskFailed, Run: run, Err: err}
				} else {
					status[task.ID] = TaskDone
					results[task.ID] = TaskResult{ID: task.ID, Status: TaskDone, Run: run}
				}
			}(task)
		}
		running := 0
		for _, st := range status {
			if st == TaskRunning {
				running++
			}
		}
		done := pendingLeft == 0 && running == 0 && launched == 0
		mu.Unlock()

		if done {
			break
		}
		if launched == 0 {
			// Nothing new could start; wait for running tasks to finish
			// before re-evaluating readiness.
			wg.Wait()
		}
		select {
		case <-ctx.Done():
			wg.Wait()
			return results, ctx.Err()
		default:
		}
	}
	wg.Wait()

	for id, res := range results {
		if res.Status == TaskFailed {
			return results, fmt.Errorf("task %s failed: %w", id, res.Err)
		}
	}
	return results, nil
}

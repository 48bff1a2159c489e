package agents

import (
	"context"
	"fmt"
	"time"

	"shellcraft/pkg/agent/llm"
	"shellcraft/pkg/dispatch"
	"shellcraft/pkg/eventlog"
	"shellcraft/pkg/logx"
	"shellcraft/pkg/proto"
	"shellcraft/pkg/report"
	"shellcraft/pkg/state"
)

// stageTimeout bounds how long the orchestrator waits on any one agent.
const stageTimeout = 10 * time.Minute

// Outcome summarizes one orchestrated goal.
type Outcome struct {
	Goal         string
	EditedFiles  string
	Diff         string
	ActionOutput string
	ExitCode     int
}

// Orchestrator owns the dispatcher and the three worker agents and drives
// the plan, edit, verify pipeline for each goal.
type Orchestrator struct {
	bus      *dispatch.Dispatcher
	recv     *dispatch.ChannelReceiver
	planner  *PlannerAgent
	worker   *WorkerAgent
	executor *ExecutorAgent
	tracker  *report.Tracker
	events   *eventlog.Writer
	logger   *logx.Logger
	cancel   context.CancelFunc
}

// NewOrchestrator builds the agent set and starts the dispatcher and agent
// loops. Call Shutdown when done.
func NewOrchestrator(client llm.LLMClient, workDir string, tracker *report.Tracker) (*Orchestrator, error) {
	bus := dispatch.NewDispatcher()
	states := state.NewStore()

	o := &Orchestrator{
		bus:     bus,
		recv:    dispatch.NewChannelReceiver(OrchestratorID),
		tracker: tracker,
		events:  eventlog.NewWriter(),
		logger:  logx.NewLogger(OrchestratorID),
	}
	if err := bus.Attach(o.recv); err != nil {
		return nil, err
	}

	var err error
	if o.planner, err = NewPlannerAgent(bus, client, workDir, states); err != nil {
		return nil, err
	}
	if o.worker, err = NewWorkerAgent(bus, client, workDir, states); err != nil {
		return nil, err
	}
	if o.executor, err = NewExecutorAgent(bus, client, states); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	go bus.Start(ctx)
	go o.planner.Run(ctx)
	go o.worker.Run(ctx)
	go o.executor.Run(ctx)
	return o, nil
}

// Shutdown stops the agent loops and the dispatcher.
func (o *Orchestrator) Shutdown() {
	for _, to := range []string{PlannerID, WorkerID, ExecutorID} {
		_ = o.bus.Send(proto.NewAgentMsg(proto.MsgTypeSHUTDOWN, OrchestratorID, to))
	}
	// Give agents a moment to observe shutdown before cancelling the bus.
	time.Sleep(50 * time.Millisecond)
	o.cancel()
}

// RunGoal drives one goal through planning, editing, and verification.
func (o *Orchestrator) RunGoal(ctx context.Context, goal string) (*Outcome, error) {
	o.event("goal", goal)

	task := proto.NewAgentMsg(proto.MsgTypeTASK, OrchestratorID, PlannerID)
	task.SetPayload(proto.KeyGoal, goal)
	if err := o.bus.Send(task); err != nil {
		return nil, err
	}
	planMsg, err := o.await(ctx, proto.MsgTypePLAN)
	if err != nil {
		return nil, fmt.Errorf("planning failed: %w", err)
	}
	o.event("plan", planMsg.PayloadString(proto.KeyPlan))

	work := proto.NewAgentMsg(proto.MsgTypePLAN, OrchestratorID, WorkerID)
	work.Payload = planMsg.Payload
	if err := o.bus.Send(work); err != nil {
		return nil, err
	}
	resultMsg, err := o.await(ctx, proto.MsgTypeRESULT)
	if err != nil {
		return nil, fmt.Errorf("editing failed: %w", err)
	}

	outcome := &Outcome{
		Goal:        goal,
		EditedFiles: resultMsg.PayloadString(proto.KeyContent),
		Diff:        resultMsg.PayloadString(proto.KeyDiff),
	}
	if outcome.EditedFiles != "" {
		o.event("edits", outcome.EditedFiles)
	}

	actions := actionList(resultMsg)
	if len(actions) == 0 {
		return outcome, nil
	}

	verify := proto.NewAgentMsg(proto.MsgTypeTASK, OrchestratorID, ExecutorID)
	verify.SetPayload(proto.KeyActions, actions)
	if err := o.bus.Send(verify); err != nil {
		return outcome, err
	}
	execMsg, err := o.await(ctx, proto.MsgTypeRESULT)
	if err != nil {
		return outcome, fmt.Errorf("verification failed: %w", err)
	}
	outcome.ActionOutput = execMsg.PayloadString(proto.KeyContent)
	if v, ok := execMsg.GetPayload(proto.KeyExitCode); ok {
		switch code := v.(type) {
		case int:
			outcome.ExitCode = code
		case float64:
			outcome.ExitCode = int(code)
		}
	}
	o.event("verify", fmt.Sprintf("exit %d", outcome.ExitCode))
	return outcome, nil
}

// RunEdit applies one targeted edit without going through planning. The
// worker proposes a rewrite for the file and the diff comes back in the
// outcome.
func (o *Orchestrator) RunEdit(ctx context.Context, path, intent string) (*Outcome, error) {
	o.event("edit-request", fmt.Sprintf("%s: %s", path, intent))

	edit := proto.NewAgentMsg(proto.MsgTypeEDIT, OrchestratorID, WorkerID)
	edit.SetPayload(proto.KeyEditPath, path)
	edit.SetPayload(proto.KeyEditIntent, intent)
	if err := o.bus.Send(edit); err != nil {
		return nil, err
	}
	resultMsg, err := o.await(ctx, proto.MsgTypeRESULT)
	if err != nil {
		return nil, fmt.Errorf("edit failed: %w", err)
	}
	outcome := &Outcome{
		Goal:        intent,
		EditedFiles: resultMsg.PayloadString(proto.KeyContent),
		Diff:        resultMsg.PayloadString(proto.KeyDiff),
	}
	if outcome.EditedFiles != "" {
		o.event("edits", outcome.EditedFiles)
	}
	return outcome, nil
}

// await blocks for the next message of the wanted type, turning ERROR
// messages into errors.
func (o *Orchestrator) await(ctx context.Context, want proto.MsgType) (*proto.AgentMsg, error) {
	ctx, cancel := context.WithTimeout(ctx, stageTimeout)
	defer cancel()
	for {
		msg, err := o.recv.Recv(ctx)
		if err != nil {
			return nil, err
		}
		switch msg.Type {
		case want:
			return msg, nil
		case proto.MsgTypeERROR:
			return nil, fmt.Errorf("%s: %s", msg.FromAgent, msg.PayloadString(proto.KeyErrorMessage))
		default:
			o.logger.Debug("ignoring %s while waiting for %s", msg.Type, want)
		}
	}
}

func (o *Orchestrator) event(kind, detail string) {
	if o.tracker != nil {
		o.tracker.Event(kind, detail)
	}
	if o.events != nil {
		if err := o.events.Emit(kind, OrchestratorID, detail, nil); err != nil {
			o.logger.Debug("event log write failed: %v", err)
		}
	}
}

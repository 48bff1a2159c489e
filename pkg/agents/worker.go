package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"shellcraft/pkg/agent/llm"
	"shellcraft/pkg/config"
	"shellcraft/pkg/diff"
	"shellcraft/pkg/dispatch"
	"shellcraft/pkg/editor"
	"shellcraft/pkg/logx"
	"shellcraft/pkg/planner"
	"shellcraft/pkg/proto"
	"shellcraft/pkg/runner"
	"shellcraft/pkg/state"
)

// WorkerAgent turns PLAN messages into applied edits. Each edit goes
// through propose, diff review, and atomic write; accumulated diffs and the
// plan's actions travel back to the orchestrator in the RESULT.
type WorkerAgent struct {
	recv    *dispatch.ChannelReceiver
	bus     *dispatch.Dispatcher
	client  llm.LLMClient
	states  *state.Store
	logger  *logx.Logger
	workDir string
}

// NewWorkerAgent creates a worker agent bound to the bus.
func NewWorkerAgent(bus *dispatch.Dispatcher, client llm.LLMClient, workDir string, states *state.Store) (*WorkerAgent, error) {
	a := &WorkerAgent{
		recv:    dispatch.NewChannelReceiver(WorkerID),
		bus:     bus,
		client:  client,
		states:  states,
		logger:  logx.NewLogger(WorkerID),
		workDir: workDir,
	}
	if err := bus.Attach(a.recv); err != nil {
		return nil, err
	}
	return a, nil
}

// Run processes messages until ctx is cancelled or SHUTDOWN arrives.
func (a *WorkerAgent) Run(ctx context.Context) {
	for {
		msg, err := a.recv.Recv(ctx)
		if err != nil {
			return
		}
		switch msg.Type {
		case proto.MsgTypeSHUTDOWN:
			a.setState(state.StateIdle, "")
			return
		case proto.MsgTypePLAN:
			a.handlePlan(ctx, msg)
		case proto.MsgTypeEDIT:
			a.handleSingleEdit(ctx, msg)
		default:
			a.logger.Warn("unexpected message type %s from %s", msg.Type, msg.FromAgent)
		}
	}
}

func (a *WorkerAgent) handlePlan(ctx context.Context, msg *proto.AgentMsg) {
	goal := msg.PayloadString(proto.KeyGoal)
	a.setState(state.StateWorking, goal)

	var plan planner.Plan
	if err := json.Unmarshal([]byte(msg.PayloadString(proto.KeyPlan)), &plan); err != nil {
		a.setState(state.StateError, goal)
		a.send(msg.ErrorReply(WorkerID, fmt.Errorf("malformed plan: %w", err)))
		return
	}

	var applied []string
	var diffs []string
	for _, edit := range plan.Edit {
		d, err := a.applyEdit(ctx, edit)
		if err != nil {
			a.logger.Warn("edit %s failed: %v", edit.Path, err)
			continue
		}
		if d != "" {
			applied = append(applied, edit.Path)
			diffs = append(diffs, d)
		}
	}

	reply := msg.Reply(proto.MsgTypeRESULT, WorkerID)
	reply.SetPayload(proto.KeyGoal, goal)
	reply.SetPayload(proto.KeyContent, strings.Join(applied, "\n"))
	reply.SetPayload(proto.KeyDiff, strings.Join(diffs, "\n"))
	var actions []string
	for _, act := range plan.Actions {
		actions = append(actions, act.Run)
	}
	reply.SetPayload(proto.KeyActions, actions)
	a.setState(state.StateDone, goal)
	a.send(reply)
}

// handleSingleEdit serves one-off EDIT requests outside a full plan.
func (a *WorkerAgent) handleSingleEdit(ctx context.Context, msg *proto.AgentMsg) {
	edit := planner.EditPlan{
		Path:   msg.PayloadString(proto.KeyEditPath),
		Intent: msg.PayloadString(proto.KeyEditIntent),
	}
	d, err := a.applyEdit(ctx, edit)
	if err != nil {
		a.send(msg.ErrorReply(WorkerID, err))
		return
	}
	reply := msg.Reply(proto.MsgTypeRESULT, WorkerID)
	reply.SetPayload(proto.KeyEditPath, edit.Path)
	reply.SetPayload(proto.KeyDiff, d)
	if d != "" {
		reply.SetPayload(proto.KeyContent, edit.Path)
	}
	a.send(reply)
}

// applyEdit proposes new content for one file, shows the diff, and writes
// it when approved. Returns the diff, empty when nothing changed or the
// user declined.
func (a *WorkerAgent) applyEdit(ctx context.Context, edit planner.EditPlan) (string, error) {
	current := ""
	if data, err := os.ReadFile(filepath.Join(a.workDir, edit.Path)); err == nil {
		current = string(data)
	}

	proposed, err := llm.ProposeEdit(ctx, a.client, edit.Path, edit.Intent, current)
	if err != nil {
		return "", err
	}
	if proposed == current {
		a.logger.Info("%s: no changes proposed", edit.Path)
		return "", nil
	}

	rendered, err := diff.Render(current, proposed, edit.Path)
	if err != nil {
		return "", err
	}
	plain, _ := diff.Unified(current, proposed, edit.Path)

	cfg := config.GetConfig()
	if cfg.DryRun {
		a.logger.Info("dry run, not writing %s:\n%s", edit.Path, rendered)
		if saved, exportErr := editor.ExportPatch(plain); exportErr == nil {
			a.logger.Info("patch exported to %s", saved)
		}
		return plain, nil
	}
	if !cfg.AutoApprove && !cfg.Unsafe {
		fmt.Println(rendered)
		if !runner.Confirm(fmt.Sprintf("Apply changes to %s?", edit.Path)) {
			a.logger.Info("%s: declined", edit.Path)
			return "", nil
		}
	}
	if err := editor.WriteFile(a.workDir, edit.Path, proposed); err != nil {
		return "", err
	}
	a.logger.Info("applied edit to %s", edit.Path)
	return plain, nil
}

func (a *WorkerAgent) send(msg *proto.AgentMsg) {
	if err := a.bus.Send(msg); err != nil {
		a.logger.Error("send failed: %v", err)
	}
}

func (a *WorkerAgent) setState(s, goal string) {
	if a.states == nil {
		return
	}
	if err := a.states.Set(state.AgentStatus{AgentID: WorkerID, State: s, Goal: goal}); err != nil {
		a.logger.Warn("failed to persist state: %v", err)
	}
}

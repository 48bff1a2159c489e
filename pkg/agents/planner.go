// Package agents implements the coordinating agents of a session: the
// planner turns goals into plans, the worker turns plan entries into
// applied edits, and the executor runs verification commands. They talk
// through the dispatcher using proto messages.
package agents

import (
	"context"
	"encoding/json"

	"shellcraft/pkg/agent/llm"
	"shellcraft/pkg/dispatch"
	"shellcraft/pkg/logx"
	"shellcraft/pkg/planner"
	"shellcraft/pkg/proto"
	"shellcraft/pkg/state"
)

// Agent IDs used for routing.
const (
	PlannerID      = "planner"
	WorkerID       = "worker"
	ExecutorID     = "executor"
	OrchestratorID = "orchestrator"
)

// PlannerAgent answers TASK messages with PLAN messages.
type PlannerAgent struct {
	recv    *dispatch.ChannelReceiver
	bus     *dispatch.Dispatcher
	planner *planner.Planner
	states  *state.Store
	logger  *logx.Logger
}

// NewPlannerAgent creates a planner agent bound to the bus.
func NewPlannerAgent(bus *dispatch.Dispatcher, client llm.LLMClient, workDir string, states *state.Store) (*PlannerAgent, error) {
	a := &PlannerAgent{
		recv:    dispatch.NewChannelReceiver(PlannerID),
		bus:     bus,
		planner: planner.New(client, workDir),
		states:  states,
		logger:  logx.NewLogger(PlannerID),
	}
	if err := bus.Attach(a.recv); err != nil {
		return nil, err
	}
	return a, nil
}

// Run processes messages until ctx is cancelled or SHUTDOWN arrives.
func (a *PlannerAgent) Run(ctx context.Context) {
	for {
		msg, err := a.recv.Recv(ctx)
		if err != nil {
			return
		}
		switch msg.Type {
		case proto.MsgTypeSHUTDOWN:
			a.setState(state.StateIdle, "")
			return
		case proto.MsgTypeTASK:
			a.handleTask(ctx, msg)
		default:
			a.logger.Warn("unexpected message type %s from %s", msg.Type, msg.FromAgent)
		}
	}
}

func (a *PlannerAgent) handleTask(ctx context.Context, msg *proto.AgentMsg) {
	goal := msg.PayloadString(proto.KeyGoal)
	a.setState(state.StatePlanning, goal)

	plan, err := a.planner.PlanChanges(ctx, goal)
	if err != nil {
		a.setState(state.StateError, goal)
		a.send(msg.ErrorReply(PlannerID, err))
		return
	}
	encoded, err := json.Marshal(plan)
	if err != nil {
		a.setState(state.StateError, goal)
		a.send(msg.ErrorReply(PlannerID, err))
		return
	}

	reply := msg.Reply(proto.MsgTypePLAN, PlannerID)
	reply.SetPayload(proto.KeyGoal, goal)
	reply.SetPayload(proto.KeyPlan, string(encoded))
	a.setState(state.StateDone, goal)
	a.send(reply)
}

func (a *PlannerAgent) send(msg *proto.AgentMsg) {
	if err := a.bus.Send(msg); err != nil {
		a.logger.Error("send failed: %v", err)
	}
}

func (a *PlannerAgent) setState(s, goal string) {
	if a.states == nil {
		return
	}
	if err := a.states.Set(state.AgentStatus{AgentID: PlannerID, State: s, Goal: goal}); err != nil {
		a.logger.Warn("failed to persist state: %v", err)
	}
}

package agents

import (
	"context"
	"fmt"
	"strings"

	"shellcraft/pkg/agent/llm"
	"shellcraft/pkg/dispatch"
	"shellcraft/pkg/editor"
	"shellcraft/pkg/exec"
	"shellcraft/pkg/logx"
	"shellcraft/pkg/proto"
	"shellcraft/pkg/runner"
	"shellcraft/pkg/state"
)

// ExecutorAgent runs the verification commands a plan carries. Failed
// commands go through the self-healing path before being reported.
type ExecutorAgent struct {
	recv   *dispatch.ChannelReceiver
	bus    *dispatch.Dispatcher
	runner *runner.CommandRunner
	client llm.LLMClient
	states *state.Store
	logger *logx.Logger
}

// NewExecutorAgent creates an executor agent bound to the bus.
func NewExecutorAgent(bus *dispatch.Dispatcher, client llm.LLMClient, states *state.Store) (*ExecutorAgent, error) {
	a := &ExecutorAgent{
		recv:   dispatch.NewChannelReceiver(ExecutorID),
		bus:    bus,
		runner: runner.NewCommandRunner(exec.Preferred()),
		client: client,
		states: states,
		logger: logx.NewLogger(ExecutorID),
	}
	if err := bus.Attach(a.recv); err != nil {
		return nil, err
	}
	return a, nil
}

// Run processes messages until ctx is cancelled or SHUTDOWN arrives.
func (a *ExecutorAgent) Run(ctx context.Context) {
	for {
		msg, err := a.recv.Recv(ctx)
		if err != nil {
			return
		}
		switch msg.Type {
		case proto.MsgTypeSHUTDOWN:
			a.setState(state.StateIdle)
			return
		case proto.MsgTypeTASK:
			a.handleActions(ctx, msg)
		default:
			a.logger.Warn("unexpected message type %s from %s", msg.Type, msg.FromAgent)
		}
	}
}

func (a *ExecutorAgent) handleActions(ctx context.Context, msg *proto.AgentMsg) {
	actions := actionList(msg)
	a.setState(state.StateWorking)

	var outputs []string
	exitCode := 0
	for i, command := range actions {
		// Multi-line actions are generated scripts; they run as a snippet
		// through the same guardrails but without self-healing.
		if strings.Contains(command, "\n") {
			out, err := a.runSnippet(ctx, command)
			outputs = append(outputs, out)
			if err != nil {
				exitCode = 1
			}
			continue
		}
		name := fmt.Sprintf("action-%d", i+1)
		result, err := a.runner.RunWithSelfHealing(ctx, a.client, name, command)
		if err != nil {
			a.setState(state.StateError)
			reply := msg.ErrorReply(ExecutorID, err)
			reply.SetPayload(proto.KeyExitCode, result.ExitCode)
			a.send(reply)
			return
		}
		outputs = append(outputs, fmt.Sprintf("$ %s\n%s", command, result.Output))
		if result.ExitCode != 0 {
			exitCode = result.ExitCode
		}
	}

	reply := msg.Reply(proto.MsgTypeRESULT, ExecutorID)
	reply.SetPayload(proto.KeyContent, strings.Join(outputs, "\n"))
	reply.SetPayload(proto.KeyExitCode, exitCode)
	a.setState(state.StateDone)
	a.send(reply)
}

func (a *ExecutorAgent) runSnippet(ctx context.Context, snippet string) (string, error) {
	if err := runner.GuardCommand(snippet); err != nil {
		return fmt.Sprintf("$ <snippet>\n%v", err), err
	}
	out, err := editor.ExecuteSnippet(ctx, "sh", snippet)
	if err != nil {
		a.logger.Warn("snippet failed: %v", err)
	}
	return fmt.Sprintf("$ <snippet>\n%s", out), err
}

// actionList tolerates both []string and []any payloads; the latter shows
// up after JSON round trips.
func actionList(msg *proto.AgentMsg) []string {
	v, ok := msg.GetPayload(proto.KeyActions)
	if !ok {
		return nil
	}
	switch actions := v.(type) {
	case []string:
		return actions
	case []any:
		var out []string
		for _, a := range actions {
			if s, ok := a.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (a *ExecutorAgent) send(msg *proto.AgentMsg) {
	if err := a.bus.Send(msg); err != nil {
		a.logger.Error("send failed: %v", err)
	}
}

func (a *ExecutorAgent) setState(s string) {
	if a.states == nil {
		return
	}
	if err := a.states.Set(state.AgentStatus{AgentID: ExecutorID, State: s}); err != nil {
		a.logger.Warn("failed to persist state: %v", err)
	}
}

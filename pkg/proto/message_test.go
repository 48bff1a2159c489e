package proto

import (
	"errors"
	"strings"
	"testing"
)

func TestNewAgentMsg(t *testing.T) {
	msg := NewAgentMsg(MsgTypeTASK, "cli", "planner")

	if msg.ID == "" {
		t.Error("message should have an ID")
	}
	if !strings.HasPrefix(msg.ID, "TASK-") {
		t.Errorf("ID should be prefixed with type, got %q", msg.ID)
	}
	if msg.FromAgent != "cli" || msg.ToAgent != "planner" {
		t.Errorf("unexpected routing: %s -> %s", msg.FromAgent, msg.ToAgent)
	}
	if msg.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	msg := NewAgentMsg(MsgTypePLAN, "planner", "worker")
	msg.SetPayload(KeyGoal, "add retry logic")

	if got := msg.PayloadString(KeyGoal); got != "add retry logic" {
		t.Errorf("PayloadString = %q", got)
	}
	if got := msg.PayloadString("missing"); got != "" {
		t.Errorf("missing key should yield empty string, got %q", got)
	}

	msg.SetPayload(KeyExitCode, 2)
	if got := msg.PayloadString(KeyExitCode); got != "" {
		t.Errorf("non-string payload should yield empty string, got %q", got)
	}
}

func TestReplyLinksParent(t *testing.T) {
	req := NewAgentMsg(MsgTypeEDIT, "worker", "executor")
	resp := req.Reply(MsgTypeRESULT, "executor")

	if resp.ParentMsgID != req.ID {
		t.Errorf("reply parent = %q, want %q", resp.ParentMsgID, req.ID)
	}
	if resp.ToAgent != "worker" {
		t.Errorf("reply should address the original sender, got %q", resp.ToAgent)
	}
}

func TestErrorReply(t *testing.T) {
	req := NewAgentMsg(MsgTypeTASK, "cli", "planner")
	resp := req.ErrorReply("planner", errors.New("no models configured"))

	if resp.Type != MsgTypeERROR {
		t.Errorf("type = %s, want ERROR", resp.Type)
	}
	if got := resp.PayloadString(KeyErrorMessage); got != "no models configured" {
		t.Errorf("error payload = %q", got)
	}
}

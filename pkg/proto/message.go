// Package proto defines the message types exchanged between agents.
//
// All coordination between the planner, worker, and executor agents flows
// through AgentMsg values routed by the dispatcher. Messages are plain data:
// a type, source and destination agent IDs, and a free-form payload keyed by
// the constants below.
package proto

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MsgType represents the type of message being sent between agents.
type MsgType string

const (
	// MsgTypeTASK carries a user goal to the planner.
	MsgTypeTASK MsgType = "TASK"
	// MsgTypePLAN carries a structured plan from the planner to the worker.
	MsgTypePLAN MsgType = "PLAN"
	// MsgTypeEDIT requests a single file edit proposal from the worker.
	MsgTypeEDIT MsgType = "EDIT"
	// MsgTypeRESULT carries a completed unit of work back to the requester.
	MsgTypeRESULT MsgType = "RESULT"
	// MsgTypeERROR indicates a failure processing a previous message.
	MsgTypeERROR MsgType = "ERROR"
	// MsgTypeSHUTDOWN requests graceful agent termination.
	MsgTypeSHUTDOWN MsgType = "SHUTDOWN"
)

// Payload keys used in AgentMsg.Payload.
const (
	KeyGoal         = "goal"
	KeyPlan         = "plan"
	KeyEditPath     = "edit_path"
	KeyEditIntent   = "edit_intent"
	KeyContent      = "content"
	KeyDiff         = "diff"
	KeyActions      = "actions"
	KeyErrorMessage = "error_message"
	KeyExitCode     = "exit_code"
)

// AgentMsg is the unit of communication between agents.
type AgentMsg struct {
	Timestamp   time.Time         `json:"timestamp"`
	Payload     map[string]any    `json:"payload"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ID          string            `json:"id"`
	Type        MsgType           `json:"type"`
	FromAgent   string            `json:"from_agent"`
	ToAgent     string            `json:"to_agent"`
	ParentMsgID string            `json:"parent_msg_id,omitempty"`
	RetryCount  int               `json:"retry_count,omitempty"`
}

// NewAgentMsg creates a message with a fresh ID and timestamp.
func NewAgentMsg(msgType MsgType, fromAgent, toAgent string) *AgentMsg {
	return &AgentMsg{
		ID:        generateID(msgType),
		Type:      msgType,
		FromAgent: fromAgent,
		ToAgent:   toAgent,
		Timestamp: time.Now().UTC(),
		Payload:   make(map[string]any),
		Metadata:  make(map[string]string),
	}
}

// SetPayload stores a value in the message payload.
func (m *AgentMsg) SetPayload(key string, value any) {
	if m.Payload == nil {
		m.Payload = make(map[string]any)
	}
	m.Payload[key] = value
}

// GetPayload retrieves a value from the message payload.
func (m *AgentMsg) GetPayload(key string) (any, bool) {
	v, ok := m.Payload[key]
	return v, ok
}

// PayloadString retrieves a payload value as a string, empty when absent or
// not a string.
func (m *AgentMsg) PayloadString(key string) string {
	if v, ok := m.Payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// SetMetadata stores a metadata entry.
func (m *AgentMsg) SetMetadata(key, value string) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[key] = value
}

// Reply creates a response message addressed back to the sender, linked via
// ParentMsgID.
func (m *AgentMsg) Reply(msgType MsgType, fromAgent string) *AgentMsg {
	reply := NewAgentMsg(msgType, fromAgent, m.FromAgent)
	reply.ParentMsgID = m.ID
	return reply
}

// ErrorReply creates an ERROR response carrying the given error.
func (m *AgentMsg) ErrorReply(fromAgent string, err error) *AgentMsg {
	reply := m.Reply(MsgTypeERROR, fromAgent)
	reply.SetPayload(KeyErrorMessage, err.Error())
	return reply
}

// generateID produces a short unique ID prefixed with the message type.
func generateID(msgType MsgType) string {
	return fmt.Sprintf("%s-%s", msgType, uuid.NewString()[:8])
}

// Package contextmgr manages the conversation context sent to the model:
// message history, structured tool calls and results, token counting, and
// compaction when the context approaches the model window.
package contextmgr

import (
	"fmt"
	"strings"

	"shellcraft/pkg/config"
	"shellcraft/pkg/utils"
)

// ToolCall mirrors a model-requested tool invocation stored in history.
type ToolCall struct {
	Parameters map[string]any
	ID         string
	Name       string
}

// ToolResult stores the outcome of a tool call in history.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// Message is one entry of the conversation history.
type Message struct {
	Role        string
	Content     string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// ContextManager accumulates conversation history for one agent.
type ContextManager struct {
	counter          *utils.TokenCounter
	messages         []Message
	maxContextTokens int
	maxReplyTokens   int
}

const compactionBuffer = 2048

// New creates a context manager sized for the given model. Unknown models
// get conservative defaults.
func New(model string) *ContextManager {
	maxContext, maxReply := 32000, 4096
	if info, ok := config.LookupModel(model); ok {
		if info.MaxContextTokens > 0 {
			maxContext = info.MaxContextTokens
		}
		if info.MaxOutputTokens > 0 {
			maxReply = info.MaxOutputTokens
		}
	}
	counter, err := utils.NewTokenCounter(model)
	if err != nil {
		counter = nil // CountTokens falls back to estimation
	}
	return &ContextManager{
		counter:          counter,
		maxContextTokens: maxContext,
		maxReplyTokens:   maxReply,
	}
}

// AddMessage appends a plain role/content message.
func (cm *ContextManager) AddMessage(role, content string) {
	cm.messages = append(cm.messages, Message{Role: role, Content: content})
}

// AddAssistantMessage appends an assistant reply without tool calls.
func (cm *ContextManager) AddAssistantMessage(content string) {
	cm.AddMessage("assistant", content)
}

// AddAssistantMessageWithTools appends an assistant reply carrying tool calls.
func (cm *ContextManager) AddAssistantMessageWithTools(content string, calls []ToolCall) {
	cm.messages = append(cm.messages, Message{
		Role:      "assistant",
		Content:   content,
		ToolCalls: calls,
	})
}

// AddToolResult appends a tool execution result as a user-side message.
func (cm *ContextManager) AddToolResult(toolCallID, content string, isError bool) {
	cm.messages = append(cm.messages, Message{
		Role: "user",
		ToolResults: []ToolResult{
			{ToolCallID: toolCallID, Content: content, IsError: isError},
		},
	})
}

// GetMessages returns a copy of the history.
func (cm *ContextManager) GetMessages() []Message {
	out := make([]Message, len(cm.messages))
	copy(out, cm.messages)
	return out
}

// MessageCount returns the number of stored messages.
func (cm *ContextManager) MessageCount() int {
	return len(cm.messages)
}

// Clear drops all history.
func (cm *ContextManager) Clear() {
	cm.messages = cm.messages[:0]
}

// CountTokens returns the token count of the stored history.
func (cm *ContextManager) CountTokens() int {
	total := 0
	for i := range cm.messages {
		msg := &cm.messages[i]
		total += cm.count(msg.Content)
		for j := range msg.ToolResults {
			total += cm.count(msg.ToolResults[j].Content)
		}
		// A few tokens of structural overhead per message.
		total += 4
	}
	return total
}

func (cm *ContextManager) count(text string) int {
	if cm.counter != nil {
		return cm.counter.CountTokens(text)
	}
	return len(text) / 4
}

// ShouldCompact reports whether the history plus a maximal reply would
// overflow the model window.
func (cm *ContextManager) ShouldCompact() bool {
	return cm.CountTokens()+cm.maxReplyTokens+compactionBuffer > cm.maxContextTokens
}

// CompactIfNeeded drops the oldest non-leading messages until the history
// fits. The first message is kept; it normally carries the system preamble.
func (cm *ContextManager) CompactIfNeeded() {
	if !cm.ShouldCompact() {
		return
	}
	target := cm.maxContextTokens - cm.maxReplyTokens - compactionBuffer
	for cm.CountTokens() > target && len(cm.messages) > 2 {
		cm.messages = append(cm.messages[:1], cm.messages[2:]...)
	}
}

// Summary returns a one-line description of the context state.
func (cm *ContextManager) Summary() string {
	if len(cm.messages) == 0 {
		return "empty context"
	}
	roleCounts := make(map[string]int)
	for i := range cm.messages {
		roleCounts[cm.messages[i].Role]++
	}
	var parts []string
	for _, role := range []string{"system", "user", "assistant"} {
		if n := roleCounts[role]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", role, n))
		}
	}
	return fmt.Sprintf("%d messages (%d tokens) - %s",
		len(cm.messages), cm.CountTokens(), strings.Join(parts, ", "))
}

// MaxReplyTokens returns the reply budget for this model.
func (cm *ContextManager) MaxReplyTokens() int {
	return cm.maxReplyTokens
}

package anthropic

import (
	"encoding/json"
	"strings"
	"testing"

	"shellcraft/pkg/agent/llm"
)

func TestEnsureAlternationExtractsSystemAndMerges(t *testing.T) {
	system, merged, err := ensureAlternation([]llm.CompletionMessage{
		{Role: llm.RoleSystem, Content: "You are a coding assistant."},
		{Role: llm.RoleUser, Content: "first"},
		{Role: llm.RoleUser, Content: "second"},
		{Role: llm.RoleAssistant, Content: "reply"},
		{Role: llm.RoleUser, Content: "third"},
	})
	if err != nil {
		t.Fatalf("ensureAlternation failed: %v", err)
	}
	if system != "You are a coding assistant." {
		t.Errorf("system prompt = %q", system)
	}
	if len(merged) != 3 {
		t.Fatalf("merged length = %d, want 3", len(merged))
	}
	if merged[0].Content != "first\n\nsecond" {
		t.Errorf("merged user content = %q", merged[0].Content)
	}
}

func TestEnsureAlternationRejectsAssistantEdges(t *testing.T) {
	if _, _, err := ensureAlternation([]llm.CompletionMessage{
		{Role: llm.RoleAssistant, Content: "hello"},
	}); err == nil {
		t.Error("expected an error for a conversation starting with assistant")
	}
	if _, _, err := ensureAlternation([]llm.CompletionMessage{
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello"},
	}); err == nil {
		t.Error("expected an error for a conversation ending with assistant")
	}
}

// The tool loop records assistant tool calls and feeds results back in a
// user message whose Content is empty. Both must survive conversion into
// the request, or the model never sees its own tool output.
func TestPreparedMessagesCarryToolBlocks(t *testing.T) {
	messages := []llm.CompletionMessage{
		{Role: llm.RoleSystem, Content: "You are a coding assistant."},
		{Role: llm.RoleUser, Content: "list the files"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: "list_files", Parameters: map[string]any{"path": "."}},
		}},
		{Role: llm.RoleUser, ToolResults: []llm.ToolResult{
			{ToolCallID: "c1", Content: "file listing output: main.go utils.go"},
		}},
	}

	_, merged, err := ensureAlternation(messages)
	if err != nil {
		t.Fatalf("ensureAlternation failed: %v", err)
	}
	params := toMessageParams(merged)
	if len(params) != 3 {
		t.Fatalf("prepared %d messages, want 3", len(params))
	}

	data, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		`"tool_use"`,
		`"list_files"`,
		`"tool_result"`,
		`"c1"`,
		"file listing output: main.go utils.go",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("prepared messages missing %s\n%s", want, out)
		}
	}

	last := params[len(params)-1]
	if len(last.Content) != 1 || last.Content[0].OfToolResult == nil {
		t.Fatalf("final user message should be a single tool_result block, got %+v", last.Content)
	}
	if got := last.Content[0].OfToolResult.ToolUseID; got != "c1" {
		t.Errorf("tool_use_id = %q", got)
	}
}

func TestPreparedMessagesKeepTextAlongsideToolBlocks(t *testing.T) {
	_, merged, err := ensureAlternation([]llm.CompletionMessage{
		{Role: llm.RoleUser, Content: "read it"},
		{Role: llm.RoleAssistant, Content: "Reading the file now.", ToolCalls: []llm.ToolCall{
			{ID: "c2", Name: "read_file", Parameters: map[string]any{"path": "main.go"}},
		}},
		{Role: llm.RoleUser, ToolResults: []llm.ToolResult{
			{ToolCallID: "c2", Content: "package main", IsError: false},
		}},
	})
	if err != nil {
		t.Fatalf("ensureAlternation failed: %v", err)
	}
	params := toMessageParams(merged)

	assistant := params[1]
	if len(assistant.Content) != 2 {
		t.Fatalf("assistant blocks = %d, want text + tool_use", len(assistant.Content))
	}
	if assistant.Content[0].OfText == nil || assistant.Content[1].OfToolUse == nil {
		t.Errorf("assistant blocks out of shape: %+v", assistant.Content)
	}
}

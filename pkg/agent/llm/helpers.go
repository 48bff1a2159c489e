package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ChatText performs a plain text completion at code temperature.
func ChatText(ctx context.Context, c LLMClient, system, user string) (string, error) {
	req := CompletionRequest{
		Messages: []CompletionMessage{
			{Role: RoleSystem, Content: system},
			{Role: RoleUser, Content: user},
		},
		Temperature: TemperatureCode,
		MaxTokens:   4096,
	}
	resp, err := c.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	return resp.Content, nil
}

// ChatJSON performs a deterministic completion expected to return one JSON
// object, unmarshalled into out. A reply that fails to parse is retried once
// with an explicit JSON-only nudge before giving up.
func ChatJSON(ctx context.Context, c LLMClient, system, user string, out any) error {
	req := CompletionRequest{
		Messages: []CompletionMessage{
			{Role: RoleSystem, Content: system},
			{Role: RoleUser, Content: user},
		},
		Temperature:    TemperatureDeterministic,
		ResponseFormat: FormatJSON,
		MaxTokens:      4096,
	}

	resp, err := c.Complete(ctx, req)
	if err != nil {
		return fmt.Errorf("json completion failed: %w", err)
	}
	if err := decodeJSONReply(resp.Content, out); err == nil {
		return nil
	}

	req.Messages = append(req.Messages,
		CompletionMessage{Role: RoleAssistant, Content: resp.Content},
		CompletionMessage{Role: RoleUser, Content: "That was not valid JSON. Reply with a single valid JSON object and nothing else."},
	)
	resp, err = c.Complete(ctx, req)
	if err != nil {
		return fmt.Errorf("json completion retry failed: %w", err)
	}
	if err := decodeJSONReply(resp.Content, out); err != nil {
		return fmt.Errorf("model did not return valid JSON: %w", err)
	}
	return nil
}

// decodeJSONReply tolerates code fences and leading prose around the object.
func decodeJSONReply(reply string, out any) error {
	cleaned := StripCodeFences(reply)
	if start := strings.IndexAny(cleaned, "{["); start > 0 {
		cleaned = cleaned[start:]
	}
	return json.Unmarshal([]byte(strings.TrimSpace(cleaned)), out)
}

// ProposeEdit asks the model for a full rewrite of one file satisfying the
// given intent. The reply is the complete new file content with any markdown
// fencing removed.
func ProposeEdit(ctx context.Context, c LLMClient, path, intent, current string) (string, error) {
	system := "You are a careful software engineer. You rewrite one file at a time. " +
		"Reply with the complete new file content only. No explanations, no markdown fences."
	user := fmt.Sprintf("File: %s\nIntent: %s\n\nCurrent content:\n%s", path, intent, current)

	req := CompletionRequest{
		Messages: []CompletionMessage{
			{Role: RoleSystem, Content: system},
			{Role: RoleUser, Content: user},
		},
		Temperature: TemperatureCode,
		MaxTokens:   16384,
	}
	resp, err := c.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("edit proposal for %s failed: %w", path, err)
	}
	content := StripCodeFences(resp.Content)
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("model returned empty content for %s", path)
	}
	return content, nil
}

// ProposePatch asks the model for a unified diff achieving the goal.
func ProposePatch(ctx context.Context, c LLMClient, goal, context string) (string, error) {
	system := "You produce minimal unified diffs (patch -p0 format) that apply cleanly. " +
		"Reply with the diff only, no prose, no markdown fences."
	user := fmt.Sprintf("Goal: %s\n\nContext:\n%s", goal, context)

	req := CompletionRequest{
		Messages: []CompletionMessage{
			{Role: RoleSystem, Content: system},
			{Role: RoleUser, Content: user},
		},
		Temperature: TemperatureCode,
		MaxTokens:   8192,
	}
	resp, err := c.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("patch proposal failed: %w", err)
	}
	return StripCodeFences(resp.Content), nil
}

// StripCodeFences removes a single wrapping markdown code fence, including an
// optional language tag, leaving other content untouched.
func StripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return s
	}
	// Drop the opening fence line (``` or ```lang).
	lines = lines[1:]
	// Drop the closing fence when present.
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

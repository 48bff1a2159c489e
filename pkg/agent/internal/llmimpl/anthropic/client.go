// Package anthropic provides the Anthropic Claude backend for the llm API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"shellcraft/pkg/agent/llm"
	"shellcraft/pkg/agent/llmerrors"
)

// ClaudeClient wraps the Anthropic API client to implement llm.LLMClient.
type ClaudeClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewClient creates a Claude client for the given model.
func NewClient(apiKey, model string) llm.LLMClient {
	return &ClaudeClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

// ensureAlternation prepares messages for the Anthropic API: system messages
// are extracted to the top-level system parameter, consecutive same-role
// messages are merged (text joined, tool calls and results concatenated), and
// the result must alternate user/assistant starting and ending with user.
func ensureAlternation(messages []llm.CompletionMessage) (systemPrompt string, alternating []llm.CompletionMessage, err error) {
	if len(messages) == 0 {
		return "", nil, fmt.Errorf("message list cannot be empty")
	}

	var systemParts []string
	var merged []llm.CompletionMessage
	for i := range messages {
		msg := messages[i]
		if msg.Role == llm.RoleSystem {
			systemParts = append(systemParts, msg.Content)
			continue
		}
		if n := len(merged); n > 0 && merged[n-1].Role == msg.Role {
			prev := &merged[n-1]
			if msg.Content != "" {
				if prev.Content != "" {
					prev.Content += "\n\n"
				}
				prev.Content += msg.Content
			}
			prev.ToolCalls = append(prev.ToolCalls, msg.ToolCalls...)
			prev.ToolResults = append(prev.ToolResults, msg.ToolResults...)
			continue
		}
		merged = append(merged, msg)
	}
	systemPrompt = strings.Join(systemParts, "\n\n")

	if len(merged) == 0 {
		return "", nil, fmt.Errorf("must have at least one non-system message")
	}
	if merged[0].Role != llm.RoleUser {
		return "", nil, fmt.Errorf("first message must be user role, got %s", merged[0].Role)
	}
	if merged[len(merged)-1].Role != llm.RoleUser {
		return "", nil, fmt.Errorf("last message must be user role, got %s", merged[len(merged)-1].Role)
	}
	return systemPrompt, merged, nil
}

// toMessageParams converts messages to Anthropic content blocks. Tool results
// become tool_result blocks on user turns and tool calls become tool_use
// blocks on assistant turns; dropping either desynchronizes the conversation
// the model sees from the tool loop's.
func toMessageParams(messages []llm.CompletionMessage) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(messages))
	for i := range messages {
		msg := &messages[i]

		var blocks []anthropic.ContentBlockParamUnion
		if msg.Role == llm.RoleUser {
			for j := range msg.ToolResults {
				tr := &msg.ToolResults[j]
				blocks = append(blocks, anthropic.NewToolResultBlock(tr.ToolCallID, tr.Content, tr.IsError))
			}
		}
		if msg.Content != "" {
			blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
		}
		if msg.Role == llm.RoleAssistant {
			for j := range msg.ToolCalls {
				tc := &msg.ToolCalls[j]
				input := tc.Parameters
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
		}
		// The API rejects messages without content.
		if len(blocks) == 0 {
			blocks = append(blocks, anthropic.NewTextBlock("(empty)"))
		}

		params = append(params, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(msg.Role),
			Content: blocks,
		})
	}
	return params
}

// Complete implements llm.LLMClient.
func (c *ClaudeClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	systemPrompt, alternating, err := ensureAlternation(in.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("message alternation error: %v", err))
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		Messages:    toMessageParams(alternating),
		MaxTokens:   int64(in.MaxTokens),
		Temperature: anthropic.Float(in.Temperature),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt, Type: "text"}}
	}

	if len(in.Tools) > 0 {
		var toolParams []anthropic.ToolUnionParam
		for i := range in.Tools {
			tool := &in.Tools[i]
			props := make(map[string]any)
			for name := range tool.InputSchema.Properties {
				prop := tool.InputSchema.Properties[name]
				propMap := map[string]any{"type": prop.Type}
				if prop.Description != "" {
					propMap["description"] = prop.Description
				}
				if len(prop.Enum) > 0 {
					propMap["enum"] = prop.Enum
				}
				props[name] = propMap
			}
			schema := anthropic.ToolInputSchemaParam{
				Type:       "object",
				Properties: props,
				Required:   tool.InputSchema.Required,
			}
			toolParams = append(toolParams, anthropic.ToolUnionParamOfTool(schema, tool.Name))
		}
		params.Tools = toolParams
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfAuto: &anthropic.ToolChoiceAutoParam{},
		}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "received empty response from Claude API")
	}

	var content string
	var toolCalls []llm.ToolCall
	for i := range resp.Content {
		block := &resp.Content[i]
		switch block.Type {
		case "text":
			content += block.AsText().Text
		case "tool_use":
			toolUse := block.AsToolUse()
			var args map[string]any
			if err := json.Unmarshal(toolUse.Input, &args); err != nil {
				return llm.CompletionResponse{}, fmt.Errorf("failed to parse tool input: %w", err)
			}
			toolCalls = append(toolCalls, llm.ToolCall{
				ID:         toolUse.ID,
				Name:       toolUse.Name,
				Parameters: args,
			})
		}
	}

	return llm.CompletionResponse{
		Content:   content,
		ToolCalls: toolCalls,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

// Stream implements llm.LLMClient by wrapping Complete; true incremental
// streaming is not needed by any caller yet.
func (c *ClaudeClient) Stream(ctx context.Context, in llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk, 1)
	go func() {
		defer close(ch)
		resp, err := c.Complete(ctx, in)
		if err != nil {
			ch <- llm.StreamChunk{Error: err}
			return
		}
		ch <- llm.StreamChunk{Content: resp.Content}
		ch <- llm.StreamChunk{Done: true}
	}()
	return ch, nil
}

// GetModelName returns the model name for this client.
func (c *ClaudeClient) GetModelName() string {
	return string(c.model)
}

// classifyError maps SDK failures to structured error types.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "request timeout")
	}
	if errors.Is(err, context.Canceled) {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "request canceled")
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "api key"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeAuth, err, "authentication failed")
	case strings.Contains(lower, "429") || strings.Contains(lower, "rate") || strings.Contains(lower, "quota"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeRateLimit, err, "rate limit exceeded")
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "connection") || strings.Contains(lower, "reset") ||
		strings.Contains(lower, "500") || strings.Contains(lower, "502") || strings.Contains(lower, "503"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "network or server error")
	case strings.Contains(lower, "400") || strings.Contains(lower, "invalid"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "bad request")
	default:
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err, "unclassified error")
	}
}

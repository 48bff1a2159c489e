// Package openai provides the OpenAI backend for the llm API, built on the
// official Go SDK's Responses API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"shellcraft/pkg/agent/llm"
	"shellcraft/pkg/agent/llmerrors"
	"shellcraft/pkg/config"
)

// Client wraps the official OpenAI Go client to implement llm.LLMClient.
type Client struct {
	client openai.Client
	model  string
}

// NewClient creates an OpenAI client for the given model. A non-empty baseURL
// points the client at an OpenAI-compatible endpoint (Groq, vLLM, etc.).
func NewClient(apiKey, model, baseURL string) llm.LLMClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// convertPropertyToSchema recursively converts a Property to OpenAI schema
// format.
func convertPropertyToSchema(prop *llm.Property) map[string]any {
	schema := map[string]any{
		"type":        prop.Type,
		"description": prop.Description,
	}
	if len(prop.Enum) > 0 {
		schema["enum"] = prop.Enum
	}
	if prop.Type == "array" && prop.Items != nil {
		schema["items"] = convertPropertyToSchema(prop.Items)
	}
	if prop.Type == "object" && prop.Properties != nil {
		properties := make(map[string]any)
		for name, child := range prop.Properties {
			if child != nil {
				properties[name] = convertPropertyToSchema(child)
			}
		}
		schema["properties"] = properties
	}
	return schema
}

// Complete implements llm.LLMClient.
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	// The Responses API takes a single input string; fold the conversation
	// into it with role markers.
	var inputText string
	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case llm.RoleSystem:
			inputText += fmt.Sprintf("System: %s\n\n", msg.Content)
		case llm.RoleUser:
			inputText += msg.Content + "\n\n"
		case llm.RoleAssistant:
			inputText += fmt.Sprintf("Assistant: %s\n\n", msg.Content)
		}
		for j := range msg.ToolResults {
			tr := &msg.ToolResults[j]
			inputText += fmt.Sprintf("Tool result (%s): %s\n\n", tr.ToolCallID, tr.Content)
		}
	}
	if in.ResponseFormat == llm.FormatJSON {
		inputText += "Respond with a single valid JSON object and nothing else.\n"
	}

	// Cap MaxTokens to the model's output limit to avoid API errors.
	maxTokens := in.MaxTokens
	if info, ok := config.LookupModel(c.model); ok && info.MaxOutputTokens > 0 && maxTokens > info.MaxOutputTokens {
		maxTokens = info.MaxOutputTokens
	}

	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(int64(maxTokens)),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(inputText)},
	}

	if len(in.Tools) > 0 {
		toolParams := make([]responses.ToolUnionParam, len(in.Tools))
		for i := range in.Tools {
			tool := &in.Tools[i]
			properties := make(map[string]any)
			for name, prop := range tool.InputSchema.Properties {
				properties[name] = convertPropertyToSchema(&prop)
			}
			toolParams[i] = responses.ToolUnionParam{
				OfFunction: &responses.FunctionToolParam{
					Name:        tool.Name,
					Description: openai.String(tool.Description),
					Parameters: openai.FunctionParameters(map[string]any{
						"type":       "object",
						"properties": properties,
						"required":   tool.InputSchema.Required,
					}),
				},
			}
		}
		params.Tools = toolParams
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if resp == nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from OpenAI Responses API")
	}

	var toolCalls []llm.ToolCall
	for i := range resp.Output {
		item := &resp.Output[i]
		if item.Type != "function_call" {
			continue
		}
		funcItem := item.AsFunctionCall()
		var parameters map[string]any
		if funcItem.Arguments != "" {
			if err := json.Unmarshal([]byte(funcItem.Arguments), &parameters); err != nil {
				continue
			}
		}
		toolCalls = append(toolCalls, llm.ToolCall{
			ID:         funcItem.ID,
			Name:       funcItem.Name,
			Parameters: parameters,
		})
	}

	return llm.CompletionResponse{
		Content:   resp.OutputText(),
		ToolCalls: toolCalls,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

// classifyError maps SDK failures onto retryability classes; API errors
// carry their HTTP status.
func classifyError(err error) error {
	var apierr *openai.Error
	if !errors.As(err, &apierr) {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "OpenAI Responses API failed")
	}
	t := llmerrors.ErrorTypeUnknown
	switch {
	case apierr.StatusCode == 401 || apierr.StatusCode == 403:
		t = llmerrors.ErrorTypeAuth
	case apierr.StatusCode == 429:
		t = llmerrors.ErrorTypeRateLimit
	case apierr.StatusCode >= 500:
		t = llmerrors.ErrorTypeTransient
	case apierr.StatusCode == 400:
		t = llmerrors.ErrorTypeBadPrompt
	}
	return llmerrors.NewErrorWithStatus(t, apierr.StatusCode, err.Error())
}

// Stream implements llm.LLMClient by wrapping Complete.
func (c *Client) Stream(ctx context.Context, in llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
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
func (c *Client) GetModelName() string {
	return c.model
}

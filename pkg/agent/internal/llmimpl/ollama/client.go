// Package ollama provides the local Ollama backend for the llm API.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"shellcraft/pkg/agent/llm"
	"shellcraft/pkg/agent/llmerrors"
)

// DefaultHost is used when OLLAMA_HOST is unset.
const DefaultHost = "http://localhost:11434"

// Client wraps the Ollama API client to implement llm.LLMClient.
type Client struct {
	client *api.Client
	model  string
}

// NewClient creates an Ollama client for the given model. hostURL may be
// empty, in which case the default local daemon address is used.
func NewClient(hostURL, model string) llm.LLMClient {
	if hostURL == "" {
		hostURL = DefaultHost
	}
	parsed, err := url.Parse(hostURL)
	if err != nil {
		parsed, _ = url.Parse(DefaultHost)
	}
	return &Client{
		client: api.NewClient(parsed, http.DefaultClient),
		model:  strings.TrimPrefix(model, "ollama:"),
	}
}

// Complete implements llm.LLMClient.
func (o *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	messages, err := convertMessages(in.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("message conversion error: %v", err))
	}

	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": in.Temperature,
			"num_predict": in.MaxTokens,
		},
	}
	if in.ResponseFormat == llm.FormatJSON {
		req.Format = []byte(`"json"`)
	}
	if len(in.Tools) > 0 {
		req.Tools = convertTools(in.Tools)
	}

	var response api.ChatResponse
	err = o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}

	result := llm.CompletionResponse{
		Content: response.Message.Content,
		Usage: llm.Usage{
			PromptTokens:     response.Metrics.PromptEvalCount,
			CompletionTokens: response.Metrics.EvalCount,
		},
	}
	if len(response.Message.ToolCalls) > 0 {
		result.ToolCalls = convertToolCalls(response.Message.ToolCalls)
	}
	return result, nil
}

// Stream implements llm.LLMClient using Ollama's native streaming.
func (o *Client) Stream(ctx context.Context, in llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	messages, err := convertMessages(in.Messages)
	if err != nil {
		return nil, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("message conversion error: %v", err))
	}

	stream := true
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": in.Temperature,
			"num_predict": in.MaxTokens,
		},
	}

	ch := make(chan llm.StreamChunk, 16)
	go func() {
		defer close(ch)
		err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			if resp.Message.Content != "" {
				ch <- llm.StreamChunk{Content: resp.Message.Content}
			}
			if resp.Done {
				ch <- llm.StreamChunk{Done: true}
			}
			return nil
		})
		if err != nil {
			ch <- llm.StreamChunk{Error: classifyError(err)}
		}
	}()
	return ch, nil
}

// GetModelName returns the model name for this client.
func (o *Client) GetModelName() string {
	return o.model
}

func convertMessages(messages []llm.CompletionMessage) ([]api.Message, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("message list cannot be empty")
	}

	result := make([]api.Message, 0, len(messages))
	for i := range messages {
		msg := &messages[i]

		ollamaMsg := api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
		if len(msg.ToolCalls) > 0 {
			ollamaMsg.ToolCalls = make([]api.ToolCall, len(msg.ToolCalls))
			for j := range msg.ToolCalls {
				tc := &msg.ToolCalls[j]
				ollamaMsg.ToolCalls[j] = api.ToolCall{
					ID: tc.ID,
					Function: api.ToolCallFunction{
						Name:      tc.Name,
						Arguments: api.ToolCallFunctionArguments(tc.Parameters),
					},
				}
			}
		}

		// Tool results become separate role=tool messages.
		if len(msg.ToolResults) > 0 {
			for j := range msg.ToolResults {
				tr := &msg.ToolResults[j]
				result = append(result, api.Message{
					Role:       "tool",
					Content:    tr.Content,
					ToolCallID: tr.ToolCallID,
				})
			}
			if msg.Content != "" {
				result = append(result, ollamaMsg)
			}
			continue
		}

		result = append(result, ollamaMsg)
	}
	return result, nil
}

func convertTools(toolDefs []llm.ToolDefinition) api.Tools {
	ollamaTools := make(api.Tools, len(toolDefs))
	for i := range toolDefs {
		td := &toolDefs[i]
		properties := make(map[string]api.ToolProperty)
		for name := range td.InputSchema.Properties {
			prop := td.InputSchema.Properties[name]
			properties[name] = convertProperty(&prop)
		}
		ollamaTools[i] = api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        td.Name,
				Description: td.Description,
				Parameters: api.ToolFunctionParameters{
					Type:       td.InputSchema.Type,
					Properties: properties,
					Required:   td.InputSchema.Required,
				},
			},
		}
	}
	return ollamaTools
}

func convertProperty(prop *llm.Property) api.ToolProperty {
	out := api.ToolProperty{
		Type:        api.PropertyType{prop.Type},
		Description: prop.Description,
	}
	if len(prop.Enum) > 0 {
		enumVals := make([]any, len(prop.Enum))
		for i, v := range prop.Enum {
			enumVals[i] = v
		}
		out.Enum = enumVals
	}
	if prop.Items != nil {
		out.Items = convertProperty(prop.Items)
	}
	return out
}

func convertToolCalls(calls []api.ToolCall) []llm.ToolCall {
	result := make([]llm.ToolCall, len(calls))
	for i := range calls {
		call := &calls[i]
		id := call.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		result[i] = llm.ToolCall{
			ID:         id,
			Name:       call.Function.Name,
			Parameters: map[string]any(call.Function.Arguments),
		}
	}
	return result
}

func classifyError(err error) error {
	if err == nil {
		return nil
	}
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection refused"):
		return llmerrors.NewError(llmerrors.ErrorTypeTransient, fmt.Sprintf("Ollama server not reachable: %v", err))
	case strings.Contains(errStr, "model") && strings.Contains(errStr, "not found"):
		return llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("Ollama model not found: %v", err))
	case strings.Contains(errStr, "context canceled"), strings.Contains(errStr, "timeout"):
		return llmerrors.NewError(llmerrors.ErrorTypeTransient, fmt.Sprintf("request interrupted: %v", err))
	default:
		return llmerrors.NewError(llmerrors.ErrorTypeUnknown, fmt.Sprintf("Ollama API error: %v", err))
	}
}

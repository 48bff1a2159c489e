// Package llm defines the provider-neutral completion API.
//
// Provider clients (anthropic, openai, google, ollama) implement LLMClient;
// everything above this package talks in CompletionRequest/Response terms and
// never sees provider SDK types.
package llm

import (
	"context"
	"fmt"
	"io"
)

// Temperature presets.
const (
	// TemperatureDefault suits conversational replies.
	TemperatureDefault = 0.3
	// TemperatureCode suits code generation and planning prose.
	TemperatureCode = 0.2
	// TemperatureDeterministic is used for structured JSON output.
	TemperatureDeterministic = 0.0
)

// CompletionRole identifies the author of a message.
type CompletionRole string

const (
	RoleSystem    CompletionRole = "system"
	RoleUser      CompletionRole = "user"
	RoleAssistant CompletionRole = "assistant"
)

// ResponseFormat constrains the shape of the model output.
type ResponseFormat string

const (
	// FormatText imposes no constraint.
	FormatText ResponseFormat = "text"
	// FormatJSON requests a single valid JSON object.
	FormatJSON ResponseFormat = "json"
)

// Property describes one field of a tool input schema.
type Property struct {
	Items       *Property            `json:"items,omitempty"`
	Properties  map[string]*Property `json:"properties,omitempty"`
	Type        string               `json:"type"`
	Description string               `json:"description,omitempty"`
	Enum        []string             `json:"enum,omitempty"`
}

// InputSchema is the JSON schema for a tool's parameters.
type InputSchema struct {
	Properties map[string]Property `json:"properties"`
	Type       string              `json:"type"`
	Required   []string            `json:"required,omitempty"`
}

// ToolDefinition describes a callable tool offered to the model.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	Parameters map[string]any `json:"parameters"`
	ID         string         `json:"id"`
	Name       string         `json:"name"`
}

// ToolResult carries the outcome of a tool call back into the conversation.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}

// CompletionMessage is one turn of the conversation.
type CompletionMessage struct {
	Role        CompletionRole `json:"role"`
	Content     string         `json:"content"`
	ToolCalls   []ToolCall     `json:"tool_calls,omitempty"`
	ToolResults []ToolResult   `json:"tool_results,omitempty"`
}

// CompletionRequest is a provider-neutral completion request.
type CompletionRequest struct {
	Messages       []CompletionMessage
	Tools          []ToolDefinition
	ResponseFormat ResponseFormat
	MaxTokens      int
	Temperature    float64
}

// Usage reports token consumption for one completion, estimated locally when
// the provider omits it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// CompletionResponse is a provider-neutral completion result.
type CompletionResponse struct {
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
}

// StreamChunk is one increment of a streaming completion.
type StreamChunk struct {
	Content string
	Error   error
	Done    bool
}

// LLMClient is implemented by each provider backend.
type LLMClient interface {
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)
	Stream(ctx context.Context, in CompletionRequest) (<-chan StreamChunk, error)
	GetModelName() string
}

// Validate checks a request for the mistakes providers reject.
func (r *CompletionRequest) Validate() error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("completion request must contain at least one message")
	}
	if r.MaxTokens < 0 {
		return fmt.Errorf("max tokens cannot be negative")
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return fmt.Errorf("temperature %v out of range [0, 2]", r.Temperature)
	}
	return nil
}

// StreamToReader adapts a chunk channel to an io.Reader.
func StreamToReader(ch <-chan StreamChunk) io.Reader {
	pr, pw := io.Pipe()
	go func() {
		for chunk := range ch {
			if chunk.Error != nil {
				pw.CloseWithError(chunk.Error)
				return
			}
			if chunk.Content != "" {
				if _, err := pw.Write([]byte(chunk.Content)); err != nil {
					return
				}
			}
			if chunk.Done {
				break
			}
		}
		pw.Close()
	}()
	return pr
}

// Package google provides the Google Gemini backend for the llm API.
package google

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"shellcraft/pkg/agent/llm"
	"shellcraft/pkg/agent/llmerrors"
)

// GeminiClient wraps the Google GenAI client to implement llm.LLMClient.
// Client creation needs a context, so it happens lazily on first use.
type GeminiClient struct {
	client *genai.Client
	apiKey string
	model  string
}

// NewClient creates a Gemini client for the given model.
func NewClient(apiKey, model string) llm.LLMClient {
	return &GeminiClient{apiKey: apiKey, model: model}
}

// Complete implements llm.LLMClient.
func (g *GeminiClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	if g.client == nil {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeAuth, err, "failed to create Gemini client")
		}
		g.client = client
	}

	contents, systemInstruction, err := convertMessages(in.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("message conversion error: %v", err))
	}

	temperature := float32(in.Temperature)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(in.MaxTokens),
	}
	if systemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		}
	}
	if in.ResponseFormat == llm.FormatJSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if len(in.Tools) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: convertTools(in.Tools)}}
		// Without mode ANY Gemini sometimes returns empty responses when the
		// available tools change between turns.
		cfg.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode: genai.FunctionCallingConfigModeAny,
			},
		}
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err, "Gemini API call failed")
	}
	if result == nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from Gemini API")
	}

	response := llm.CompletionResponse{Content: result.Text()}
	if result.UsageMetadata != nil {
		response.Usage = llm.Usage{
			PromptTokens:     int(result.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(result.UsageMetadata.CandidatesTokenCount),
		}
	}
	if functionCalls := result.FunctionCalls(); len(functionCalls) > 0 {
		response.ToolCalls = convertFunctionCalls(functionCalls)
	}
	return response, nil
}

// Stream implements llm.LLMClient by wrapping Complete.
func (g *GeminiClient) Stream(ctx context.Context, in llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk, 1)
	go func() {
		defer close(ch)
		resp, err := g.Complete(ctx, in)
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
func (g *GeminiClient) GetModelName() string {
	return g.model
}

// convertMessages converts our message format to Gemini Content values and an
// optional system instruction.
func convertMessages(messages []llm.CompletionMessage) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("message list cannot be empty")
	}

	var systemInstruction string
	var contents []*genai.Content
	for i := range messages {
		msg := &messages[i]

		if msg.Role == llm.RoleSystem {
			if systemInstruction != "" {
				systemInstruction += "\n\n"
			}
			systemInstruction += msg.Content
			continue
		}

		var role string
		switch msg.Role {
		case llm.RoleUser:
			role = "user"
		case llm.RoleAssistant:
			role = "model"
		default:
			return nil, "", fmt.Errorf("unsupported message role: %s", msg.Role)
		}

		var parts []*genai.Part
		if msg.Content != "" {
			parts = append(parts, &genai.Part{Text: msg.Content})
		}
		for j := range msg.ToolCalls {
			tc := &msg.ToolCalls[j]
			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{
					Name: tc.Name,
					Args: tc.Parameters,
					ID:   tc.ID,
				},
			})
		}
		for j := range msg.ToolResults {
			tr := &msg.ToolResults[j]
			if tr.ToolCallID == "" {
				continue
			}
			// Gemini matches responses by function name carried in ToolCallID.
			parts = append(parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					Name: tr.ToolCallID,
					Response: map[string]any{
						"content":  tr.Content,
						"is_error": tr.IsError,
					},
				},
			})
		}

		if len(parts) > 0 {
			contents = append(contents, &genai.Content{Role: role, Parts: parts})
		}
	}
	return contents, systemInstruction, nil
}

func convertTools(toolDefs []llm.ToolDefinition) []*genai.FunctionDeclaration {
	declarations := make([]*genai.FunctionDeclaration, len(toolDefs))
	for i := range toolDefs {
		tool := &toolDefs[i]
		properties := make(map[string]*genai.Schema)
		for name := range tool.InputSchema.Properties {
			prop := tool.InputSchema.Properties[name]
			properties[name] = convertPropertySchema(&prop)
		}
		declarations[i] = &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: properties,
				Required:   tool.InputSchema.Required,
			},
		}
	}
	return declarations
}

func convertPropertySchema(prop *llm.Property) *genai.Schema {
	schema := &genai.Schema{Description: prop.Description}
	switch prop.Type {
	case "string":
		schema.Type = genai.TypeString
	case "number":
		schema.Type = genai.TypeNumber
	case "integer":
		schema.Type = genai.TypeInteger
	case "boolean":
		schema.Type = genai.TypeBoolean
	case "array":
		schema.Type = genai.TypeArray
		if prop.Items != nil {
			schema.Items = convertPropertySchema(prop.Items)
		}
	case "object":
		schema.Type = genai.TypeObject
		if prop.Properties != nil {
			properties := make(map[string]*genai.Schema)
			for name, child := range prop.Properties {
				if child != nil {
					properties[name] = convertPropertySchema(child)
				}
			}
			schema.Properties = properties
		}
	default:
		schema.Type = genai.TypeString
	}
	if len(prop.Enum) > 0 {
		schema.Enum = prop.Enum
	}
	return schema
}

func convertFunctionCalls(calls []*genai.FunctionCall) []llm.ToolCall {
	toolCalls := make([]llm.ToolCall, len(calls))
	for i := range calls {
		call := calls[i]
		id := call.ID
		if id == "" {
			// Gemini omits call IDs; the function name links results back.
			id = call.Name
		}
		toolCalls[i] = llm.ToolCall{
			ID:         id,
			Name:       call.Name,
			Parameters: call.Args,
		}
	}
	return toolCalls
}

// Package agent wires provider clients together and re-exports the llm API
// types used throughout the codebase.
package agent

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"shellcraft/pkg/agent/internal/llmimpl/anthropic"
	"shellcraft/pkg/agent/internal/llmimpl/google"
	"shellcraft/pkg/agent/internal/llmimpl/ollama"
	"shellcraft/pkg/agent/internal/llmimpl/openai"
	"shellcraft/pkg/agent/llm"
	"shellcraft/pkg/config"
	"shellcraft/pkg/limiter"
	"shellcraft/pkg/metrics"
	"shellcraft/pkg/utils"
)

// Re-exported llm types so agent packages rarely import llm directly.
type (
	LLMClient          = llm.LLMClient
	CompletionRequest  = llm.CompletionRequest
	CompletionResponse = llm.CompletionResponse
	CompletionMessage  = llm.CompletionMessage
	ToolCall           = llm.ToolCall
	ToolResult         = llm.ToolResult
	ToolDefinition     = llm.ToolDefinition
	StreamChunk        = llm.StreamChunk
)

// sharedLimiter paces calls per provider across every client in the
// process.
var sharedLimiter = limiter.New(4, 60)

// UsageSink receives the usage of every completed call. A returned error
// marks the budget exhausted: later calls fail before reaching the
// provider.
type UsageSink func(model, provider string, promptTokens, completionTokens int) error

var (
	sinkMu    sync.Mutex
	usageSink UsageSink
	sinkErr   error
)

// SetUsageSink installs the process-wide usage sink and clears any prior
// budget exhaustion.
func SetUsageSink(f UsageSink) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	usageSink = f
	sinkErr = nil
}

func sinkExhausted() error {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	return sinkErr
}

func reportUsage(model, provider string, promptTokens, completionTokens int) {
	sinkMu.Lock()
	sink := usageSink
	sinkMu.Unlock()
	if sink == nil {
		return
	}
	if err := sink(model, provider, promptTokens, completionTokens); err != nil {
		sinkMu.Lock()
		sinkErr = err
		sinkMu.Unlock()
	}
}

// NewClient creates a provider client for the given model ID, wrapped with
// rate limiting and usage accounting. The provider is inferred from the
// model registry and name patterns; credentials come from the registry's
// APIKeyEnv or the provider's conventional variable.
func NewClient(model string) (llm.LLMClient, error) {
	raw, provider, err := newRawClient(model)
	if err != nil {
		return nil, err
	}
	return &instrumentedClient{
		inner:    raw,
		provider: provider,
		counter:  newCounter(model),
	}, nil
}

func newRawClient(model string) (llm.LLMClient, string, error) {
	provider, err := config.GetModelProvider(model)
	if err != nil {
		return nil, "", err
	}
	c, err := buildClient(model, provider)
	return c, provider, err
}

func buildClient(model, provider string) (llm.LLMClient, error) {
	info, _ := config.LookupModel(model)

	switch provider {
	case config.ProviderAnthropic:
		key := apiKey(info, "ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("model %s requires ANTHROPIC_API_KEY", model)
		}
		return anthropic.NewClient(key, model), nil

	case config.ProviderOpenAI:
		keyEnv := "OPENAI_API_KEY"
		if info.APIKeyEnv != "" {
			keyEnv = info.APIKeyEnv
		}
		key := os.Getenv(keyEnv)
		if key == "" {
			return nil, fmt.Errorf("model %s requires %s", model, keyEnv)
		}
		return openai.NewClient(key, model, info.BaseURL), nil

	case config.ProviderGoogle:
		key := apiKey(info, "GEMINI_API_KEY")
		if key == "" {
			key = os.Getenv("GOOGLE_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("model %s requires GEMINI_API_KEY", model)
		}
		return google.NewClient(key, model), nil

	case config.ProviderOllama:
		host := os.Getenv("OLLAMA_HOST")
		if info.BaseURL != "" {
			host = info.BaseURL
		}
		return ollama.NewClient(host, model), nil

	default:
		return nil, fmt.Errorf("unknown provider %q for model %s", provider, model)
	}
}

func apiKey(info config.ModelInfo, fallbackEnv string) string {
	if info.APIKeyEnv != "" {
		if v := os.Getenv(info.APIKeyEnv); v != "" {
			return v
		}
	}
	return os.Getenv(fallbackEnv)
}

func newCounter(model string) *utils.TokenCounter {
	counter, err := utils.NewTokenCounter(model)
	if err != nil {
		return nil
	}
	return counter
}

// instrumentedClient paces calls through the shared limiter and records
// usage, estimating token counts when the provider omits them.
type instrumentedClient struct {
	inner    llm.LLMClient
	counter  *utils.TokenCounter
	provider string
}

func (c *instrumentedClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	if err := sinkExhausted(); err != nil {
		return llm.CompletionResponse{}, err
	}
	if err := sharedLimiter.Wait(ctx, c.provider); err != nil {
		return llm.CompletionResponse{}, err
	}
	resp, err := c.inner.Complete(ctx, in)
	if err == nil && resp.Usage.PromptTokens == 0 && resp.Usage.CompletionTokens == 0 {
		resp.Usage = c.estimateUsage(in, resp)
	}
	metrics.RecordLLMRequest(c.inner.GetModelName(), resp.Usage.PromptTokens, resp.Usage.CompletionTokens, err)
	if err == nil {
		reportUsage(c.inner.GetModelName(), c.provider, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	return resp, err
}

// Stream applies the same budget latch, pacing, and accounting as Complete.
// Usage is estimated from the accumulated chunks once the stream drains.
func (c *instrumentedClient) Stream(ctx context.Context, in llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	if err := sinkExhausted(); err != nil {
		return nil, err
	}
	if err := sharedLimiter.Wait(ctx, c.provider); err != nil {
		return nil, err
	}
	inner, err := c.inner.Stream(ctx, in)
	if err != nil {
		metrics.RecordLLMRequest(c.inner.GetModelName(), 0, 0, err)
		return nil, err
	}

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		var content strings.Builder
		var streamErr error
		for chunk := range inner {
			if chunk.Error != nil {
				streamErr = chunk.Error
			}
			content.WriteString(chunk.Content)
			out <- chunk
		}
		usage := c.estimateUsage(in, llm.CompletionResponse{Content: content.String()})
		metrics.RecordLLMRequest(c.inner.GetModelName(), usage.PromptTokens, usage.CompletionTokens, streamErr)
		if streamErr == nil {
			reportUsage(c.inner.GetModelName(), c.provider, usage.PromptTokens, usage.CompletionTokens)
		}
	}()
	return out, nil
}

func (c *instrumentedClient) GetModelName() string { return c.inner.GetModelName() }

func (c *instrumentedClient) estimateUsage(in llm.CompletionRequest, resp llm.CompletionResponse) llm.Usage {
	count := func(s string) int {
		if c.counter != nil {
			return c.counter.CountTokens(s)
		}
		return len(s) / 4
	}
	var usage llm.Usage
	for _, m := range in.Messages {
		usage.PromptTokens += count(m.Content)
		for _, r := range m.ToolResults {
			usage.PromptTokens += count(r.Content)
		}
	}
	usage.CompletionTokens = count(resp.Content)
	return usage
}

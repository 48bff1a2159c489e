// Package toolloop drives the conversation turn cycle for an agent: send
// context to the model, execute every requested tool call, feed results
// back, and repeat until a terminal tool fires or a budget runs out.
package toolloop

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shellcraft/pkg/agent/llm"
	"shellcraft/pkg/agent/llmerrors"
	"shellcraft/pkg/contextmgr"
	"shellcraft/pkg/logx"
	"shellcraft/pkg/metrics"
	"shellcraft/pkg/tools"
)

const (
	defaultMaxIterations = 20
	llmRetries           = 3
	llmRetryBackoff      = 2 * time.Second
)

// Signal is the terminal outcome of a loop run.
type Signal struct {
	Result    map[string]any
	Tool      string
	FinalText string
}

// Config wires one loop run.
type Config struct {
	Client         llm.LLMClient
	Context        *contextmgr.ContextManager
	Provider       *tools.Provider
	Logger         *logx.Logger
	// CheckTerminal inspects a successful tool result and reports whether
	// the loop should stop. Nil means only tool errors and budgets stop it.
	CheckTerminal    func(toolName string, result map[string]any) bool
	OnIterationLimit func(iterations int)
	InitialPrompt    string
	MaxIterations    int
	MaxTokens        int
}

// Run executes the loop until a terminal signal, the iteration cap, the
// token budget, or context cancellation.
func Run(ctx context.Context, cfg Config) (*Signal, error) {
	if cfg.Client == nil || cfg.Context == nil || cfg.Provider == nil {
		return nil, fmt.Errorf("toolloop config incomplete")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logx.NewLogger("toolloop")
	}
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	if cfg.InitialPrompt != "" {
		cfg.Context.AddMessage("user", cfg.InitialPrompt)
	}
	defs := cfg.Provider.Definitions()

	tokensUsed := 0
	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if iteration > maxIterations {
			if cfg.OnIterationLimit != nil {
				cfg.OnIterationLimit(maxIterations)
			}
			return nil, fmt.Errorf("tool loop exceeded %d iterations", maxIterations)
		}
		if cfg.MaxTokens > 0 && tokensUsed >= cfg.MaxTokens {
			return nil, fmt.Errorf("tool loop exceeded token budget (%d used)", tokensUsed)
		}

		cfg.Context.CompactIfNeeded()
		logger.Debug("iteration %d, %s", iteration, cfg.Context.Summary())
		req := llm.CompletionRequest{
			Messages:    buildMessages(cfg.Context),
			Tools:       defs,
			Temperature: llm.TemperatureDefault,
			MaxTokens:   cfg.Context.MaxReplyTokens(),
		}

		resp, err := completeWithRetry(ctx, cfg.Client, req, logger)
		if err != nil {
			return nil, fmt.Errorf("model call failed on iteration %d: %w", iteration, err)
		}
		tokensUsed += resp.Usage.PromptTokens + resp.Usage.CompletionTokens

		if len(resp.ToolCalls) == 0 {
			if resp.Content == "" {
				logger.Warn("empty model reply on iteration %d, nudging", iteration)
				cfg.Context.AddMessage("user", "Continue with the task. Use a tool, or call done when finished.")
				continue
			}
			cfg.Context.AddAssistantMessage(resp.Content)
			return &Signal{FinalText: resp.Content}, nil
		}

		cfg.Context.AddAssistantMessageWithTools(resp.Content, toContextCalls(resp.ToolCalls))

		// Every requested call executes before the next model turn, so the
		// model always sees one result per call it made.
		var terminal *Signal
		for _, call := range resp.ToolCalls {
			result, execErr := cfg.Provider.Exec(ctx, call.Name, call.Parameters)
			metrics.RecordToolRun(call.Name, execErr)
			if execErr != nil {
				logger.Warn("tool %s failed: %v", call.Name, execErr)
				cfg.Context.AddToolResult(call.ID, execErr.Error(), true)
				continue
			}
			cfg.Context.AddToolResult(call.ID, encodeResult(result), false)
			if terminal == nil && cfg.CheckTerminal != nil && cfg.CheckTerminal(call.Name, result) {
				terminal = &Signal{Tool: call.Name, Result: result, FinalText: resp.Content}
			}
		}
		if terminal != nil {
			logger.Debug("terminal tool %s after %d iterations", terminal.Tool, iteration)
			return terminal, nil
		}
	}
}

func completeWithRetry(ctx context.Context, client llm.LLMClient, req llm.CompletionRequest, logger *logx.Logger) (llm.CompletionResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= llmRetries; attempt++ {
		if attempt > 0 {
			wait := llmRetryBackoff * time.Duration(1<<(attempt-1))
			logger.Debug("retrying model call in %s (attempt %d/%d)", wait, attempt, llmRetries)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return llm.CompletionResponse{}, ctx.Err()
			}
		}
		resp, err := client.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !llmerrors.IsRetryable(err) {
			return llm.CompletionResponse{}, err
		}
	}
	return llm.CompletionResponse{}, fmt.Errorf("model call failed after %d retries: %w", llmRetries, lastErr)
}

func buildMessages(cm *contextmgr.ContextManager) []llm.CompletionMessage {
	stored := cm.GetMessages()
	out := make([]llm.CompletionMessage, 0, len(stored))
	for _, m := range stored {
		msg := llm.CompletionMessage{Role: llm.CompletionRole(m.Role), Content: m.Content}
		for _, c := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{ID: c.ID, Name: c.Name, Parameters: c.Parameters})
		}
		for _, r := range m.ToolResults {
			msg.ToolResults = append(msg.ToolResults, llm.ToolResult{ToolCallID: r.ToolCallID, Content: r.Content, IsError: r.IsError})
		}
		out = append(out, msg)
	}
	return out
}

func toContextCalls(calls []llm.ToolCall) []contextmgr.ToolCall {
	out := make([]contextmgr.ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, contextmgr.ToolCall{ID: c.ID, Name: c.Name, Parameters: c.Parameters})
	}
	return out
}

func encodeResult(result map[string]any) string {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(data)
}

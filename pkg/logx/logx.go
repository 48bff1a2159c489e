// Package logx provides agent-scoped logging with debug domain filtering.
//
// Every log line carries a timestamp and the agent identity that produced it:
//
//	[2025-01-02T15:04:05Z] [planner] INFO: plan ready: 3 edits, 2 actions
//
// Debug output is off by default and enabled with DEBUG=1 (all domains) or
// DEBUG_DOMAINS=llm,runner for selected domains. A bounded in-memory buffer
// keeps recent lines so reports and self-healing can quote them.
package logx

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// DebugConfig controls debug logging, read once from the environment.
type DebugConfig struct {
	Domains map[string]bool
	Enabled bool
}

var (
	debugConfig     DebugConfig
	debugConfigOnce sync.Once
)

func getDebugConfig() DebugConfig {
	debugConfigOnce.Do(func() {
		debugConfig = DebugConfig{Domains: make(map[string]bool)}
		if v := os.Getenv("DEBUG"); v == "1" || strings.EqualFold(v, "true") {
			debugConfig.Enabled = true
		}
		if domains := os.Getenv("DEBUG_DOMAINS"); domains != "" {
			debugConfig.Enabled = true
			for _, d := range strings.Split(domains, ",") {
				if d = strings.TrimSpace(d); d != "" {
					debugConfig.Domains[d] = true
				}
			}
		}
	})
	return debugConfig
}

// debugEnabledFor reports whether debug logging applies to the given agent.
// An empty domain set means all domains.
func debugEnabledFor(agentID string) bool {
	cfg := getDebugConfig()
	if !cfg.Enabled {
		return false
	}
	if len(cfg.Domains) == 0 {
		return true
	}
	return cfg.Domains[agentID]
}

// LogBuffer retains the most recent log lines in memory.
type LogBuffer struct {
	mu      sync.Mutex
	lines   []string
	maxSize int
}

const defaultBufferSize = 1000

var globalBuffer = &LogBuffer{maxSize: defaultBufferSize}

func (b *LogBuffer) append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if len(b.lines) > b.maxSize {
		b.lines = b.lines[len(b.lines)-b.maxSize:]
	}
}

// Tail returns up to n of the most recent log lines.
func Tail(n int) []string {
	globalBuffer.mu.Lock()
	defer globalBuffer.mu.Unlock()
	if n > len(globalBuffer.lines) {
		n = len(globalBuffer.lines)
	}
	out := make([]string, n)
	copy(out, globalBuffer.lines[len(globalBuffer.lines)-n:])
	return out
}

// Logger writes leveled, agent-tagged lines to stderr.
type Logger struct {
	logger  *log.Logger
	agentID string
}

// NewLogger creates a logger scoped to the given agent identity.
func NewLogger(agentID string) *Logger {
	return &Logger{
		agentID: agentID,
		logger:  log.New(os.Stderr, "", 0),
	}
}

func (l *Logger) output(level, msg string, args ...any) {
	line := fmt.Sprintf("[%s] [%s] %s: %s",
		time.Now().UTC().Format(time.RFC3339),
		l.agentID,
		level,
		fmt.Sprintf(msg, args...))
	globalBuffer.append(line)
	l.logger.Print(line)
}

// Debug logs at DEBUG level when enabled for this agent's domain.
func (l *Logger) Debug(msg string, args ...any) {
	if debugEnabledFor(l.agentID) {
		l.output("DEBUG", msg, args...)
	}
}

// Info logs at INFO level.
func (l *Logger) Info(msg string, args ...any) {
	l.output("INFO", msg, args...)
}

// Warn logs at WARN level.
func (l *Logger) Warn(msg string, args ...any) {
	l.output("WARN", msg, args...)
}

// Error logs at ERROR level.
func (l *Logger) Error(msg string, args ...any) {
	l.output("ERROR", msg, args...)
}

// Errorf logs the formatted message at ERROR level and returns it as an error.
func (l *Logger) Errorf(msg string, args ...any) error {
	err := fmt.Errorf(msg, args...)
	l.output("ERROR", "%s", err.Error())
	return err
}

// Wrap annotates err with msg, logs the result, and returns it.
func (l *Logger) Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s: %w", msg, err)
	l.output("ERROR", "%s", wrapped.Error())
	return wrapped
}

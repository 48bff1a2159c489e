// Package config manages project configuration and the model registry.
//
// Configuration lives in three layers, lowest precedence first:
//
//  1. compiled-in defaults
//  2. the project config file .shellcraft.yaml in the workspace root
//  3. environment variables (MODEL_ID, SHELLCRAFT_* overrides)
//
// A single global Config is held behind a RWMutex. Readers get a value copy
// via GetConfig so concurrent agents never observe a partially updated
// configuration; writers use the UpdateX setters.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings for a shellcraft session.
type Config struct {
	// Model selection.
	DefaultModel string `yaml:"default_model"`
	// Workspace root all relative paths resolve against.
	WorkDir string `yaml:"workdir"`
	// Directory for agent artifacts (logs, patches, events, state).
	AgentDir string `yaml:"agent_dir"`

	// Guardrail settings.
	Allowlist []string `yaml:"allowlist"`
	Unsafe    bool     `yaml:"unsafe"`
	DryRun    bool     `yaml:"dry_run"`
	// AutoApprove skips interactive confirmation of edits and commands.
	AutoApprove bool `yaml:"auto_approve"`

	// Budget limits for a single session. Zero means unlimited.
	MaxLLMCalls  int `yaml:"max_llm_calls"`
	MaxLLMTokens int `yaml:"max_llm_tokens"`

	// Runner settings.
	CommandRetries int `yaml:"command_retries"`
	// Self-healing attempts after a failed verification command.
	HealAttempts int `yaml:"heal_attempts"`
	// Concurrent task limit for the graph executor.
	MaxParallelTasks int `yaml:"max_parallel_tasks"`
}

const (
	// ConfigFileName is the per-project configuration file.
	ConfigFileName = ".shellcraft.yaml"
	// DefaultAgentDir holds session artifacts relative to the workspace.
	DefaultAgentDir = ".agent"
)

var (
	globalMu     sync.RWMutex
	globalConfig = defaultConfig()
)

func defaultConfig() Config {
	return Config{
		WorkDir:          ".",
		AgentDir:         DefaultAgentDir,
		CommandRetries:   2,
		HealAttempts:     2,
		MaxParallelTasks: 4,
		MaxLLMCalls:      60,
		MaxLLMTokens:     400000,
	}
}

// Load reads the project config file from workDir, applies environment
// overrides, and installs the result as the global configuration.
func Load(workDir string) error {
	cfg := defaultConfig()
	cfg.WorkDir = workDir

	path := filepath.Join(workDir, ConfigFileName)
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		// The file must not redirect the workspace it was loaded from.
		cfg.WorkDir = workDir
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	globalMu.Lock()
	globalConfig = cfg
	globalMu.Unlock()
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MODEL_ID"); v != "" {
		cfg.DefaultModel = v
	}
	if v := os.Getenv("SHELLCRAFT_UNSAFE"); v == "1" {
		cfg.Unsafe = true
	}
	if v := os.Getenv("SHELLCRAFT_DRY_RUN"); v == "1" {
		cfg.DryRun = true
	}
	if v := os.Getenv("SHELLCRAFT_MAX_CALLS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxLLMCalls = n
		}
	}
}

// GetConfig returns a copy of the current configuration.
func GetConfig() Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// UpdateDefaultModel sets the session default model.
func UpdateDefaultModel(model string) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig.DefaultModel = model
}

// UpdateDryRun toggles dry-run mode.
func UpdateDryRun(dryRun bool) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig.DryRun = dryRun
}

// UpdateUnsafe toggles guardrail bypass.
func UpdateUnsafe(unsafe bool) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig.Unsafe = unsafe
}

// UpdateAutoApprove toggles interactive confirmation.
func UpdateAutoApprove(auto bool) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig.AutoApprove = auto
}

// AgentPath resolves a path under the agent artifact directory, creating the
// parent directory as needed.
func AgentPath(parts ...string) (string, error) {
	cfg := GetConfig()
	elems := append([]string{cfg.WorkDir, cfg.AgentDir}, parts...)
	path := filepath.Join(elems...)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create agent dir: %w", err)
	}
	return path, nil
}

// ResetForTest restores compiled-in defaults. Test use only.
func ResetForTest() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = defaultConfig()
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Provider identifiers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
)

// Model specialties used for category-based selection.
const (
	SpecialtyCode      = "code"
	SpecialtyReasoning = "reasoning"
	SpecialtySummary   = "summary"
)

// ModelInfo describes one entry of the model registry.
type ModelInfo struct {
	ID        string   `json:"id"`
	Provider  string   `json:"provider"`
	BaseURL   string   `json:"base_url,omitempty"`
	APIKeyEnv string   `json:"api_key_env,omitempty"`
	Specialty string   `json:"specialty,omitempty"`
	Tools     []string `json:"tools,omitempty"`
	// Pricing in dollars per million tokens, for budget accounting.
	InputCPM  float64 `json:"input_cpm,omitempty"`
	OutputCPM float64 `json:"output_cpm,omitempty"`
	// Context window limits.
	MaxContextTokens int `json:"max_context_tokens,omitempty"`
	MaxOutputTokens  int `json:"max_output_tokens,omitempty"`
}

// Registry is the parsed models.json.
type Registry struct {
	DefaultModel string      `json:"default_model"`
	Models       []ModelInfo `json:"models"`
}

// KnownModels maps well-known model IDs to their metadata. Registry entries
// from models.json extend and override this set.
var KnownModels = map[string]ModelInfo{
	"claude-sonnet-4-20250514": {
		ID: "claude-sonnet-4-20250514", Provider: ProviderAnthropic,
		APIKeyEnv: "ANTHROPIC_API_KEY", Specialty: SpecialtyCode,
		InputCPM: 3.0, OutputCPM: 15.0,
		MaxContextTokens: 200000, MaxOutputTokens: 64000,
	},
	"gpt-4o": {
		ID: "gpt-4o", Provider: ProviderOpenAI,
		APIKeyEnv: "OPENAI_API_KEY", Specialty: SpecialtyCode,
		InputCPM: 2.5, OutputCPM: 10.0,
		MaxContextTokens: 128000, MaxOutputTokens: 16384,
	},
	"o3-mini": {
		ID: "o3-mini", Provider: ProviderOpenAI,
		APIKeyEnv: "OPENAI_API_KEY", Specialty: SpecialtyReasoning,
		InputCPM: 1.1, OutputCPM: 4.4,
		MaxContextTokens: 200000, MaxOutputTokens: 100000,
	},
	"gemini-2.0-flash": {
		ID: "gemini-2.0-flash", Provider: ProviderGoogle,
		APIKeyEnv: "GEMINI_API_KEY", Specialty: SpecialtySummary,
		InputCPM: 0.1, OutputCPM: 0.4,
		MaxContextTokens: 1000000, MaxOutputTokens: 8192,
	},
	"llama3.2": {
		ID: "llama3.2", Provider: ProviderOllama, Specialty: SpecialtySummary,
		MaxContextTokens: 128000, MaxOutputTokens: 8192,
	},
}

// ProviderPatterns maps model name prefixes to providers, checked in order
// when the model is not in KnownModels or the registry.
var ProviderPatterns = []struct {
	Prefix   string
	Provider string
}{
	{"claude", ProviderAnthropic},
	{"gpt", ProviderOpenAI},
	{"o1", ProviderOpenAI},
	{"o3", ProviderOpenAI},
	{"o4", ProviderOpenAI},
	{"gemini", ProviderGoogle},
	{"llama", ProviderOllama},
	{"phi", ProviderOllama},
	{"qwen", ProviderOllama},
	{"mistral", ProviderOllama},
	{"deepseek", ProviderOllama},
	{"ollama:", ProviderOllama},
}

var (
	registryMu sync.RWMutex
	registry   Registry
)

// LoadRegistry parses models.json from the given path and installs it as the
// active registry. Entries missing an ID or provider are skipped. A missing
// file is not an error; the compiled-in KnownModels remain available.
func LoadRegistry(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read model registry %s: %w", path, err)
	}

	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return fmt.Errorf("failed to parse model registry %s: %w", path, err)
	}

	valid := reg.Models[:0]
	for i := range reg.Models {
		m := reg.Models[i]
		if m.ID == "" || m.Provider == "" {
			continue
		}
		valid = append(valid, m)
	}
	reg.Models = valid

	registryMu.Lock()
	registry = reg
	registryMu.Unlock()
	return nil
}

// SetRegistryForTest installs a registry directly. Test use only.
func SetRegistryForTest(reg Registry) {
	registryMu.Lock()
	registry = reg
	registryMu.Unlock()
}

// LookupModel finds a model by ID in the registry, then in KnownModels.
func LookupModel(id string) (ModelInfo, bool) {
	registryMu.RLock()
	for i := range registry.Models {
		if registry.Models[i].ID == id {
			m := registry.Models[i]
			registryMu.RUnlock()
			return m, true
		}
	}
	registryMu.RUnlock()

	m, ok := KnownModels[id]
	return m, ok
}

// SelectModel picks a model ID for the given specialty category.
//
// Resolution order: a registry model with a matching specialty and a usable
// API key, the registry default, the configured session default, the MODEL_ID
// environment variable, and finally any model whose key env is set (Groq and
// OpenAI compatible keys checked last as a generic fallback).
func SelectModel(specialty string) (string, error) {
	registryMu.RLock()
	models := make([]ModelInfo, len(registry.Models))
	copy(models, registry.Models)
	defaultModel := registry.DefaultModel
	registryMu.RUnlock()

	for i := range models {
		if models[i].Specialty == specialty && keyAvailable(models[i]) {
			return models[i].ID, nil
		}
	}
	if defaultModel != "" {
		return defaultModel, nil
	}
	if cfg := GetConfig(); cfg.DefaultModel != "" {
		return cfg.DefaultModel, nil
	}
	if v := os.Getenv("MODEL_ID"); v != "" {
		return v, nil
	}
	for i := range models {
		if keyAvailable(models[i]) {
			return models[i].ID, nil
		}
	}
	if os.Getenv("GROQ_API_KEY") != "" {
		return "llama-3.3-70b-versatile", nil
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return "gpt-4o", nil
	}
	return "", fmt.Errorf("no model available for specialty %q: configure models.json or set MODEL_ID", specialty)
}

// keyAvailable reports whether the model's API key requirement is satisfied.
// Ollama models need no key.
func keyAvailable(m ModelInfo) bool {
	if m.Provider == ProviderOllama {
		return true
	}
	if m.APIKeyEnv == "" {
		return false
	}
	return os.Getenv(m.APIKeyEnv) != ""
}

// GetModelProvider resolves the provider for a model ID. Exact registry and
// KnownModels lookups win; otherwise prefix patterns apply. Unmatched
// non-empty IDs default to the OpenAI-compatible provider.
func GetModelProvider(model string) (string, error) {
	if model == "" {
		return "", fmt.Errorf("model name cannot be empty")
	}
	if m, ok := LookupModel(model); ok {
		return m.Provider, nil
	}
	lower := strings.ToLower(model)
	for _, p := range ProviderPatterns {
		if strings.HasPrefix(lower, p.Prefix) {
			return p.Provider, nil
		}
	}
	return ProviderOpenAI, nil
}

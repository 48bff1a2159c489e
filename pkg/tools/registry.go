// Package tools defines the tool surface exposed to models: a sealed
// registry of factories plus the built-in workspace tools.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"shellcraft/pkg/agent/llm"
	"shellcraft/pkg/exec"
)

// AgentContext carries the per-agent environment a tool executes in.
type AgentContext struct {
	Executor exec.Executor
	WorkDir  string
	ReadOnly bool
}

// Tool is one callable capability. Definition describes the tool to the
// model; Exec performs it.
type Tool interface {
	Name() string
	Definition() llm.ToolDefinition
	Exec(ctx context.Context, args map[string]any) (map[string]any, error)
}

// Factory builds a tool instance bound to an agent context.
type Factory func(agentCtx AgentContext) Tool

// Registry holds tool factories. It is mutable until sealed, after which
// registration panics. The process-wide registry is sealed by the first
// provider construction.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	sealed    bool
}

var defaultRegistry = NewRegistry()

// NewRegistry returns an empty, unsealed registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name. Registering after Seal or reusing a
// name panics: tool wiring mistakes are programmer errors.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		panic(fmt.Sprintf("tools: registry sealed, cannot register %q", name))
	}
	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("tools: duplicate tool %q", name))
	}
	r.factories[name] = f
}

// Seal freezes the registry.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Names returns registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Provider is a set of instantiated tools for one agent.
type Provider struct {
	tools map[string]Tool
}

// NewProvider seals the registry and instantiates the named tools (or every
// registered tool when names is empty) against the agent context.
func (r *Registry) NewProvider(agentCtx AgentContext, names ...string) (*Provider, error) {
	r.Seal()
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(names) == 0 {
		names = make([]string, 0, len(r.factories))
		for name := range r.factories {
			names = append(names, name)
		}
	}
	p := &Provider{tools: make(map[string]Tool, len(names))}
	for _, name := range names {
		f, ok := r.factories[name]
		if !ok {
			return nil, fmt.Errorf("unknown tool %q", name)
		}
		p.tools[name] = f(agentCtx)
	}
	return p, nil
}

// DefaultProvider instantiates tools from the process-wide registry.
func DefaultProvider(agentCtx AgentContext, names ...string) (*Provider, error) {
	return defaultRegistry.NewProvider(agentCtx, names...)
}

// Register adds a factory to the process-wide registry.
func Register(name string, f Factory) {
	defaultRegistry.Register(name, f)
}

// Get returns the named tool.
func (p *Provider) Get(name string) (Tool, error) {
	t, ok := p.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool %q not available", name)
	}
	return t, nil
}

// Definitions returns the schema for every tool in the provider, sorted by
// name so prompts are stable.
func (p *Provider) Definitions() []llm.ToolDefinition {
	names := make([]string, 0, len(p.tools))
	for name := range p.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	defs := make([]llm.ToolDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, p.tools[name].Definition())
	}
	return defs
}

// Exec runs the named tool.
func (p *Provider) Exec(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	t, err := p.Get(name)
	if err != nil {
		return nil, err
	}
	return t.Exec(ctx, args)
}

// argString extracts a required string argument.
func argString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return s, nil
}

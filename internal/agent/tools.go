package agent

import (
	"context"
	"slices"
	"sync"

	"github.com/soyeahso/agentdesk/internal/llm"
	"github.com/soyeahso/agentdesk/internal/logging"
)

// Tool is a capability the agent can invoke during a conversation.
type Tool interface {
	// Name returns the tool's identifier.
	Name() string

	// Description returns a human-readable description for the LLM.
	Description() string

	// InputSchema returns the JSON Schema for the tool's input.
	InputSchema() string

	// Execute runs the tool with the given JSON input. User-facing failures
	// belong in the returned string; the error is for failures the model
	// cannot act on.
	Execute(ctx context.Context, input string) (string, error)
}

// FuncTool adapts a plain function to the Tool interface.
type FuncTool struct {
	ToolName string
	ToolDesc string
	Schema   string
	Fn       func(ctx context.Context, input string) (string, error)
}

// NewFuncTool creates a FuncTool.
func NewFuncTool(name, desc, schema string, fn func(ctx context.Context, input string) (string, error)) *FuncTool {
	return &FuncTool{ToolName: name, ToolDesc: desc, Schema: schema, Fn: fn}
}

func (f *FuncTool) Name() string        { return f.ToolName }
func (f *FuncTool) Description() string { return f.ToolDesc }
func (f *FuncTool) InputSchema() string {
	if f.Schema == "" {
		return `{"type":"object","properties":{}}`
	}
	return f.Schema
}

func (f *FuncTool) Execute(ctx context.Context, input string) (string, error) {
	return f.Fn(ctx, input)
}

// ToolRegistry holds available tools.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry creates a registry holding the given tools.
func NewToolRegistry(tools ...Tool) *ToolRegistry {
	r := &ToolRegistry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool, replacing any tool with the same name.
func (r *ToolRegistry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Names returns the registered tool names, sorted.
func (r *ToolRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Definitions returns LLM-ready tool definitions, sorted by name.
func (r *ToolRegistry) Definitions() []llm.ToolDefinition {
	names := r.Names()
	defs := make([]llm.ToolDefinition, 0, len(names))
	for _, n := range names {
		t, _ := r.Get(n)
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return defs
}

// Resolve looks up tools by name in order. Unknown names are logged and
// skipped.
func (r *ToolRegistry) Resolve(names []string, log *logging.Logger) []Tool {
	var out []Tool
	for _, n := range names {
		t, ok := r.Get(n)
		if !ok {
			if log != nil {
				log.Warn().Str("tool", n).Msg("unknown tool, skipping")
			}
			continue
		}
		out = append(out, t)
	}
	return out
}

// Subset returns a new registry with only the named tools.
func (r *ToolRegistry) Subset(names []string, log *logging.Logger) *ToolRegistry {
	return NewToolRegistry(r.Resolve(names, log)...)
}

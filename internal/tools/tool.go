package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Tool defines the interface for all tool-unit capabilities.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any // JSON Schema for the tool's inputs
	Execute(ctx context.Context, input string) (string, error)
}

// Registry manages the set of available tools in registration order.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[t.Name()]; !ok {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Describe renders the tools as a prompt section: one entry per tool with
// its description and parameter schema.
func (r *Registry) Describe() string {
	var b strings.Builder
	for _, t := range r.List() {
		schema, _ := json.Marshal(t.Parameters())
		fmt.Fprintf(&b, "- %s: %s\n  parameters: %s\n", t.Name(), t.Description(), schema)
	}
	return strings.TrimRight(b.String(), "\n")
}

const maxOutput = 50000

func truncate(s string) string {
	if len(s) > maxOutput {
		return s[:maxOutput] + "\n... (truncated)"
	}
	return s
}

func decodeArgs(input string, v any) error {
	if err := json.Unmarshal([]byte(input), v); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}

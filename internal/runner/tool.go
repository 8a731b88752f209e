package runner

import (
	"context"
	"sort"
	"sync"
)

// Tool performs one browser-facing action or check.
//
// Output shape is opaque to the runner except for an optional boolean
// "success" field used for pass/fail inference.
type Tool interface {
	Execute(ctx context.Context, input map[string]any) (any, error)
}

// ToolFunc adapts a function to the Tool interface.
type ToolFunc func(ctx context.Context, input map[string]any) (any, error)

// Execute implements Tool.
func (f ToolFunc) Execute(ctx context.Context, input map[string]any) (any, error) {
	return f(ctx, input)
}

// Toolbox maps tool names to implementations.
//
// Thread-safety: All methods are safe for concurrent use.
type Toolbox struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolbox creates an empty toolbox.
func NewToolbox() *Toolbox {
	return &Toolbox{tools: make(map[string]Tool)}
}

// Register adds or replaces the tool for name.
func (b *Toolbox) Register(name string, tool Tool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tools[name] = tool
}

// Lookup returns the tool registered under name.
func (b *Toolbox) Lookup(name string) (Tool, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	tool, ok := b.tools[name]
	return tool, ok
}

// Names returns the registered tool names in sorted order.
func (b *Toolbox) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.tools))
	for name := range b.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

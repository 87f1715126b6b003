// Package tool defines the capability contract the orchestration engine
// invokes, and the registry that resolves capabilities by name.
//
// A Tool does one thing: it takes an input and a context map and reports a
// Result. Failures are values (Result.Error), not Go errors: the engine
// decides what a failure means (retry, fallback, terminal) based on policy
// the tool knows nothing about. The registry is passed explicitly to
// whatever needs to resolve tools; there is no package-level singleton, so
// tests can wire fakes without touching global state.
package tool

import (
	"context"
	"sort"
	"sync"
)

// Well-known tool names routed to by the planner. Anything else may be
// registered too; these constants exist so the engine and planner agree
// on spelling.
const (
	NameLLM        = "llm"
	NameCalculator = "calculator"
	NameSearch     = "search"
	NameFinance    = "finance"
	NameStockPrice = "stock_price"
	NameWeather    = "weather"
	NameFile       = "file"
	NameClock      = "clock"
)

// Context carries auxiliary key/value data into an invocation: piped
// outputs from earlier steps, location-resolution sentinels, profile hints.
type Context map[string]any

// Result is what every tool invocation reports.
type Result struct {
	// Success indicates the tool did what was asked.
	Success bool `json:"success"`
	// Data is the tool's output: a string for prose tools, structured
	// values (maps, slices) for data-producing tools.
	Data any `json:"data,omitempty"`
	// Error holds the failure description when Success is false.
	Error string `json:"error,omitempty"`
	// Final signals that no further steps are needed even if more were
	// planned, meaning the tool produced a complete answer on its own.
	Final bool `json:"final,omitempty"`
	// Cached indicates the result was served from a cache rather than
	// computed fresh.
	Cached bool `json:"cached,omitempty"`
}

// Tool is an invocable capability identified by name in a Registry.
type Tool interface {
	Invoke(ctx context.Context, input any, tctx Context) Result
}

// Func adapts a plain function to the Tool interface.
type Func func(ctx context.Context, input any, tctx Context) Result

// Invoke implements Tool.
func (f Func) Invoke(ctx context.Context, input any, tctx Context) Result {
	return f(ctx, input, tctx)
}

// Registry maps tool names to capabilities. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool under the given name.
func (r *Registry) Register(name string, t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = t
}

// Get resolves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

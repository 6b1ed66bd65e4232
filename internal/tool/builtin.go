package tool

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harunnryd/kuroko/internal/todo"
)

// BuiltinOptions carries runtime dependencies needed by built-in tool factories.
type BuiltinOptions struct {
	ExecTimeout      time.Duration
	SearchBaseURL    string
	SearchTimeout    time.Duration
	SearchMaxResults int
	Todos            *todo.Store
}

const (
	DefaultBuiltinExecTimeout   = 30 * time.Second
	DefaultBuiltinSearchTimeout = 10 * time.Second
)

type BuiltinFactory func(options BuiltinOptions) (Tool, error)

var builtinCatalog = struct {
	mu        sync.RWMutex
	factories map[string]BuiltinFactory
}{
	factories: map[string]BuiltinFactory{},
}

// RegisterBuiltin registers a built-in tool factory under a tool name.
// Intended to be called in init() from built-in tool files.
func RegisterBuiltin(name string, factory BuiltinFactory) {
	normalized := NormalizeToolName(name)
	if normalized == "" {
		panic("tool: built-in name cannot be empty")
	}
	if factory == nil {
		panic(fmt.Sprintf("tool: built-in factory cannot be nil (%s)", normalized))
	}

	builtinCatalog.mu.Lock()
	defer builtinCatalog.mu.Unlock()

	if _, exists := builtinCatalog.factories[normalized]; exists {
		panic(fmt.Sprintf("tool: built-in already registered: %s", normalized))
	}
	builtinCatalog.factories[normalized] = factory
}

// BuiltinNames returns all registered built-in names in deterministic order.
func BuiltinNames() []string {
	builtinCatalog.mu.RLock()
	defer builtinCatalog.mu.RUnlock()

	names := make([]string, 0, len(builtinCatalog.factories))
	for name := range builtinCatalog.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InstantiateBuiltins constructs all built-in tools using their registered
// factories. A factory may return (nil, nil) to opt out when a dependency
// it needs is not wired.
func InstantiateBuiltins(options BuiltinOptions) ([]Tool, error) {
	names := BuiltinNames()

	builtinCatalog.mu.RLock()
	defer builtinCatalog.mu.RUnlock()

	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		t, err := builtinCatalog.factories[name](options)
		if err != nil {
			return nil, fmt.Errorf("instantiate builtin %s: %w", name, err)
		}
		if t == nil {
			continue
		}
		tools = append(tools, t)
	}
	return tools, nil
}

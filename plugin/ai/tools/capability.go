// Package tools dispatches assistant tool calls to locally registered capabilities.
package tools

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrUnknownCapability is returned for a tool call whose name is not registered.
	ErrUnknownCapability = errors.New("unknown capability")
	// ErrInvalidArguments is returned when tool call arguments cannot be used.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// Capability is a named local function the assistant may call.
type Capability interface {
	// Name returns the function name the assistant uses.
	Name() string
	// Run executes the capability with the decoded JSON arguments.
	Run(ctx context.Context, args map[string]any) (string, error)
}

// Func adapts a plain function to Capability.
type Func struct {
	name string
	fn   func(ctx context.Context, args map[string]any) (string, error)
}

// NewFunc creates a Capability from fn.
func NewFunc(name string, fn func(ctx context.Context, args map[string]any) (string, error)) *Func {
	return &Func{name: name, fn: fn}
}

func (f *Func) Name() string {
	return f.name
}

func (f *Func) Run(ctx context.Context, args map[string]any) (string, error) {
	return f.fn(ctx, args)
}

// Registry maps capability names to implementations. It is populated at startup.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[string]Capability
}

// NewRegistry creates a registry holding the given capabilities.
func NewRegistry(capabilities ...Capability) (*Registry, error) {
	r := &Registry{capabilities: make(map[string]Capability, len(capabilities))}
	for _, c := range capabilities {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a capability. Names must be unique and non-empty.
func (r *Registry) Register(c Capability) error {
	if c == nil || c.Name() == "" {
		return errors.New("capability must have a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.capabilities[c.Name()]; exists {
		return errors.Errorf("capability %q already registered", c.Name())
	}
	r.capabilities[c.Name()] = c
	return nil
}

// Lookup returns the capability registered under name.
func (r *Registry) Lookup(name string) (Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.capabilities[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownCapability, "%q", name)
	}
	return c, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.capabilities))
	for name := range r.capabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

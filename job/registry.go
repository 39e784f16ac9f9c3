package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownHandler is wrapped by Resolve when no handler matches.
var ErrUnknownHandler = errors.New("job: no handler registered")

// HandlerFunc is a type-erased job handler receiving the raw arguments.
// The typed Definition[T] is converted to a HandlerFunc at registration
// time by closing over JSON unmarshal + the typed handler.
type HandlerFunc func(ctx context.Context, args []string) error

// Registry maps invocation names to handlers.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
	}
}

// Register adds a raw handler under name.
func (r *Registry) Register(name string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// RegisterDefinition registers a typed job definition. The handler receives
// the first argument unmarshalled into T.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[T any](r *Registry, def *Definition[T]) {
	r.Register(def.Name(), func(ctx context.Context, args []string) error {
		var t T
		if len(args) > 0 && args[0] != "" {
			if err := json.Unmarshal([]byte(args[0]), &t); err != nil {
				return fmt.Errorf("unmarshal payload for job %q: %w", def.Name(), err)
			}
		}
		return def.Handler(ctx, t)
	})
}

// Get returns the handler for the given name.
func (r *Registry) Get(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Resolve implements Resolver.
func (r *Registry) Resolve(inv *Invocation) (HandlerFunc, error) {
	h, ok := r.Get(inv.Name())
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHandler, inv.Name())
	}
	return h, nil
}

// Names returns all registered handler names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

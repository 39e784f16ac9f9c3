package job

import (
	"context"
	"encoding/json"
	"fmt"
)

// Definition is a typed job definition with a handler function.
// T is the payload type (must be JSON-serializable).
type Definition[T any] struct {
	// Type and Method form the invocation name.
	Type   string
	Method string

	// Handler is the function that processes the job payload.
	Handler func(ctx context.Context, payload T) error

	// Queue is where Invocation-built jobs are meant to be enqueued.
	Queue string
}

// NewDefinition creates a typed job definition bound to the "default" queue.
func NewDefinition[T any](typ, method string, handler func(ctx context.Context, payload T) error) *Definition[T] {
	return &Definition[T]{
		Type:    typ,
		Method:  method,
		Handler: handler,
		Queue:   "default",
	}
}

// Name is the registry key of the definition.
func (d *Definition[T]) Name() string {
	inv := Invocation{Type: d.Type, Method: d.Method}
	return inv.Name()
}

// Invocation builds the invocation that runs this definition with payload.
func (d *Definition[T]) Invocation(payload T) (*Invocation, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for job %q: %w", d.Name(), err)
	}
	var zero T
	return &Invocation{
		Type:           d.Type,
		Method:         d.Method,
		ParameterTypes: []string{fmt.Sprintf("%T", zero)},
		Args:           []string{string(b)},
	}, nil
}

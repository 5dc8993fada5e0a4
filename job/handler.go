package job

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Handler defines the interface for executing a specific job type.
// Domain packages implement this interface for their handler-type tags,
// keeping the job infrastructure decoupled from domain logic.
//
// The transaction is the one the executor will commit together with the
// deletion of the job row: everything the handler persists through it —
// successor jobs included — commits atomically with the job's own
// completion, or not at all. Handlers must therefore not assume partial
// progress survives a rolled-back invocation.
type Handler interface {
	// Execute runs the job inside tx and returns any error encountered.
	Execute(ctx context.Context, tx *sql.Tx, j *Job) error

	// Type returns the handler-type tag this handler serves
	// (e.g. "batch-seed", "suspend-process-definition").
	Type() string
}

// Registry manages job handlers by handler type.
// Thread-safe for concurrent handler registration and lookup.
type Registry struct {
	handlers map[string]Handler
	mu       sync.RWMutex
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler using its type tag.
// Panics if a handler is already registered with that type.
func (r *Registry) Register(handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handlerType := handler.Type()
	if _, exists := r.handlers[handlerType]; exists {
		panic(fmt.Sprintf("handler already registered for type: %s", handlerType))
	}
	r.handlers[handlerType] = handler
}

// Get retrieves the handler for a handler type.
// Returns nil if no handler is registered.
func (r *Registry) Get(handlerType string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[handlerType]
}

// Has checks if a handler is registered for a type.
func (r *Registry) Has(handlerType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.handlers[handlerType]
	return exists
}

// Types returns all registered handler types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}

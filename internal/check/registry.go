// Package check defines the health check contract consumed by the suite
// orchestrator: named predicates producing an immutable Verdict, collected
// in a registry that preserves registration order.
package check

import (
	"errors"
	"fmt"
	"sync"
)

// Errors for registry operations.
var (
	ErrCheckNotFound  = errors.New("check not found")
	ErrDuplicateCheck = errors.New("check already registered")
	ErrEmptyCheckName = errors.New("check name cannot be empty")
	ErrNilCheckFunc   = errors.New("check func cannot be nil")
)

// Registry holds named checks in registration order.
type Registry struct {
	mu     sync.RWMutex
	checks map[string]Func
	order  []string
}

// NewRegistry creates an empty check registry.
func NewRegistry() *Registry {
	return &Registry{
		checks: make(map[string]Func),
	}
}

// Register adds a named check. Registering the same name twice is an error;
// checks are static configuration, not runtime state.
func (r *Registry) Register(name string, fn Func) error {
	if name == "" {
		return ErrEmptyCheckName
	}
	if fn == nil {
		return fmt.Errorf("%w: %s", ErrNilCheckFunc, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.checks[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCheck, name)
	}
	r.checks[name] = fn
	r.order = append(r.order, name)
	return nil
}

// Get returns the check registered under name.
func (r *Registry) Get(name string) (Func, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.checks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCheckNotFound, name)
	}
	return fn, nil
}

// Names returns all registered check names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered checks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

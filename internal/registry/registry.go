// Package registry maps fully-qualified type names to parameterless factories
// so callers can instantiate implementations they hold no compile-time
// reference to.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Sentinel errors for the registry.
var (
	ErrTypeNotFound        = errors.New("type not found")
	ErrInstantiationFailed = errors.New("instantiation failed")
	ErrAlreadyExists       = errors.New("type already registered")
	ErrEmptyName           = errors.New("type name is empty")
	ErrNilFactory          = errors.New("factory is nil")
)

// Factory constructs a new instance of a registered type.
type Factory func() (any, error)

// Registry holds named factories. Thread-safe for concurrent access.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// Default is the process-wide registry that packages populate from init.
var Default = NewRegistry()

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name.
// Returns ErrAlreadyExists if the name is taken.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return ErrEmptyName
	}
	if factory == nil {
		return fmt.Errorf("%w: %s", ErrNilFactory, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister is Register for package init blocks; it panics on error.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Resolve looks up the factory registered under name.
func (r *Registry) Resolve(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.factories[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTypeNotFound, name)
	}
	return factory, nil
}

// New resolves name and constructs an instance with Construct.
func (r *Registry) New(name string) (any, error) {
	factory, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return Construct(name, factory)
}

// Construct runs factory on behalf of the type registered as name. Any failure
// inside the factory, including a panic or a nil result, is reported as
// ErrInstantiationFailed.
func Construct(name string, factory Factory) (instance any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			instance = nil
			err = fmt.Errorf("%w: %s: panic: %v", ErrInstantiationFailed, name, rec)
		}
	}()

	instance, err = factory()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInstantiationFailed, name, err)
	}
	if instance == nil {
		return nil, fmt.Errorf("%w: %s: factory returned nil", ErrInstantiationFailed, name)
	}
	return instance, nil
}

// Names returns the registered type names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

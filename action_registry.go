package actionchain

import (
	"fmt"
	"sort"

	"github.com/sasha-s/go-deadlock"
)

// ActionFactory builds a fresh, unsealed action. Actions are single use, so
// anything that runs the same work repeatedly registers a factory instead.
type ActionFactory func() *Action

// Registry maps names to action factories.
type Registry struct {
	mu        deadlock.RWMutex
	factories map[string]ActionFactory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ActionFactory)}
}

// Register adds a factory under name. Names are unique.
func (r *Registry) Register(name string, factory ActionFactory) error {
	if name == "" {
		return fmt.Errorf("actionchain: empty action name")
	}
	if factory == nil {
		return fmt.Errorf("actionchain: nil factory for action %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, name)
	}
	r.factories[name] = factory
	return nil
}

// New builds an action from the factory registered under name.
func (r *Registry) New(name string) (*Action, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}

	a := factory()
	if a == nil {
		return nil, fmt.Errorf("%w: factory %q returned nil", ErrNilAction, name)
	}
	return a, nil
}

// Names lists the registered names in sorted order.
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

var defaultRegistry = NewRegistry()

// RegisterAction registers a factory in the package-level registry.
// It panics if the name is already taken; call it from init or main.
func RegisterAction(name string, factory ActionFactory) {
	if err := defaultRegistry.Register(name, factory); err != nil {
		panic(err)
	}
}

// NewActionFromRegistry builds an action from the package-level registry.
func NewActionFromRegistry(name string) (*Action, error) {
	return defaultRegistry.New(name)
}

// ChainByName chains a freshly built, registered action onto a's current stage.
func (r *Registry) ChainByName(a *Action, name string) error {
	child, err := r.New(name)
	if err != nil {
		return err
	}
	return a.ChainAction(child)
}

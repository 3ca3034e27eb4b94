package cache

import (
	"context"
	"slices"
	"sync"
)

// Factory creates stores from configuration.
type Factory interface {
	CreateStore(ctx context.Context, cfg Config) (Store, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, cfg Config) (Store, error)

func (f FactoryFunc) CreateStore(ctx context.Context, cfg Config) (Store, error) {
	return f(ctx, cfg)
}

// Registry holds registered store factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
	}
	r.Register(KindMemory, FactoryFunc(func(context.Context, Config) (Store, error) {
		return NewMemory(), nil
	}))
	return r
}

// Register adds a factory for a backend kind, replacing any previous one.
func (r *Registry) Register(kind string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// CreateStore instantiates a store from config. An empty kind selects the
// in-memory backend.
func (r *Registry) CreateStore(ctx context.Context, cfg Config) (Store, error) {
	kind := cfg.Kind
	if kind == "" {
		kind = KindMemory
	}

	r.mu.RLock()
	factory, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnsupportedKindError{Kind: kind}
	}
	return factory.CreateStore(ctx, cfg)
}

// UnsupportedKindError indicates an unknown backend kind.
type UnsupportedKindError struct {
	Kind string
}

func (e *UnsupportedKindError) Error() string {
	return "unsupported cache kind: " + e.Kind
}

var (
	globalRegistry     *Registry
	globalRegistryOnce sync.Once
)

// DefaultRegistry returns the global factory registry.
func DefaultRegistry() *Registry {
	globalRegistryOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// RegisterFactory registers a factory with the default registry.
func RegisterFactory(kind string, factory Factory) {
	DefaultRegistry().Register(kind, factory)
}

// New creates a store from config using the default registry.
func New(ctx context.Context, cfg Config) (Store, error) {
	return DefaultRegistry().CreateStore(ctx, cfg)
}

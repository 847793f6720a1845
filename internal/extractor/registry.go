package extractor

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Factory builds an Extractor over a fetcher.
type Factory func(fetcher PageFetcher, opts Options, logger *slog.Logger) Extractor

// Registry maps distributor names to extractor factories.
type Registry struct {
	factories map[string]Factory
	logger    *slog.Logger
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger.With("component", "extractor_registry"),
	}
}

// DefaultRegistry returns a registry holding the built-in distributors.
func DefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	_ = r.Register(CommunicaName, NewCommunica)
	_ = r.Register(MicroRoboticsName, NewMicroRobotics)
	_ = r.Register(MiroName, NewMiro)
	return r
}

// Register adds a factory under name.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("extractor %q already registered", name)
	}
	r.factories[name] = f

	r.logger.Debug("extractor registered", "name", name)
	return nil
}

// Get returns the factory registered under name.
func (r *Registry) Get(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns all registered names, sorted.
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

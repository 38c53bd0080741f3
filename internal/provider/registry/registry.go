package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/davidbz/codeassist/internal/domain"
)

// Registry implements the TransportRegistry interface.
type Registry struct {
	mu         sync.RWMutex
	transports map[string]domain.Transport
}

// NewRegistry creates a new transport registry.
func NewRegistry() *Registry {
	return &Registry{
		mu:         sync.RWMutex{},
		transports: make(map[string]domain.Transport),
	}
}

// Register adds a transport to the registry.
func (r *Registry) Register(_ context.Context, transport domain.Transport) error {
	if transport == nil {
		return errors.New("transport cannot be nil")
	}

	name := transport.Name()
	if name == "" {
		return errors.New("transport name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.transports[name]; exists {
		return fmt.Errorf("transport %s already registered", name)
	}

	r.transports[name] = transport
	return nil
}

// Get retrieves a transport by name.
func (r *Registry) Get(_ context.Context, name string) (domain.Transport, error) {
	if name == "" {
		return nil, errors.New("transport name cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	transport, exists := r.transports[name]
	if !exists {
		return nil, fmt.Errorf("transport %s not found", name)
	}

	return transport, nil
}

// List returns all registered transport names in lexical order.
func (r *Registry) List(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.transports))
	for name := range r.transports {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

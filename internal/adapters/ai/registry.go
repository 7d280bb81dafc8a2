package ai

import (
	"sync"

	"calliope/pkg/errors"
)

// Registry stores all available AI provider clients.
type Registry struct {
	clients map[ProviderName]Client
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[ProviderName]Client),
	}
}

// Register adds a client to the registry.
func (r *Registry) Register(client Client) error {
	if client == nil {
		return errors.Wrap(errors.ErrInvalidInput, "client is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := client.Name()
	if _, exists := r.clients[name]; exists {
		return errors.Wrapf(errors.ErrAlreadyExists, "provider %s already registered", name)
	}

	r.clients[name] = client
	return nil
}

// Get returns the client by provider name.
func (r *Registry) Get(name ProviderName) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "provider %s not registered", name)
	}

	return client, nil
}

// List returns all registered clients.
func (r *Registry) List() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}

	return clients
}

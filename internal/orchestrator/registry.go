package orchestrator

import "sync"

// StoreFactory builds a fresh Store for one user workflow.
type StoreFactory func() *Store

// Registry hands out one Store per authenticated user, lazily. Each user has
// exactly one active workflow instance at a time.
type Registry struct {
	mu      sync.Mutex
	stores  map[string]*Store
	factory StoreFactory
}

func NewRegistry(factory StoreFactory) *Registry {
	return &Registry{
		stores:  make(map[string]*Store),
		factory: factory,
	}
}

func (r *Registry) ForUser(userID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	store, ok := r.stores[userID]
	if !ok {
		store = r.factory()
		r.stores[userID] = store
	}
	return store
}

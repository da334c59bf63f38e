package challenge

import (
	"fmt"
	"sort"
	"sync"
)

// Challenge is one session game mode. Activate begins enforcing its rules on
// the local editor; Deactivate releases everything it holds and restores
// normal editing.
type Challenge interface {
	Activate()
	Deactivate()
	Name() string
	Description() string
}

// Registry holds the available challenges by key.
type Registry struct {
	mu         sync.RWMutex
	challenges map[string]Challenge
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{challenges: make(map[string]Challenge)}
}

// Register adds a challenge under a key, replacing any previous entry.
func (r *Registry) Register(key string, c Challenge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.challenges[key] = c
}

// Get returns the challenge registered under key.
func (r *Registry) Get(key string) (Challenge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.challenges[key]
	if !ok {
		return nil, fmt.Errorf("unknown challenge %q", key)
	}
	return c, nil
}

// Keys returns the registered challenge keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.challenges))
	for key := range r.challenges {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

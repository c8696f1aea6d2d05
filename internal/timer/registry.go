package timer

import (
	"context"
	"sync"
)

// Factory baut den Timer eines Nutzers beim ersten Zugriff
type Factory func(ctx context.Context, userID string) (*Timer, error)

// Registry hält genau einen Timer pro Nutzer
type Registry struct {
	mu      sync.Mutex
	timers  map[string]*Timer
	factory Factory
}

// NewRegistry erstellt eine leere Registry
func NewRegistry(factory Factory) *Registry {
	return &Registry{timers: make(map[string]*Timer), factory: factory}
}

// Get liefert den Timer des Nutzers und erzeugt ihn bei Bedarf
func (r *Registry) Get(ctx context.Context, userID string) (*Timer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timers[userID]; ok {
		return t, nil
	}
	t, err := r.factory(ctx, userID)
	if err != nil {
		return nil, err
	}
	r.timers[userID] = t
	return t, nil
}

// Lookup liefert einen bereits existierenden Timer ohne ihn anzulegen
func (r *Registry) Lookup(userID string) (*Timer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[userID]
	return t, ok
}

// Remove schließt den Timer und vergisst ihn
func (r *Registry) Remove(userID string) {
	r.mu.Lock()
	t, ok := r.timers[userID]
	delete(r.timers, userID)
	r.mu.Unlock()

	if ok {
		t.Close()
	}
}

// Close schließt alle Timer (Herunterfahren)
func (r *Registry) Close() {
	r.mu.Lock()
	timers := r.timers
	r.timers = make(map[string]*Timer)
	r.mu.Unlock()

	for _, t := range timers {
		t.Close()
	}
}

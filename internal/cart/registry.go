package cart

import (
	"sync"
	"time"
)

type registryEntry struct {
	store   *Store
	touched time.Time
}

// Registry keeps one Store per browser session in process memory.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*registryEntry
	now      func() time.Time
	observer func(sessionID string, v View)
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*registryEntry),
		now:      time.Now,
	}
}

// Observe subscribes fn to every store the registry creates from now on.
func (r *Registry) Observe(fn func(sessionID string, v View)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = fn
}

// Get returns the session's store, creating an empty one on first use.
func (r *Registry) Get(sessionID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[sessionID]
	if !ok {
		entry = &registryEntry{store: NewStore()}
		if observer := r.observer; observer != nil {
			entry.store.Subscribe(func(v View) { observer(sessionID, v) })
		}
		r.sessions[sessionID] = entry
	}
	entry.touched = r.now()
	return entry.store
}

// Lookup returns the session's store without creating one.
func (r *Registry) Lookup(sessionID string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	entry.touched = r.now()
	return entry.store, true
}

// Evict drops sessions untouched for longer than idle and returns how many
// were removed.
func (r *Registry) Evict(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-idle)
	removed := 0
	for id, entry := range r.sessions {
		if entry.touched.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

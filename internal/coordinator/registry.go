package coordinator

import "sync"

// Registry maps provider-side owner ids to their coordinator. The webhook
// handler uses it to route deliveries to exactly one coordinator; it is
// injected wherever lookups are needed rather than living as process-wide
// mutable state.
type Registry struct {
	mu           sync.RWMutex
	coordinators map[int64]*Coordinator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{coordinators: make(map[int64]*Coordinator)}
}

// Register adds a coordinator keyed by its owner id, replacing any
// previous registration for the same owner.
func (r *Registry) Register(c *Coordinator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coordinators[c.OwnerID()] = c
}

// Unregister removes the coordinator for an owner id.
func (r *Registry) Unregister(ownerID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.coordinators, ownerID)
}

// Lookup returns the coordinator for an owner id.
func (r *Registry) Lookup(ownerID int64) (*Coordinator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.coordinators[ownerID]
	return c, ok
}

// All returns every registered coordinator.
func (r *Registry) All() []*Coordinator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*Coordinator, 0, len(r.coordinators))
	for _, c := range r.coordinators {
		all = append(all, c)
	}
	return all
}

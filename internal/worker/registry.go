package worker

import (
	"sort"
	"sync"
)

// Registry holds the running poller of every server printer id.
type Registry struct {
	mu      sync.Mutex
	pollers map[string]*Poller
}

func NewRegistry() *Registry {
	return &Registry{pollers: make(map[string]*Poller)}
}

// Add starts tracking p. It returns false if the printer id is already
// registered.
func (r *Registry) Add(p *Poller) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pollers[p.PrinterID()]; ok {
		return false
	}
	r.pollers[p.PrinterID()] = p
	return true
}

// Remove stops and forgets the poller of printerID.
func (r *Registry) Remove(printerID string) {
	r.mu.Lock()
	p, ok := r.pollers[printerID]
	delete(r.pollers, printerID)
	r.mu.Unlock()

	if ok {
		p.Stop()
	}
}

func (r *Registry) Has(printerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pollers[printerID]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pollers)
}

// IDs returns the registered printer ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.pollers))
	for id := range r.pollers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close stops every poller.
func (r *Registry) Close() {
	r.mu.Lock()
	pollers := r.pollers
	r.pollers = make(map[string]*Poller)
	r.mu.Unlock()

	for _, p := range pollers {
		p.Stop()
	}
}

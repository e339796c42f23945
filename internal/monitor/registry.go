package monitor

import "sync"

// Registry tracks at most one live monitor per checkout id, enforcing the
// single-writer discipline the store itself does not arbitrate.
type Registry struct {
	mu       sync.Mutex
	monitors map[string]*Monitor
}

func NewRegistry() *Registry {
	return &Registry{
		monitors: make(map[string]*Monitor),
	}
}

// Add registers a monitor. A finished monitor for the same checkout is
// replaced; a live one makes Add fail with ErrAlreadyTracked.
func (r *Registry) Add(m *Monitor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.monitors[m.CheckoutID()]; ok && !existing.Finished() {
		return ErrAlreadyTracked
	}
	r.monitors[m.CheckoutID()] = m
	return nil
}

// Get returns the monitor for a checkout id, if any.
func (r *Registry) Get(checkoutID string) (*Monitor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.monitors[checkoutID]
	return m, ok
}

// Remove stops and forgets the monitor for a checkout id.
func (r *Registry) Remove(checkoutID string) {
	r.mu.Lock()
	m, ok := r.monitors[checkoutID]
	delete(r.monitors, checkoutID)
	r.mu.Unlock()

	if ok {
		m.Stop()
	}
}

// List returns all registered monitors.
func (r *Registry) List() []*Monitor {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Monitor, 0, len(r.monitors))
	for _, m := range r.monitors {
		out = append(out, m)
	}
	return out
}

// StopAll stops every registered monitor, e.g. at shutdown.
func (r *Registry) StopAll() {
	for _, m := range r.List() {
		m.Stop()
	}
}

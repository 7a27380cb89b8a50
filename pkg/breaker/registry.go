package breaker

import "sync"

// Registry lazily creates breakers keyed by name and exposes an
// aggregate health view.
type Registry struct {
	mu   sync.Mutex
	m    map[string]*Breaker
	opts []Option
}

// NewRegistry creates a registry; opts apply to every breaker it creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{m: make(map[string]*Breaker), opts: opts}
}

// Get returns the breaker for name, creating it on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.m[name]
	if !ok {
		b = New(name, r.opts...)
		r.m[name] = b
	}
	return b
}

// Healthy reports true iff no registered breaker is open.
func (r *Registry) Healthy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.m {
		if b.State() == StateOpen {
			return false
		}
	}
	return true
}

// Snapshots returns a point-in-time view of every breaker.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, 0, len(r.m))
	for _, b := range r.m {
		out = append(out, b.Snapshot())
	}
	return out
}

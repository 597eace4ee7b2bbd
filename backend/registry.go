package backend

import (
	"sort"
	"sync"
)

// registration holds a provider with its sidebar priority
type registration struct {
	provider Provider
	priority int
}

// Registry maps service identifiers to providers. The orchestrator and the
// UI only ever reach providers through it.
type Registry struct {
	mu            sync.RWMutex
	registrations map[Service]registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{registrations: make(map[Service]registration)}
}

// Register adds a provider with the default priority.
func (r *Registry) Register(service Service, p Provider) {
	r.RegisterWithPriority(service, p, 100)
}

// RegisterWithPriority adds a provider. Lower priority numbers are listed
// first (local=10, mstodo=20, google=30).
func (r *Registry) RegisterWithPriority(service Service, p Provider, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registrations[service] = registration{provider: p, priority: priority}
}

// Get returns the provider registered for service.
func (r *Registry) Get(service Service) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.registrations[service]
	if !ok {
		return nil, false
	}
	return reg.provider, true
}

// Services returns the registered services ordered by priority, then name.
func (r *Registry) Services() []Service {
	r.mu.RLock()
	defer r.mu.RUnlock()

	services := make([]Service, 0, len(r.registrations))
	for s := range r.registrations {
		services = append(services, s)
	}
	sort.Slice(services, func(i, j int) bool {
		pi, pj := r.registrations[services[i]].priority, r.registrations[services[j]].priority
		if pi != pj {
			return pi < pj
		}
		return services[i] < services[j]
	})
	return services
}

// Available returns the services whose provider reports itself usable.
func (r *Registry) Available() []Service {
	var out []Service
	for _, s := range r.Services() {
		if p, ok := r.Get(s); ok && p.Available() {
			out = append(out, s)
		}
	}
	return out
}

// Close closes every registered provider and returns the first error.
func (r *Registry) Close() error {
	var first error
	for _, s := range r.Services() {
		p, _ := r.Get(s)
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

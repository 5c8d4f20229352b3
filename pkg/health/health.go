package health

import "sync"

// CheckFunc probes a single dependency and reports whether it is
// healthy, with a short human-readable detail string.
type CheckFunc func() (bool, string)

type check struct {
	name string
	run  CheckFunc
}

// Registry holds named health checks and runs them on demand.
type Registry struct {
	mu     sync.RWMutex
	checks []check
}

// NewRegistry creates an empty health check registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers a named check. Checks run in registration order.
func (r *Registry) Add(name string, fn CheckFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks = append(r.checks, check{name: name, run: fn})
}

// Run executes all checks and returns overall health plus the
// per-check detail strings.
func (r *Registry) Run() (bool, map[string]string) {
	r.mu.RLock()
	checks := append([]check(nil), r.checks...)
	r.mu.RUnlock()

	healthy := true
	details := make(map[string]string, len(checks))
	for _, c := range checks {
		ok, detail := c.run()
		if !ok {
			healthy = false
		}
		details[c.name] = detail
	}
	return healthy, details
}

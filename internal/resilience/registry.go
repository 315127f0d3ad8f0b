package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Health is the observed state of one upstream.
type Health struct {
	Name          string
	State         gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// Healthy reports a closed breaker.
func (h *Health) Healthy() bool {
	return h.State == gobreaker.StateClosed
}

// Degraded reports a half-open breaker.
func (h *Health) Degraded() bool {
	return h.State == gobreaker.StateHalfOpen
}

// Down reports an open breaker.
func (h *Health) Down() bool {
	return h.State == gobreaker.StateOpen
}

// Registry tracks clients by upstream name.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*tracked
	now     func() time.Time
}

type tracked struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*tracked), now: time.Now}
}

// Register adds or replaces the client for name.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = &tracked{client: client}
}

// Unregister removes name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, name)
}

// RecordSuccess stamps the last success time of name.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.clients[name]; ok {
		now := r.now()
		t.lastSuccessAt = &now
	}
}

// RecordFailure stamps the last failure of name.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.clients[name]; ok {
		now := r.now()
		t.lastFailureAt = &now
		if err != nil {
			t.lastError = err.Error()
		}
	}
}

// Health returns the health of name, or nil if it is not registered.
func (r *Registry) Health(name string) *Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.clients[name]
	if !ok {
		return nil
	}
	return t.health(name)
}

// All returns the health of every upstream ordered by name.
func (r *Registry) All() []*Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Health, 0, len(r.clients))
	for name, t := range r.clients {
		out = append(out, t.health(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered upstreams.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (t *tracked) health(name string) *Health {
	return &Health{
		Name:          name,
		State:         t.client.State(),
		Counts:        t.client.Counts(),
		LastSuccessAt: t.lastSuccessAt,
		LastFailureAt: t.lastFailureAt,
		LastError:     t.lastError,
	}
}

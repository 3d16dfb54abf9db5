package session

import (
	"sync"
)

// Session pairs one aggregate with its single-writer lock. Mutations to a
// given order are linearized through Do; different orders proceed in
// parallel.
type Session struct {
	mu  sync.Mutex
	agg *Aggregate
}

// Do runs fn with exclusive access to the aggregate.
func (s *Session) Do(fn func(a *Aggregate) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.agg)
}

// Registry keeps live sessions keyed by room key (table number or online
// order id). There is no global order lock; the registry lock only guards
// the map itself.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

func (r *Registry) Get(key string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[key]
	return s, ok
}

// GetOrCreate returns the session for key, building the aggregate via
// create on first use. created reports whether this call made it.
func (r *Registry) GetOrCreate(key string, create func() *Aggregate) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[key]; ok {
		return s, false
	}
	s := &Session{agg: create()}
	r.sessions[key] = s
	return s, true
}

// Remove drops an archived session. The aggregate itself stays valid for
// any caller still holding it; it just stops being reachable by key.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key)
}

func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.sessions))
	for k := range r.sessions {
		keys = append(keys, k)
	}
	return keys
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

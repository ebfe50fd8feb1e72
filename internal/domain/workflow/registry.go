package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry holds the live sessions of this process. Sessions idle for longer
// than the TTL are discarded by Sweep.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Controller
	deps     Deps
	ttl      time.Duration
	now      func() time.Time
}

// NewRegistry creates an empty registry. A ttl <= 0 disables expiry.
func NewRegistry(deps Deps, ttl time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*Controller),
		deps:     deps,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create starts a new session.
func (r *Registry) Create() *Controller {
	c := NewController(uuid.New().String(), r.deps)
	c.now = r.now
	c.lastActive = r.now()

	r.mu.Lock()
	r.sessions[c.ID()] = c
	r.mu.Unlock()

	r.deps.Logger.Info().Str("session_id", c.ID()).Msg("session created")
	return c
}

func (r *Registry) Get(id string) (*Controller, error) {
	r.mu.RLock()
	c, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return c, nil
}

func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	c, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	c.Close()
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes idle sessions and returns how many were dropped.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var expired []*Controller
	for id, c := range r.sessions {
		if c.IdleSince().Before(cutoff) {
			expired = append(expired, c)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, c := range expired {
		c.Close()
		r.deps.Logger.Info().Str("session_id", c.ID()).Msg("idle session expired")
	}
	return len(expired)
}

// Run sweeps every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if r.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// CloseAll cancels every outstanding fetch; used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.sessions {
		c.Close()
		delete(r.sessions, id)
	}
}

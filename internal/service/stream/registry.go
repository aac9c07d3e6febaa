package stream

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Session is one live connection's registry entry.
type Session struct {
	ID         string
	RemoteAddr string
	StartedAt  time.Time

	closeFn func()
}

// Registry is the process-wide table of live connections, used for
// resource accounting and shutdown. Its lifetime spans the service's
// uptime.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	counter  uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a new connection and assigns it a session ID. closeFn
// is invoked during CloseAll to force the connection down.
func (r *Registry) Add(remoteAddr string, closeFn func()) *Session {
	n := atomic.AddUint64(&r.counter, 1)
	s := &Session{
		ID:         fmt.Sprintf("sess-%d", n),
		RemoteAddr: remoteAddr,
		StartedAt:  time.Now(),
		closeFn:    closeFn,
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	return s
}

// Remove unregisters a connection. Idempotent.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll force-closes every registered connection, for shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		log.Info().Str("sessionId", s.ID).Msg("Force-closing session on shutdown")
		if s.closeFn != nil {
			s.closeFn()
		}
	}
}

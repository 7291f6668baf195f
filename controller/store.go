package controller

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"epschart/logger"
)

const SessionCookie = "epschart_session"

// Store hands each browser its own Controller, keyed by a session cookie.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Controller
	factory  func() *Controller
	maxIdle  time.Duration
	now      func() time.Time
}

func NewStore(factory func() *Controller, maxIdle time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Controller),
		factory:  factory,
		maxIdle:  maxIdle,
		now:      time.Now,
	}
}

// ForRequest returns the controller for the request's session, starting a new
// session (and setting its cookie) when the cookie is missing, malformed or
// refers to a swept session.
func (s *Store) ForRequest(w http.ResponseWriter, r *http.Request) *Controller {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if id, err := uuid.Parse(cookie.Value); err == nil {
			if c, ok := s.Get(id.String()); ok {
				return c
			}
		}
	}

	id := uuid.NewString()
	c := s.factory()
	s.mu.Lock()
	s.sessions[id] = c
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	logger.Debugf("new session %s", id)
	return c
}

func (s *Store) Get(id string) (*Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.sessions[id]
	return c, ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than maxIdle and returns how many went.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.maxIdle)

	s.mu.Lock()
	var idle []*Controller
	for id, c := range s.sessions {
		if c.idleSince().Before(cutoff) {
			idle = append(idle, c)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, c := range idle {
		c.Close()
	}
	if len(idle) > 0 {
		logger.Infof("swept %d idle sessions", len(idle))
	}
	return len(idle)
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

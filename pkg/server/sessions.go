package server

import (
	"context"
	"sync"
	"time"
)

const (
	sessionMaxAge = 24 * time.Hour
	purgeInterval = time.Hour
)

type session struct {
	createdAt time.Time
	// stateCode is the pending one-time OAuth state; cleared on login.
	stateCode string
	email     string
	// expiresAt is the Google token expiry; zero until authenticated.
	expiresAt time.Time
}

// sessionStore is the in-memory session map. Sessions never survive a
// restart, which is fine for a single-household dashboard.
type sessionStore struct {
	mu  sync.RWMutex
	m   map[string]*session
	now func() time.Time
}

func newSessionStore() *sessionStore {
	return &sessionStore{
		m:   make(map[string]*session),
		now: time.Now,
	}
}

// create registers a pending session awaiting the OAuth callback.
func (s *sessionStore) create(id, stateCode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[id] = &session{
		createdAt: s.now(),
		stateCode: stateCode,
	}
}

// matchState reports whether the session exists and its pending state code
// matches. A consumed (already authenticated) session never matches again.
func (s *sessionStore) matchState(id, stateCode string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.m[id]
	return ok && stateCode != "" && sess.stateCode == stateCode
}

// authenticate promotes a pending session, consuming its state code.
func (s *sessionStore) authenticate(id, email string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[id]
	if !ok {
		return
	}
	sess.stateCode = ""
	sess.email = email
	sess.expiresAt = expiresAt
}

// authenticated reports whether the session holds a non-expired login.
func (s *sessionStore) authenticated(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.m[id]
	return ok && sess.email != "" && s.now().Before(sess.expiresAt)
}

// purge drops sessions created before the limit, pending or not.
func (s *sessionStore) purge(limit time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.m {
		if sess.createdAt.Before(limit) {
			delete(s.m, id)
		}
	}
}

// runPurge evicts day-old sessions hourly until the context is canceled.
func (s *sessionStore) runPurge(ctx context.Context) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.purge(s.now().Add(-sessionMaxAge))
		}
	}
}

package session

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/hashicorp/cap-cognito/cognito"
	"github.com/hashicorp/cap-cognito/sdk/id"
)

// sessionIdPrefix prefixes every MemoryStore session id.
const sessionIdPrefix = "sess"

// MemoryStore is a cognito.SessionStore which keeps sessions in memory,
// keyed by a random id carried in an HttpOnly cookie. Sessions don't survive
// a restart and aren't shared between processes. It is safe for concurrent
// use.
//
// Expired sessions are evicted when read, and every Set sweeps the sessions
// which expired since, so sessions abandoned without a logout don't
// accumulate.
type MemoryStore struct {
	opts  storeOptions
	clock clockwork.Clock

	mu       sync.RWMutex
	sessions map[string]*cognito.Session
}

var _ cognito.SessionStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
// Supported options: WithCookieName, WithCookiePath, WithSecureCookie,
// WithSameSite, WithClock
func NewMemoryStore(opt ...Option) *MemoryStore {
	opts := getStoreOpts(opt...)
	return &MemoryStore{
		opts:     opts,
		clock:    opts.withClock,
		sessions: map[string]*cognito.Session{},
	}
}

// Get returns a copy of the request's session, or nil when there is none.
// An expired session is removed and nil is returned.
func (s *MemoryStore) Get(r *http.Request) (*cognito.Session, error) {
	sessionId, ok := s.sessionId(r)
	if !ok {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionId]
	if !ok {
		return nil, nil
	}
	if sess.IsExpired(s.clock.Now()) {
		delete(s.sessions, sessionId)
		return nil, nil
	}
	return sess.Clone(), nil
}

// Set stores a copy of the session under a new id, replacing any session the
// request already had, and sets the id cookie.
func (s *MemoryStore) Set(w http.ResponseWriter, r *http.Request, sess *cognito.Session) error {
	const op = "session.(MemoryStore).Set"
	if sess == nil {
		return fmt.Errorf("%s: session is nil: %w", op, ErrNilParameter)
	}
	newId, err := id.New(sessionIdPrefix)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if oldId, ok := s.sessionId(r); ok {
		delete(s.sessions, oldId)
	}
	s.sweepLocked()
	s.sessions[newId] = sess.Clone()
	http.SetCookie(w, s.opts.cookie(newId, 0))
	return nil
}

// Clear removes the request's session and expires the id cookie.
func (s *MemoryStore) Clear(w http.ResponseWriter, r *http.Request) error {
	if sessionId, ok := s.sessionId(r); ok {
		s.mu.Lock()
		delete(s.sessions, sessionId)
		s.mu.Unlock()
	}
	http.SetCookie(w, s.opts.cookie("", -1))
	return nil
}

// Len returns the number of stored sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// sweepLocked removes every expired session. s.mu must be held.
func (s *MemoryStore) sweepLocked() {
	now := s.clock.Now()
	for sessionId, sess := range s.sessions {
		if sess.IsExpired(now) {
			delete(s.sessions, sessionId)
		}
	}
}

func (s *MemoryStore) sessionId(r *http.Request) (string, bool) {
	c, err := r.Cookie(s.opts.withCookieName)
	if errors.Is(err, http.ErrNoCookie) || c == nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

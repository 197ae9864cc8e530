package cognito

import (
	"net/http"
	"time"
)

// Session is the authenticated identity established by a successful
// callback. A Session is only ever written whole.
type Session struct {
	// Username is the "cognito:username" claim
	Username string

	// Id is the "sub" claim
	Id string

	// Groups is the "cognito:groups" claim, in order. It's nil when the user
	// belongs to no group.
	Groups []string

	// Email is the "email" claim, if present
	Email string

	// Expires is the id_token's "exp" claim
	Expires time.Time

	// RefreshToken is the refresh_token from the token response, if any
	RefreshToken RefreshToken
}

// IsExpired reports whether the session has expired at now.
func (s *Session) IsExpired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !now.Before(s.Expires)
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Groups != nil {
		c.Groups = make([]string, len(s.Groups))
		copy(c.Groups, s.Groups)
	}
	return &c
}

// SessionStore persists the Session of the client making a request.
// Implementations must store the whole Session in Set, so readers never see
// a mix of fields from two logins.
type SessionStore interface {
	// Get returns the request's session, or nil when there is none.
	Get(r *http.Request) (*Session, error)

	// Set replaces the request's session.
	Set(w http.ResponseWriter, r *http.Request, s *Session) error

	// Clear removes the request's session. Clearing a request without a
	// session is not an error.
	Clear(w http.ResponseWriter, r *http.Request) error
}

package session

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/securecookie"

	"github.com/hashicorp/cap-cognito/cognito"
)

// MaxCookieSize is the largest session cookie, name and value together, a
// CookieStore will set. Browsers drop larger cookies.
const MaxCookieSize = 4096

// CookieStore is a cognito.SessionStore which keeps the whole session in a
// cookie, authenticated with a hash key and encrypted with a block key.
// Nothing is kept server side. It is safe for concurrent use.
//
// The encoded session must fit in MaxCookieSize. Encoding and encryption
// roughly double the session's size, so a long refresh token or many groups
// can exceed it; use a MemoryStore for those pools.
type CookieStore struct {
	opts  storeOptions
	codec *securecookie.SecureCookie
}

var _ cognito.SessionStore = (*CookieStore)(nil)

// NewCookieStore creates a CookieStore. The hashKey authenticates the cookie
// and should be 32 or 64 random bytes. The blockKey encrypts it and must be
// 16, 24 or 32 bytes, for AES-128, AES-192 or AES-256.
// Supported options: WithCookieName, WithCookiePath, WithSecureCookie,
// WithSameSite
func NewCookieStore(hashKey, blockKey []byte, opt ...Option) (*CookieStore, error) {
	const op = "session.NewCookieStore"
	if len(hashKey) == 0 {
		return nil, fmt.Errorf("%s: hash key is empty: %w", op, ErrInvalidParameter)
	}
	switch len(blockKey) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%s: block key must be 16, 24 or 32 bytes: %w", op, ErrInvalidParameter)
	}
	codec := securecookie.New(hashKey, blockKey)
	// the cookie's lifetime follows the session's expiry
	codec.MaxAge(0)
	// sizes are checked against MaxCookieSize by Get and Set
	codec.MaxLength(0)
	return &CookieStore{
		opts:  getStoreOpts(opt...),
		codec: codec,
	}, nil
}

// Get decodes the request's session cookie. It returns nil when there is no
// cookie, and an ErrInvalidCookie when the cookie can't be authenticated or
// decrypted.
func (s *CookieStore) Get(r *http.Request) (*cognito.Session, error) {
	const op = "session.(CookieStore).Get"
	c, err := r.Cookie(s.opts.withCookieName)
	if errors.Is(err, http.ErrNoCookie) || c == nil || c.Value == "" {
		return nil, nil
	}
	if len(c.Name)+len(c.Value) > MaxCookieSize {
		return nil, fmt.Errorf("%s: cookie exceeds %d bytes: %w", op, MaxCookieSize, ErrInvalidCookie)
	}
	var sess cognito.Session
	if err := s.codec.Decode(s.opts.withCookieName, c.Value, &sess); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidCookie, err)
	}
	return &sess, nil
}

// Set encodes the session into the cookie. The cookie expires with the
// session. A session whose cookie would exceed MaxCookieSize is rejected with
// ErrSessionTooLarge and no cookie is set.
func (s *CookieStore) Set(w http.ResponseWriter, _ *http.Request, sess *cognito.Session) error {
	const op = "session.(CookieStore).Set"
	if sess == nil {
		return fmt.Errorf("%s: session is nil: %w", op, ErrNilParameter)
	}
	encoded, err := s.codec.Encode(s.opts.withCookieName, sess)
	if err != nil {
		return fmt.Errorf("%s: unable to encode session: %w", op, err)
	}
	if size := len(s.opts.withCookieName) + len(encoded); size > MaxCookieSize {
		return fmt.Errorf("%s: cookie is %d bytes, limit is %d: %w", op, size, MaxCookieSize, ErrSessionTooLarge)
	}
	c := s.opts.cookie(encoded, 0)
	if !sess.Expires.IsZero() {
		c.Expires = sess.Expires
	}
	http.SetCookie(w, c)
	return nil
}

// Clear expires the session cookie.
func (s *CookieStore) Clear(w http.ResponseWriter, _ *http.Request) error {
	http.SetCookie(w, s.opts.cookie("", -1))
	return nil
}

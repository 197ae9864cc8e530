package session

import (
	"net/http"

	"github.com/jonboulle/clockwork"
)

// DefaultCookieName is the session cookie's name unless WithCookieName is
// used.
const DefaultCookieName = "cognito_session"

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// WithCookieName provides an optional name for the session cookie.
func WithCookieName(name string) Option {
	return func(o interface{}) {
		if o, ok := o.(*storeOptions); ok {
			o.withCookieName = name
		}
	}
}

// WithCookiePath provides an optional path for the session cookie. The
// default is "/".
func WithCookiePath(path string) Option {
	return func(o interface{}) {
		if o, ok := o.(*storeOptions); ok {
			o.withCookiePath = path
		}
	}
}

// WithSecureCookie sets the session cookie's Secure attribute.
func WithSecureCookie(secure bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*storeOptions); ok {
			o.withSecure = secure
		}
	}
}

// WithSameSite provides an optional SameSite mode for the session cookie.
// The default is http.SameSiteLaxMode, which lets the cookie accompany the
// redirect back from the hosted UI.
func WithSameSite(mode http.SameSite) Option {
	return func(o interface{}) {
		if o, ok := o.(*storeOptions); ok {
			o.withSameSite = mode
		}
	}
}

// WithClock provides an optional clock for the MemoryStore's expiry checks.
func WithClock(c clockwork.Clock) Option {
	return func(o interface{}) {
		if o, ok := o.(*storeOptions); ok {
			o.withClock = c
		}
	}
}

// storeOptions is the set of available options for the stores
type storeOptions struct {
	withCookieName string
	withCookiePath string
	withSecure     bool
	withSameSite   http.SameSite
	withClock      clockwork.Clock
}

func storeDefaults() storeOptions {
	return storeOptions{
		withCookieName: DefaultCookieName,
		withCookiePath: "/",
		withSameSite:   http.SameSiteLaxMode,
		withClock:      clockwork.NewRealClock(),
	}
}

func getStoreOpts(opt ...Option) storeOptions {
	opts := storeDefaults()
	ApplyOpts(&opts, opt...)
	if opts.withCookieName == "" {
		opts.withCookieName = DefaultCookieName
	}
	if opts.withCookiePath == "" {
		opts.withCookiePath = "/"
	}
	if opts.withClock == nil {
		opts.withClock = clockwork.NewRealClock()
	}
	return opts
}

// cookie builds the session cookie with the store's attributes.
func (o storeOptions) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     o.withCookieName,
		Value:    value,
		Path:     o.withCookiePath,
		MaxAge:   maxAge,
		Secure:   o.withSecure,
		HttpOnly: true,
		SameSite: o.withSameSite,
	}
}

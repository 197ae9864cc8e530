package cognito

import (
	"net/http"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"

	"github.com/hashicorp/cap-cognito/jwt"
)

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

// WithLogger provides an optional logger for the Provider.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok {
			o.withLogger = l
		}
	}
}

// WithHttpClient provides an optional http client used for both the code
// exchange and the key set fetch. It replaces the client built from the
// Config's ProviderCA and Timeout.
func WithHttpClient(c *http.Client) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok {
			o.withHttpClient = c
		}
	}
}

// WithKeySetCache provides an optional key set cache, e.g. one shared by
// several Providers for the same user pool.
func WithKeySetCache(c *jwt.KeySetCache) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok {
			o.withKeySetCache = c
		}
	}
}

// WithClock provides an optional clock for token and session expiry checks.
func WithClock(c clockwork.Clock) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok {
			o.withClock = c
		}
	}
}

// providerOptions is the set of available options for Provider
type providerOptions struct {
	withLogger      hclog.Logger
	withHttpClient  *http.Client
	withKeySetCache *jwt.KeySetCache
	withClock       clockwork.Clock
}

func providerDefaults() providerOptions {
	return providerOptions{
		withLogger: hclog.NewNullLogger(),
		withClock:  clockwork.NewRealClock(),
	}
}

func getProviderOpts(opt ...Option) providerOptions {
	opts := providerDefaults()
	ApplyOpts(&opts, opt...)
	if opts.withLogger == nil {
		opts.withLogger = hclog.NewNullLogger()
	}
	if opts.withClock == nil {
		opts.withClock = clockwork.NewRealClock()
	}
	return opts
}

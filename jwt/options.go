// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
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

// WithHttpClient provides an optional http client for the KeySetCache. When
// used, WithTimeout still bounds each fetch through the request context.
func WithHttpClient(c *http.Client) Option {
	return func(o interface{}) {
		if o, ok := o.(*keySetCacheOptions); ok {
			o.withHttpClient = c
		}
	}
}

// WithTimeout provides an optional timeout for each key set fetch.
func WithTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*keySetCacheOptions); ok {
			o.withTimeout = d
		}
	}
}

// WithLogger provides an optional logger for the KeySetCache.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*keySetCacheOptions); ok {
			o.withLogger = l
		}
	}
}

// WithClock provides an optional clock for the Verifier's time based claim
// checks.
func WithClock(c clockwork.Clock) Option {
	return func(o interface{}) {
		if o, ok := o.(*verifierOptions); ok {
			o.withClock = c
		}
	}
}

// WithLeeway provides an optional leeway for the Verifier's time based claim
// checks. The default is no leeway.
func WithLeeway(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*verifierOptions); ok {
			o.withLeeway = d
		}
	}
}

// WithSupportedAlgs restricts the signing algorithms the Verifier accepts.
// The default is RS256, which is what Cognito user pools sign with.
func WithSupportedAlgs(algs ...Alg) Option {
	return func(o interface{}) {
		if o, ok := o.(*verifierOptions); ok {
			o.withSupportedAlgs = algs
		}
	}
}

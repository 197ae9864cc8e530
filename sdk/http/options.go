package http

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

// clientOptions is the set of available options for NewClient
type clientOptions struct {
	withTLSMinVersion string
}

// clientDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func clientDefaults() clientOptions {
	return clientOptions{
		withTLSMinVersion: DefaultTLSMinVersion,
	}
}

// getClientOpts gets the client defaults and applies the opt overrides passed
// in.
func getClientOpts(opt ...Option) clientOptions {
	opts := clientDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithTLSMinVersion sets the minimum TLS version: tls10, tls11, tls12 or
// tls13. An empty version keeps the default.
func WithTLSMinVersion(v string) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok && v != "" {
			o.withTLSMinVersion = v
		}
	}
}

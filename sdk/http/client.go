package http

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-secure-stdlib/tlsutil"
)

var (
	ErrInvalidCertificatePem = errors.New("invalid certificate PEM")
	ErrInvalidTLSVersion     = errors.New("invalid TLS version")
)

const (
	// DefaultTimeout bounds every request made with a client from NewClient
	// when the caller doesn't provide a timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultTLSMinVersion is used when WithTLSMinVersion isn't supplied.
	DefaultTLSMinVersion = "tls12"
)

// ValidTLSVersion reports whether v names a TLS version NewClient accepts:
// tls10, tls11, tls12 or tls13.
func ValidTLSVersion(v string) bool {
	_, ok := tlsutil.TLSLookup[v]
	return ok
}

// NewClient creates a new http client which will use the optional CA
// certificate PEM if provided, otherwise it will use the installed system CA
// chain. A timeout <= 0 selects DefaultTimeout.
//
// Supported options: WithTLSMinVersion
func NewClient(caPEM string, timeout time.Duration, opt ...Option) (*http.Client, error) {
	opts := getClientOpts(opt...)
	minVersion, ok := tlsutil.TLSLookup[opts.withTLSMinVersion]
	if !ok {
		return nil, ErrInvalidTLSVersion
	}

	tr := cleanhttp.DefaultPooledTransport()
	tr.TLSClientConfig = &tls.Config{
		MinVersion: minVersion,
	}
	if caPEM != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(caPEM)); !ok {
			return nil, ErrInvalidCertificatePem
		}
		tr.TLSClientConfig.RootCAs = certPool
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

// ClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. This method sets the same context key used
// by the github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so the
// returned context works for those packages as well.
func ClientContext(ctx context.Context, client *http.Client) context.Context {
	return oidc.ClientContext(ctx, client)
}

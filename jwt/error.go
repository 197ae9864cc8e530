package jwt

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrUnsupportedAlg   = errors.New("unsupported signing algorithm")
	ErrKeySetFetch      = errors.New("unable to fetch key set")

	// ErrTokenVerification is matched by every error returned from
	// Verifier.Verify.
	ErrTokenVerification = errors.New("token verification failed")
	ErrMalformedToken    = errors.New("malformed token")
	ErrKeyNotFound       = errors.New("signing key not found")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrInvalidClaims     = errors.New("invalid claims")
	ErrInvalidIssuer     = errors.New("invalid issuer")
	ErrInvalidAudience   = errors.New("invalid audience")
	ErrExpired           = errors.New("token is expired")
	ErrTokenBinding      = errors.New("invalid access token binding")
)

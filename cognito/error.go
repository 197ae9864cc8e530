package cognito

import (
	"errors"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")
	ErrInvalidCACert    = errors.New("invalid CA certificate")

	// ErrConfiguration is matched by every *ConfigurationError.
	ErrConfiguration = errors.New("invalid configuration")

	ErrNetwork              = errors.New("network error")
	ErrExchange             = errors.New("authorization code exchange failed")
	ErrCsrfMismatch         = errors.New("csrf state mismatch")
	ErrTokenVerification    = errors.New("token verification failed")
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// ConfigurationError reports a missing or invalid setting. Its message is
// fixed per setting so operators can act on it directly.
type ConfigurationError struct {
	// Key is the setting's name, e.g. COGNITO_REGION
	Key string

	// Msg is the operator facing message
	Msg string
}

// Error returns the fixed message for the setting.
func (e *ConfigurationError) Error() string {
	return e.Msg
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

package session

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")
	ErrInvalidCookie    = errors.New("invalid session cookie")
	ErrSessionTooLarge  = errors.New("session too large for a cookie")
)

package handler

import (
	"context"

	"github.com/hashicorp/cap-cognito/cognito"
)

type sessionKey struct{}

// NewContext returns a copy of ctx carrying the session.
func NewContext(ctx context.Context, s *cognito.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session added by Callback or RequireSession.
func FromContext(ctx context.Context) (*cognito.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*cognito.Session)
	return s, ok && s != nil
}

package client

import "context"

type sessionKey struct{}

// WithSession attaches the viewer's backend session cookie header to ctx. The backend
// derives viewer specific fields such as is_registered from it.
func WithSession(ctx context.Context, cookieHeader string) context.Context {
	if cookieHeader == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, cookieHeader)
}

// SessionFromContext returns the cookie header stored by WithSession.
func SessionFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(sessionKey{}).(string)
	return v
}

package backend

import "context"

type contextKey int

const sessionKey contextKey = iota

// WithSession attaches an authenticated session to the context.
// Adapters read it back to scope and authorize their calls.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the session attached by WithSession.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}

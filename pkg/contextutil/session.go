package contextutil

import "context"

type contextKey string

const sessionIDKey contextKey = "session_id"

// WithSessionID tags ctx with the session a run belongs to.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionID returns the session id of ctx, or an empty string.
func SessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}

package session

import "context"

type ctxKey string

const sessionKey ctxKey = "salon.session_id"

// WithID stores the visitor session id in ctx.
func WithID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey, sessionID)
}

// IDFromContext extracts the visitor session id if present.
func IDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(sessionKey)
	if val == nil {
		return "", false
	}
	sessionID, ok := val.(string)
	return sessionID, ok && sessionID != ""
}

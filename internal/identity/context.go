package identity

import "context"

type ctxKey string

const callerKey ctxKey = "clinic.caller_id"

// WithCallerID stores the authenticated user id in context. The role is never
// carried here; operations re-derive it from the store.
func WithCallerID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, callerKey, userID)
}

// CallerIDFromContext extracts the authenticated user id if present.
func CallerIDFromContext(ctx context.Context) (int64, bool) {
	val := ctx.Value(callerKey)
	if val == nil {
		return 0, false
	}
	id, ok := val.(int64)
	return id, ok && id > 0
}

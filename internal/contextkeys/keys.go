package contextkeys

import "context"

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const (
	// AccountID is the context key for the authenticated account's ID.
	AccountID contextKey = "accountID"
	// AccountEmail is the context key for the authenticated account's email.
	AccountEmail contextKey = "accountEmail"
	// AccountRole is the context key for the authenticated account's role.
	AccountRole contextKey = "accountRole"
	// RequestID is the context key for the per-request correlation id.
	RequestID contextKey = "requestID"
)

// AccountIDFrom returns the authenticated account ID, or "" when absent.
func AccountIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(AccountID).(string)
	return id
}

// RequestIDFrom returns the request correlation id, or "" when absent.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestID).(string)
	return id
}

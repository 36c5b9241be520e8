package telemetry

import "context"

type contextKey struct{ name string }

var requestIDKey = contextKey{"request_id"}

// WithRequestID returns a context carrying the request id. Events emitted for the request read it back.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the request id from context and true if set; otherwise "", false.
func GetRequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestIDKey).(string)
	return v, ok
}

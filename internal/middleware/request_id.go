// Package middleware provides HTTP middleware components.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// contextKey is a type for context keys to avoid collisions.
type contextKey string

const (
	// RequestIDKey is the context key for request ID.
	RequestIDKey contextKey = "request_id"
	// requestLogKey carries the mutable per-request log fields.
	requestLogKey contextKey = "request_log"
)

// RequestIDHeader is the HTTP header for request ID.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds caller-supplied request ids.
const maxRequestIDLength = 128

// RequestID injects a unique request ID into each request.
// A caller-supplied X-Request-ID is kept when it is short enough,
// otherwise a new UUID is generated.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set(RequestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// requestLog collects identity fields resolved by inner stages so the
// outer Logger can report them.
type requestLog struct {
	clientID string
	userID   string
}

func annotateClient(ctx context.Context, id string) {
	if l, ok := ctx.Value(requestLogKey).(*requestLog); ok {
		l.clientID = id
	}
}

func annotateUser(ctx context.Context, id string) {
	if l, ok := ctx.Value(requestLogKey).(*requestLog); ok {
		l.userID = id
	}
}

package oapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// RequestIDConfig configures the RequestID middleware. Zero fields take
// their defaults.
type RequestIDConfig struct {
	Header    string        // default: X-Request-ID
	Generator func() string // default: uuid.NewString
}

// RequestID returns middleware that tags each request with an ID. An ID sent
// by the client in the header is kept; otherwise one is generated. The ID is
// echoed on the response and read back with GetRequestID.
func RequestID(cfg ...RequestIDConfig) Middleware {
	header, generate := "X-Request-ID", uuid.NewString
	for _, c := range cfg {
		if c.Header != "" {
			header = c.Header
		}
		if c.Generator != nil {
			generate = c.Generator
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(header)
			if id == "" {
				id = generate()
			}
			w.Header().Set(header, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		})
	}
}

// GetRequestID returns the ID assigned by RequestID, or "" when the
// middleware is not installed.
func GetRequestID(r *http.Request) string {
	return RequestIDFromContext(r.Context())
}

// RequestIDFromContext is GetRequestID for code that only holds a context,
// such as a ResponseContext.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

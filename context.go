package oapi

import (
	"context"
	"net/http"
)

// ResponseContext is the per-request execution context handed to handlers.
// It embeds the request context, so it can be passed wherever a
// context.Context is expected.
type ResponseContext[Resp any] struct {
	context.Context

	// Request is the incoming request.
	Request *http.Request

	w      http.ResponseWriter
	resp   *Resp
	status int
	auth   *principalState
}

// Respond sets the response. The last call wins.
func (c *ResponseContext[Resp]) Respond(resp *Resp) {
	c.resp = resp
}

// Response returns the response set so far, or nil.
func (c *ResponseContext[Resp]) Response() *Resp {
	return c.resp
}

// SetStatus overrides the route's status code for this response.
func (c *ResponseContext[Resp]) SetStatus(code int) {
	c.status = code
}

// Header returns the response header map.
func (c *ResponseContext[Resp]) Header() http.Header {
	return c.w.Header()
}

type contextKey[T any] struct{}

// SetValue stores a typed value in the request context. For use in middleware.
func SetValue[T any](r *http.Request, val T) *http.Request {
	ctx := context.WithValue(r.Context(), contextKey[T]{}, val)
	return r.WithContext(ctx)
}

// GetValue retrieves a typed value from the request context. For use in handlers.
func GetValue[T any](ctx context.Context) (T, bool) {
	val, ok := ctx.Value(contextKey[T]{}).(T)
	return val, ok
}

package oapi

import "reflect"

// Void is the unit type. Use it as the parameter type of a route without
// parameters, the body type of a route without a body, or the response type of
// a route without a response body (204 No Content by default).
type Void struct{}

var voidType = reflect.TypeFor[Void]()

// Handler handles a route without a request body. The response is assigned
// through the context with Respond.
type Handler[P, Resp any] func(c *ResponseContext[Resp], params *P) error

// BodyHandler handles a route with a request body.
type BodyHandler[P, Req, Resp any] func(c *ResponseContext[Resp], params *P, body *Req) error

// AuthHandler handles an authenticated route without a request body.
type AuthHandler[A, P, Resp any] func(c *AuthContext[A, Resp], params *P) error

// AuthBodyHandler handles an authenticated route with a request body.
type AuthBodyHandler[A, P, Req, Resp any] func(c *AuthContext[A, Resp], params *P, body *Req) error

// routeFunc is the canonical handler shape every public handler type is
// adapted to before installation.
type routeFunc[P, Req, Resp any] func(c *ResponseContext[Resp], params *P, body *Req) error

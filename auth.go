package oapi

import (
	"net/http"
	"reflect"
	"strings"
	"sync"
)

// Security names the security scheme an auth provider authenticates with.
type Security struct {
	Name   string
	Scheme SecurityScheme
	Scopes []string
}

// AuthProvider resolves the principal of a request. Authenticate returns
// ErrNoPrincipal when the request carries no credentials,
// ErrInvalidCredentials when they are rejected, and ErrForbidden when the
// principal may not access the route.
type AuthProvider[A any] interface {
	Authenticate(r *http.Request) (A, error)
	Security() Security
}

// NewAuthProvider adapts a function into an AuthProvider.
func NewAuthProvider[A any](sec Security, fn func(r *http.Request) (A, error)) AuthProvider[A] {
	return authFunc[A]{sec: sec, fn: fn}
}

type authFunc[A any] struct {
	sec Security
	fn  func(r *http.Request) (A, error)
}

func (f authFunc[A]) Authenticate(r *http.Request) (A, error) { return f.fn(r) }
func (f authFunc[A]) Security() Security                      { return f.sec }

// AuthScope registers routes that resolve a principal of type A.
type AuthScope[A any] struct {
	parent  RouteContext
	binding *authBinding
}

// authBinding is the type-erased form of an auth provider the request
// pipeline works with.
type authBinding struct {
	principal *TypeWitness
	security  Security
	resolve   func(r *http.Request) (any, error)
}

// Authenticated returns a scope whose routes resolve their principal through p.
func Authenticated[A any](rc RouteContext, p AuthProvider[A]) *AuthScope[A] {
	return &AuthScope[A]{
		parent: rc,
		binding: &authBinding{
			principal: witnessOf(reflect.TypeFor[A]()),
			security:  p.Security(),
			resolve: func(r *http.Request) (any, error) {
				return p.Authenticate(r)
			},
		},
	}
}

// AuthContext is the execution context of an authenticated route.
type AuthContext[A, Resp any] struct {
	*ResponseContext[Resp]
}

// Principal resolves the principal on first use and returns the same
// outcome for the rest of the request. A failure is also recorded on the
// request, which then answers 401 or 403 whatever the handler does next.
func (c *AuthContext[A, Resp]) Principal() (A, error) {
	var zero A
	v, err := c.auth.get()
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	return v.(A), nil
}

// principalState is unresolved until the first get, then resolved for the
// rest of the request.
type principalState struct {
	resolve func(r *http.Request) (any, error)
	r       *http.Request

	mu       sync.Mutex
	resolved bool
	value    any
	err      *AuthError
}

func (s *principalState) get() (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.resolved {
		v, err := s.resolve(s.r)
		if err != nil {
			s.err = asAuthError(err)
		} else {
			s.value = v
		}
		s.resolved = true
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.value, nil
}

// failure returns the recorded auth failure, or nil when unresolved or resolved.
func (s *principalState) failure() *AuthError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func withAuth[A, P, Req, Resp any](h AuthBodyHandler[A, P, Req, Resp]) routeFunc[P, Req, Resp] {
	if h == nil {
		return nil
	}
	return func(c *ResponseContext[Resp], params *P, body *Req) error {
		return h(&AuthContext[A, Resp]{ResponseContext: c}, params, body)
	}
}

func withAuthNoBody[A, P, Resp any](h AuthHandler[A, P, Resp]) routeFunc[P, Void, Resp] {
	if h == nil {
		return nil
	}
	return func(c *ResponseContext[Resp], params *P, _ *Void) error {
		return h(&AuthContext[A, Resp]{ResponseContext: c}, params)
	}
}

// AuthGet registers an authenticated GET handler.
func AuthGet[A, P, Resp any](s *AuthScope[A], pattern string, h AuthHandler[A, P, Resp], opts ...RouteOption) {
	route(s.parent, http.MethodGet, pattern, false, s.binding, withAuthNoBody(h), opts)
}

// AuthHead registers an authenticated HEAD handler.
func AuthHead[A, P, Resp any](s *AuthScope[A], pattern string, h AuthHandler[A, P, Resp], opts ...RouteOption) {
	route(s.parent, http.MethodHead, pattern, false, s.binding, withAuthNoBody(h), opts)
}

// AuthDelete registers an authenticated DELETE handler.
func AuthDelete[A, P, Resp any](s *AuthScope[A], pattern string, h AuthHandler[A, P, Resp], opts ...RouteOption) {
	route(s.parent, http.MethodDelete, pattern, false, s.binding, withAuthNoBody(h), opts)
}

// AuthPost registers an authenticated POST handler.
func AuthPost[A, P, Req, Resp any](s *AuthScope[A], pattern string, h AuthBodyHandler[A, P, Req, Resp], opts ...RouteOption) {
	route(s.parent, http.MethodPost, pattern, true, s.binding, withAuth(h), opts)
}

// AuthPut registers an authenticated PUT handler.
func AuthPut[A, P, Req, Resp any](s *AuthScope[A], pattern string, h AuthBodyHandler[A, P, Req, Resp], opts ...RouteOption) {
	route(s.parent, http.MethodPut, pattern, true, s.binding, withAuth(h), opts)
}

// AuthPatch registers an authenticated PATCH handler.
func AuthPatch[A, P, Req, Resp any](s *AuthScope[A], pattern string, h AuthBodyHandler[A, P, Req, Resp], opts ...RouteOption) {
	route(s.parent, http.MethodPatch, pattern, true, s.binding, withAuth(h), opts)
}

// AuthRoute registers an authenticated handler for an arbitrary method.
func AuthRoute[A, P, Req, Resp any](s *AuthScope[A], method, pattern string, h AuthBodyHandler[A, P, Req, Resp], opts ...RouteOption) {
	route(s.parent, strings.ToUpper(method), pattern, true, s.binding, withAuth(h), opts)
}

// challenge returns the WWW-Authenticate value for HTTP schemes.
func (b *authBinding) challenge() string {
	if b.security.Scheme.Type != "http" || b.security.Scheme.Scheme == "" {
		return ""
	}
	scheme := b.security.Scheme.Scheme
	return strings.ToUpper(scheme[:1]) + scheme[1:]
}

// writeAuthProblem answers an auth failure, challenging on 401.
func writeAuthProblem(w http.ResponseWriter, err error, challenge string) {
	ae := asAuthError(err)
	if ae.Status == http.StatusUnauthorized && challenge != "" {
		w.Header().Set("WWW-Authenticate", challenge)
	}
	writeProblem(w, ae)
}

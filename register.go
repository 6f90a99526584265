package oapi

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// RouteContext is where routes are registered. *Router, *Group and the
// groups they create implement it.
type RouteContext interface {
	// Register documents d and installs h for it. It fails, without
	// installing anything, when the route cannot be registered.
	Register(d *RouteDescriptor, h http.Handler) error

	router() *Router
}

// Get registers a GET handler.
func Get[P, Resp any](rc RouteContext, pattern string, h Handler[P, Resp], opts ...RouteOption) {
	route(rc, http.MethodGet, pattern, false, nil, withoutBody(h), opts)
}

// Head registers a HEAD handler.
func Head[P, Resp any](rc RouteContext, pattern string, h Handler[P, Resp], opts ...RouteOption) {
	route(rc, http.MethodHead, pattern, false, nil, withoutBody(h), opts)
}

// Delete registers a DELETE handler.
func Delete[P, Resp any](rc RouteContext, pattern string, h Handler[P, Resp], opts ...RouteOption) {
	route(rc, http.MethodDelete, pattern, false, nil, withoutBody(h), opts)
}

// Post registers a POST handler.
func Post[P, Req, Resp any](rc RouteContext, pattern string, h BodyHandler[P, Req, Resp], opts ...RouteOption) {
	route(rc, http.MethodPost, pattern, true, nil, routeFunc[P, Req, Resp](h), opts)
}

// Put registers a PUT handler.
func Put[P, Req, Resp any](rc RouteContext, pattern string, h BodyHandler[P, Req, Resp], opts ...RouteOption) {
	route(rc, http.MethodPut, pattern, true, nil, routeFunc[P, Req, Resp](h), opts)
}

// Patch registers a PATCH handler.
func Patch[P, Req, Resp any](rc RouteContext, pattern string, h BodyHandler[P, Req, Resp], opts ...RouteOption) {
	route(rc, http.MethodPatch, pattern, true, nil, routeFunc[P, Req, Resp](h), opts)
}

// Route registers a handler for an arbitrary method. The body is decoded
// unless Req is Void.
func Route[P, Req, Resp any](rc RouteContext, method, pattern string, h BodyHandler[P, Req, Resp], opts ...RouteOption) {
	route(rc, strings.ToUpper(method), pattern, true, nil, routeFunc[P, Req, Resp](h), opts)
}

func withoutBody[P, Resp any](h Handler[P, Resp]) routeFunc[P, Void, Resp] {
	if h == nil {
		return nil
	}
	return func(c *ResponseContext[Resp], params *P, _ *Void) error {
		return h(c, params)
	}
}

// route is the single registration path behind every verb. Witnesses are
// captured here, in the registration call, before the handler closure exists.
func route[P, Req, Resp any](
	rc RouteContext,
	method, pattern string,
	hasBody bool,
	auth *authBinding,
	fn routeFunc[P, Req, Resp],
	opts []RouteOption,
) {
	if fn == nil {
		panic(registrationError(method, pattern, errors.Mark(errors.New("nil handler"), ErrInvalidRoute)))
	}

	d, err := describe[P, Req, Resp](method, pattern, hasBody, auth, opts)
	if err != nil {
		panic(registrationError(method, pattern, err))
	}

	h := buildHandler(rc.router(), d, auth, fn)

	if err := rc.Register(d, h); err != nil {
		panic(registrationError(method, pattern, err))
	}
}

// describe assembles the descriptor of a route.
func describe[P, Req, Resp any](method, pattern string, hasBody bool, auth *authBinding, opts []RouteOption) (*RouteDescriptor, error) {
	var cfg routeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if pattern != "" && !strings.HasPrefix(pattern, "/") {
		return nil, errors.Mark(errors.Newf("pattern %q must start with /", pattern), ErrInvalidRoute)
	}

	d := &RouteDescriptor{
		method:    method,
		pattern:   pattern,
		status:    cfg.status,
		bodyLimit: cfg.bodyLimit,
		rateLimit: cfg.rateLimit,
	}

	var err error
	if d.params, err = WitnessFor[P](); err != nil {
		return nil, errors.Wrap(err, "parameter type")
	}
	if !d.params.IsVoid() && (d.params.Type.Kind() != reflect.Struct || d.params.Nullable) {
		return nil, errors.Mark(errors.Newf("parameter type %s must be a struct", d.params), ErrInvalidRoute)
	}

	if hasBody && reflect.TypeFor[Req]() != voidType {
		if d.body, err = WitnessFor[Req](); err != nil {
			return nil, errors.Wrap(err, "request body type")
		}
	}

	if d.response, err = WitnessFor[Resp](); err != nil {
		return nil, errors.Wrap(err, "response type")
	}

	switch {
	case d.status == 0:
		d.status = defaultStatus(d.response)
	case d.status < 100 || d.status > 599:
		return nil, errors.Mark(errors.Newf("status %d out of range", d.status), ErrInvalidRoute)
	}

	if auth != nil {
		d.auth = &AuthRequirement{
			Principal: auth.principal,
			Security:  auth.security,
			Eager:     cfg.eagerAuth,
		}
	}

	for _, m := range cfg.modules {
		if err := d.modules.Register(m); err != nil {
			return nil, err
		}

		if err := d.bindExample(m); err != nil {
			return nil, err
		}
	}

	return d, nil
}

func exampleMatches(w *TypeWitness, v any) bool {
	if w == nil || v == nil {
		return false
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t == w.Type
}

// buildHandler assembles the request-time pipeline of a route: bind, invoke,
// emit.
func buildHandler[P, Req, Resp any](rt *Router, d *RouteDescriptor, auth *authBinding, fn routeFunc[P, Req, Resp]) http.Handler {
	bindsParams := d.hasParams()
	eager := d.auth != nil && d.auth.Eager

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params := new(P)
		if bindsParams {
			if err := bindParams(params, r, rt.host); err != nil {
				writeProblem(w, err)
				return
			}
		}

		body := new(Req)
		if d.body != nil {
			limitBody(w, r, d.bodyLimit)
			if err := rt.codecs.decodeBody(r, body); err != nil {
				if r.Context().Err() != nil {
					rt.abandon(r)
					return
				}
				writeProblem(w, err)
				return
			}
		}

		if err := rt.validate(params, body, bindsParams, d.body != nil); err != nil {
			writeProblem(w, err)
			return
		}

		c := &ResponseContext[Resp]{
			Context: r.Context(),
			Request: r,
			w:       w,
		}
		if auth != nil {
			c.auth = &principalState{resolve: auth.resolve, r: r}
			if eager {
				if _, err := c.auth.get(); err != nil {
					writeAuthProblem(w, err, auth.challenge())
					return
				}
			}
		}

		err := fn(c, params, body)

		if r.Context().Err() != nil {
			rt.abandon(r)
			return
		}
		if c.auth != nil {
			if aerr := c.auth.failure(); aerr != nil {
				writeAuthProblem(w, aerr, auth.challenge())
				return
			}
		}
		if err != nil {
			rt.handleError(w, r, err)
			return
		}

		status := d.status
		if c.status != 0 {
			status = c.status
		}
		if c.resp == nil || d.response.IsVoid() {
			w.WriteHeader(status)
			return
		}
		encodeResponse(w, r, c.resp, status, c.status != 0, rt.codecs)
	})
}

func (r *Router) abandon(req *http.Request) {
	r.logger.Debug("request abandoned",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Error(req.Context().Err()),
	)
}

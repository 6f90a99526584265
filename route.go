package oapi

// routeConfig collects the options of a single registration call.
type routeConfig struct {
	status    int
	modules   []Module
	bodyLimit int64
	rateLimit *RateLimitConfig
	eagerAuth bool
}

// RouteOption configures a route at registration time.
type RouteOption func(*routeConfig)

// WithStatus sets the status code written on success.
func WithStatus(code int) RouteOption {
	return func(rc *routeConfig) {
		rc.status = code
	}
}

// WithModules attaches documentation modules to the route.
func WithModules(mods ...Module) RouteOption {
	return func(rc *routeConfig) {
		rc.modules = append(rc.modules, mods...)
	}
}

// WithSummary sets the OpenAPI summary for the route.
func WithSummary(s string) RouteOption {
	return WithModules(Info{Summary: s})
}

// WithDescription sets the OpenAPI description for the route.
func WithDescription(d string) RouteOption {
	return WithModules(Info{Description: d})
}

// WithTags adds OpenAPI tags to the route.
func WithTags(tags ...string) RouteOption {
	return WithModules(Tags(tags))
}

// WithDeprecated marks the route as deprecated in the OpenAPI spec.
func WithDeprecated() RouteOption {
	return WithModules(Deprecated{})
}

// WithOperationID sets a custom OpenAPI operationId.
func WithOperationID(id string) RouteOption {
	return WithModules(OperationID(id))
}

// WithErrors declares additional HTTP error status codes for the OpenAPI spec.
func WithErrors(codes ...int) RouteOption {
	return func(rc *routeConfig) {
		for _, code := range codes {
			rc.modules = append(rc.modules, Throws{Status: code})
		}
	}
}

// WithExtension adds an OpenAPI extension to the operation.
func WithExtension(key string, value any) RouteOption {
	return WithModules(Extension{Key: key, Value: value})
}

// WithExample attaches a response example. The value must be of the route's
// response type (or a pointer to it); a mismatch fails registration.
func WithExample(v any) RouteOption {
	return WithModules(ResponseExample{Value: v})
}

// WithRequestExample attaches a request body example. The route must take a
// body of the example's type.
func WithRequestExample(v any) RouteOption {
	return WithModules(RequestExample{Value: v})
}

// WithBodyLimit sets a per-route maximum request body size in bytes.
func WithBodyLimit(maxBytes int64) RouteOption {
	return func(rc *routeConfig) {
		rc.bodyLimit = maxBytes
	}
}

// WithRateLimit gives the route its own rate limiter.
func WithRateLimit(cfg RateLimitConfig) RouteOption {
	return func(rc *routeConfig) {
		rc.rateLimit = &cfg
	}
}

// WithEagerAuth resolves the principal of an authenticated route before the
// handler runs, so the handler never runs without one. It has no effect on
// public routes.
func WithEagerAuth() RouteOption {
	return func(rc *routeConfig) {
		rc.eagerAuth = true
	}
}

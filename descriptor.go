package oapi

import (
	"net/http"

	"github.com/cockroachdb/errors"
)

// AuthRequirement describes the principal an authenticated route resolves.
type AuthRequirement struct {
	// Principal is the witness of the principal type.
	Principal *TypeWitness
	// Security names the scheme the provider authenticates with.
	Security Security
	// Eager reports whether the principal is resolved before the handler runs.
	Eager bool
}

// RouteDescriptor is everything known about a route at registration time.
// It is built once by the registration functions and is read-only afterwards.
type RouteDescriptor struct {
	method   string
	pattern  string
	params   *TypeWitness
	body     *TypeWitness
	response *TypeWitness
	status   int

	exampleResponse any
	exampleRequest  any
	modules         ModuleRegistry
	auth            *AuthRequirement

	bodyLimit int64
	rateLimit *RateLimitConfig
}

// Method returns the HTTP method.
func (d *RouteDescriptor) Method() string { return d.method }

// Pattern returns the full path pattern, including group prefixes.
func (d *RouteDescriptor) Pattern() string { return d.pattern }

// Params returns the witness of the parameter type.
func (d *RouteDescriptor) Params() *TypeWitness { return d.params }

// RequestBody returns the witness of the request body type, or nil when the
// route takes no body.
func (d *RouteDescriptor) RequestBody() *TypeWitness { return d.body }

// Response returns the witness of the response type. It is never nil; routes
// without a response body carry the Void witness.
func (d *RouteDescriptor) Response() *TypeWitness { return d.response }

// Status returns the status code written on success.
func (d *RouteDescriptor) Status() int { return d.status }

// ExampleResponse returns the last response example attached to the route.
func (d *RouteDescriptor) ExampleResponse() any { return d.exampleResponse }

// ExampleRequest returns the last request example attached to the route.
func (d *RouteDescriptor) ExampleRequest() any { return d.exampleRequest }

// Modules returns the module bindings in registration order.
func (d *RouteDescriptor) Modules() []ModuleBinding { return d.modules.Bindings() }

// Auth returns the auth requirement, or nil for public routes.
func (d *RouteDescriptor) Auth() *AuthRequirement { return d.auth }

// BodyLimit returns the maximum request body size, or 0 when unlimited.
func (d *RouteDescriptor) BodyLimit() int64 { return d.bodyLimit }

// RateLimited reports whether the route carries its own rate limiter.
func (d *RouteDescriptor) RateLimited() bool { return d.rateLimit != nil }

// hasParams reports whether the parameter type binds anything.
func (d *RouteDescriptor) hasParams() bool {
	return !d.params.IsVoid() && hasParamTags(d.params.Type)
}

// within returns a copy of d mounted under prefix with the given modules
// bound ahead of the route's own.
func (d *RouteDescriptor) within(prefix string, modules []Module) (*RouteDescriptor, error) {
	nd := *d
	nd.pattern = prefix + d.pattern

	var reg ModuleRegistry
	for _, m := range modules {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	reg.bindings = append(reg.bindings, d.modules.bindings...)
	nd.modules = reg

	nd.exampleResponse, nd.exampleRequest = nil, nil
	for _, b := range reg.bindings {
		if err := nd.bindExample(b.Module); err != nil {
			return nil, err
		}
	}
	return &nd, nil
}

// bindExample type-checks an example module against the route and makes it
// the route's example, replacing any earlier one.
func (d *RouteDescriptor) bindExample(m Module) error {
	switch ex := m.(type) {
	case ResponseExample:
		if !exampleMatches(d.response, ex.Value) {
			return errors.Mark(errors.Newf("response example %T is not %s", ex.Value, d.response), ErrExampleType)
		}
		d.exampleResponse = ex.Value
	case RequestExample:
		if d.body == nil {
			return errors.Mark(errors.Newf("request example %T on a route without a request body", ex.Value), ErrExampleType)
		}
		if !exampleMatches(d.body, ex.Value) {
			return errors.Mark(errors.Newf("request example %T is not %s", ex.Value, d.body), ErrExampleType)
		}
		d.exampleRequest = ex.Value
	}
	return nil
}

func defaultStatus(resp *TypeWitness) int {
	if resp.IsVoid() {
		return http.StatusNoContent
	}
	return http.StatusOK
}

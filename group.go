package oapi

import (
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

// Group is a collection of routes under a shared prefix with shared
// middleware and documentation modules.
type Group struct {
	parent     RouteContext
	prefix     string
	middleware []Middleware
	modules    []Module
}

// GroupOption configures a Group.
type GroupOption func(*Group)

// WithGroupTags adds default tags to all routes registered on the group.
func WithGroupTags(tags ...string) GroupOption {
	return WithGroupModules(Tags(tags))
}

// WithGroupModules attaches modules to every route of the group, ahead of
// the route's own modules.
func WithGroupModules(mods ...Module) GroupOption {
	return func(g *Group) {
		g.modules = append(g.modules, mods...)
	}
}

// WithGroupMiddleware adds middleware to the group.
func WithGroupMiddleware(mw ...Middleware) GroupOption {
	return func(g *Group) {
		g.middleware = append(g.middleware, mw...)
	}
}

// Group creates a new route group with the given prefix and options.
func (r *Router) Group(prefix string, opts ...GroupOption) *Group {
	return newGroup(r, prefix, opts)
}

// Group creates a nested group. Prefixes, modules and middleware accumulate.
func (g *Group) Group(prefix string, opts ...GroupOption) *Group {
	return newGroup(g, prefix, opts)
}

// newGroup trims trailing slashes from prefix, so "/api/" and "/api" mount
// alike. A prefix that does not start with / panics.
func newGroup(parent RouteContext, prefix string, opts []GroupOption) *Group {
	prefix = strings.TrimRight(prefix, "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		panic(registrationError("", prefix, errors.Mark(errors.Newf("group prefix %q must start with /", prefix), ErrInvalidRoute)))
	}
	g := &Group{
		parent: parent,
		prefix: prefix,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register mounts d under the group prefix and hands it to the parent with
// the group middleware applied to h.
func (g *Group) Register(d *RouteDescriptor, h http.Handler) error {
	nd, err := d.within(g.prefix, g.modules)
	if err != nil {
		return err
	}
	for i := len(g.middleware) - 1; i >= 0; i-- {
		h = g.middleware[i](h)
	}
	return g.parent.Register(nd, h)
}

func (g *Group) router() *Router { return g.parent.router() }

package oapi

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Router is the root RouteContext. It holds the host, the OpenAPI document,
// middleware, and configuration, and implements http.Handler.
type Router struct {
	host       Host
	middleware []Middleware

	title    string
	version  string
	desc     string
	servers  []Server
	tagDescs map[string]string

	doc      *Document
	builders []DocumentBuilder

	routes []*RouteDescriptor
	keys   map[string]string

	validator    Validator
	errorHandler ErrorHandler

	encoders []Encoder
	decoders []Decoder
	codecs   *codecRegistry

	logger  *zap.Logger
	metrics *routeMetrics

	mu sync.Mutex
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithTitle sets the API title (used in OpenAPI spec).
func WithTitle(title string) RouterOption {
	return func(r *Router) {
		r.title = title
	}
}

// WithVersion sets the API version (used in OpenAPI spec).
func WithVersion(version string) RouterOption {
	return func(r *Router) {
		r.version = version
	}
}

// WithAPIDescription sets the API description (used in OpenAPI spec).
func WithAPIDescription(desc string) RouterOption {
	return func(r *Router) {
		r.desc = desc
	}
}

// WithValidator sets a global request validator.
func WithValidator(v Validator) RouterOption {
	return func(r *Router) {
		r.validator = v
	}
}

// WithServers sets the OpenAPI servers array.
func WithServers(servers ...Server) RouterOption {
	return func(r *Router) {
		r.servers = servers
	}
}

// WithTagDescriptions sets tag descriptions for the OpenAPI spec.
func WithTagDescriptions(descs map[string]string) RouterOption {
	return func(r *Router) {
		r.tagDescs = descs
	}
}

// ErrorHandler is the error boundary: it writes the response for errors
// returned by handlers.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// WithErrorHandler sets a custom error handler for the router.
func WithErrorHandler(h ErrorHandler) RouterOption {
	return func(r *Router) {
		r.errorHandler = h
	}
}

// WithEncoder registers an additional response encoder.
func WithEncoder(enc Encoder) RouterOption {
	return func(r *Router) {
		r.encoders = append(r.encoders, enc)
	}
}

// WithDecoder registers an additional request body decoder.
func WithDecoder(dec Decoder) RouterOption {
	return func(r *Router) {
		r.decoders = append(r.decoders, dec)
	}
}

// WithLogger sets the logger for registration and error reporting.
func WithLogger(l *zap.Logger) RouterOption {
	return func(r *Router) {
		r.logger = l
	}
}

// WithHost replaces the default ServeMux host.
func WithHost(h Host) RouterOption {
	return func(r *Router) {
		r.host = h
	}
}

// WithDocumentBuilder adds a builder that receives every route after the
// OpenAPI document.
func WithDocumentBuilder(b DocumentBuilder) RouterOption {
	return func(r *Router) {
		r.builders = append(r.builders, b)
	}
}

// WithMetrics instruments every route with request counters and latency
// histograms registered on reg.
func WithMetrics(reg prometheus.Registerer) RouterOption {
	return func(r *Router) {
		r.metrics = newRouteMetrics(reg)
	}
}

// New creates a new Router with the given options.
func New(opts ...RouterOption) *Router {
	r := &Router{
		keys:   make(map[string]string),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.host == nil {
		r.host = NewServeMuxHost()
	}
	r.codecs = newCodecRegistry(r.encoders, r.decoders)
	r.doc = newDocument(OpenAPIInfo{
		Title:       r.title,
		Version:     r.version,
		Description: r.desc,
	}, r.servers, r.tagDescs, r.codecs)
	r.builders = append([]DocumentBuilder{r.doc}, r.builders...)
	return r
}

// Use adds middleware to the router. Middleware is applied in the order added.
func (r *Router) Use(mw ...Middleware) {
	r.middleware = append(r.middleware, mw...)
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	handler := http.Handler(r.host)
	for i := len(r.middleware) - 1; i >= 0; i-- {
		handler = r.middleware[i](handler)
	}
	handler.ServeHTTP(w, req)
}

// ListenAndServe starts an HTTP server on the given address.
// It blocks until the context is cancelled, then shuts down gracefully.
func (r *Router) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Register documents d with every document builder and installs h on the
// host. Nothing is installed when it fails, and staged builders (the OpenAPI
// document among them) record d only once the host has accepted it.
func (r *Router) Register(d *RouteDescriptor, h http.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !strings.HasPrefix(d.Pattern(), "/") {
		return &RegistrationError{
			Method:  d.Method(),
			Pattern: d.Pattern(),
			Err:     errors.Mark(errors.New("pattern must start with /"), ErrInvalidRoute),
		}
	}

	key := d.Method() + " " + normalizePattern(d.Pattern())
	if prev, ok := r.keys[key]; ok {
		return &RegistrationError{
			Method:  d.Method(),
			Pattern: d.Pattern(),
			Err:     errors.Mark(errors.Newf("conflicts with %s", prev), ErrDuplicateRoute),
		}
	}

	if err := checkPathParams(d); err != nil {
		return &RegistrationError{Method: d.Method(), Pattern: d.Pattern(), Err: err}
	}

	var commits []func()
	for _, b := range r.builders {
		if sb, ok := b.(StagedBuilder); ok {
			commit, err := sb.StageRoute(d)
			if err != nil {
				return &RegistrationError{Method: d.Method(), Pattern: d.Pattern(), Err: err}
			}
			commits = append(commits, commit)
			continue
		}
		if err := b.AddRoute(d); err != nil {
			return &RegistrationError{Method: d.Method(), Pattern: d.Pattern(), Err: err}
		}
	}

	if d.rateLimit != nil {
		h = RateLimit(*d.rateLimit)(h)
	}
	if r.metrics != nil {
		h = r.metrics.instrument(d, h)
	}

	if err := r.host.Handle(d.Method(), d.Pattern(), h); err != nil {
		return &RegistrationError{Method: d.Method(), Pattern: d.Pattern(), Err: err}
	}

	for _, commit := range commits {
		commit()
	}
	r.keys[key] = d.Method() + " " + d.Pattern()
	r.routes = append(r.routes, d)

	r.logger.Debug("route registered",
		zap.String("method", d.Method()),
		zap.String("pattern", d.Pattern()),
		zap.Stringer("params", d.Params()),
		zap.Stringer("response", d.Response()),
		zap.Int("status", d.Status()),
		zap.Bool("authenticated", d.Auth() != nil),
	)
	return nil
}

func (r *Router) router() *Router { return r }

// Routes returns the registered route descriptors sorted by path, then method.
func (r *Router) Routes() []*RouteDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	routes := slices.Clone(r.routes)
	slices.SortStableFunc(routes, func(a, b *RouteDescriptor) int {
		if c := strings.Compare(a.Pattern(), b.Pattern()); c != 0 {
			return c
		}
		return strings.Compare(a.Method(), b.Method())
	})
	return routes
}

// Spec returns a snapshot of the OpenAPI document.
func (r *Router) Spec() OpenAPISpec {
	return r.doc.Spec()
}

// Logger returns the router's logger.
func (r *Router) Logger() *zap.Logger { return r.logger }

// handleError is the error boundary for handler errors.
func (r *Router) handleError(w http.ResponseWriter, req *http.Request, err error) {
	status := ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		r.logger.Error("handler failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	if r.errorHandler != nil {
		r.errorHandler(w, req, err)
		return
	}
	writeProblem(w, err)
}

// normalizePattern erases wildcard names, so /items/{id} and /items/{key}
// have the same key.
func normalizePattern(pattern string) string {
	var b strings.Builder
	for {
		i := strings.IndexByte(pattern, '{')
		if i < 0 {
			b.WriteString(pattern)
			return b.String()
		}
		j := strings.IndexByte(pattern[i:], '}')
		if j < 0 {
			b.WriteString(pattern)
			return b.String()
		}
		b.WriteString(pattern[:i])
		name := pattern[i+1 : i+j]
		switch {
		case name == "$":
			b.WriteString("{$}")
		case strings.HasSuffix(name, "..."):
			b.WriteString("{...}")
		default:
			b.WriteString("{}")
		}
		pattern = pattern[i+j+1:]
	}
}

// checkPathParams rejects parameter fields bound to wildcards the pattern
// does not have.
func checkPathParams(d *RouteDescriptor) error {
	if d.Params().IsVoid() {
		return nil
	}
	wildcards := pathWildcards(d.Pattern())
	missing := lo.Filter(pathFieldNames(d.Params().Type), func(name string, _ int) bool {
		return !slices.Contains(wildcards, name)
	})
	if len(missing) > 0 {
		return errors.Mark(
			errors.Newf("path parameters %v are not in the pattern", missing),
			ErrInvalidRoute,
		)
	}
	return nil
}

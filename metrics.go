package oapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// routeMetrics counts and times requests per registered route. Routes are
// labelled by pattern, never by raw path, so label cardinality is bounded by
// the route table.
type routeMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newRouteMetrics(reg prometheus.Registerer) *routeMetrics {
	m := &routeMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oapi",
			Name:      "requests_total",
			Help:      "Requests handled, by route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "oapi",
			Name:      "request_duration_seconds",
			Help:      "Request latency, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *routeMetrics) instrument(d *RouteDescriptor, next http.Handler) http.Handler {
	method, route := d.Method(), d.Pattern()
	observer := m.duration.WithLabelValues(method, route)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		observer.Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
	})
}

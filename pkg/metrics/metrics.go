// Package metrics exposes Prometheus instrumentation for the HTTP API and the expiry sweep.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector registered by the service.
type Metrics struct {
	registry *prometheus.Registry

	Leases          *prometheus.GaugeVec
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Notifications   *prometheus.CounterVec
	WhoisLookups    *prometheus.CounterVec
	SweepDuration   prometheus.Histogram
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Leases: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "leasedesk_leases",
			Help: "Lease scopes by expiry status as of the last sweep",
		}, []string{"scope", "status"}),
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leasedesk_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "code"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leasedesk_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"route"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leasedesk_notifications_total",
			Help: "Expiry alerts by event and result",
		}, []string{"event", "result"}),
		WhoisLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leasedesk_whois_lookups_total",
			Help: "WHOIS lookups by result",
		}, []string{"result"}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "leasedesk_sweep_duration_seconds",
			Help:    "Duration of expiry sweeps",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetLeases replaces the per-scope status gauges with counts.
func (m *Metrics) SetLeases(counts map[string]map[string]int) {
	m.Leases.Reset()
	for scope, byStatus := range counts {
		for status, n := range byStatus {
			m.Leases.WithLabelValues(scope, status).Set(float64(n))
		}
	}
}

// ObserveSweep records the duration of a sweep.
// Call with time.Now() at the start of the sweep.
func (m *Metrics) ObserveSweep(start time.Time) {
	m.SweepDuration.Observe(time.Since(start).Seconds())
}

// IncNotification counts one alert delivery attempt.
func (m *Metrics) IncNotification(event string, ok bool) {
	m.Notifications.WithLabelValues(event, result(ok)).Inc()
}

// IncWhois counts one WHOIS lookup.
func (m *Metrics) IncWhois(ok bool) {
	m.WhoisLookups.WithLabelValues(result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// Middleware records request counts and latency labelled by the matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

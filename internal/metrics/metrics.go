package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes.
const (
	OutcomeCreated       = "created"
	OutcomeUpdated       = "updated"
	OutcomeInvalid       = "invalid"
	OutcomeUnknownSource = "unknown_source"
	OutcomeError         = "error"
)

// Metrics owns a private registry so tests can build as many as they need.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	submissions   *prometheus.CounterVec
	resolutions   *prometheus.CounterVec
	storeDuration *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "urbanfeed",
		Name:      "submissions_total",
		Help:      "News submissions by outcome",
	}, []string{"outcome"})
	m.resolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "urbanfeed",
		Name:      "resolutions_total",
		Help:      "Entity resolution results by target and strategy",
	}, []string{"target", "strategy"})
	m.storeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "urbanfeed",
		Name:      "store_operation_seconds",
		Help:      "Time spent in record store operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
	m.cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "urbanfeed",
		Name:      "directory_cache_lookups_total",
		Help:      "Directory cache lookups by result",
	}, []string{"result"})
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "urbanfeed",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	m.registry.MustRegister(
		m.submissions,
		m.resolutions,
		m.storeDuration,
		m.cacheLookups,
		m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the text exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Resolution(target, strategy string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(target, strategy).Inc()
}

// ObserveStore records the time since start for op.
func (m *Metrics) ObserveStore(op string, start time.Time) {
	if m == nil {
		return
	}
	m.storeDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) HTTPRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

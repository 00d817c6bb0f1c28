package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private Prometheus registry with HTTP and payroll metrics.
type Collector struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rateLimited     prometheus.Counter
	recordsDerived  prometheus.Counter
	duplicates      prometheus.Counter
	rowsDropped     *prometheus.CounterVec
	paymentsMarked  *prometheus.CounterVec
	jobsTotal       *prometheus.CounterVec
}

func New() *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payledger_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payledger_http_request_duration_seconds",
			Help:    "HTTP request duration by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payledger_http_rate_limited_total",
			Help: "Requests rejected with 429.",
		}),
		recordsDerived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payledger_records_derived_total",
			Help: "Payroll records inserted by uploads.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payledger_records_duplicate_total",
			Help: "Uploaded rows discarded as duplicate employee ids.",
		}),
		rowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payledger_rows_dropped_total",
			Help: "Uploaded rows excluded during derivation by reason.",
		}, []string{"reason"}),
		paymentsMarked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payledger_payments_marked_total",
			Help: "Records transitioned to Paid by mode.",
		}, []string{"mode"}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payledger_jobs_total",
			Help: "Background jobs by type and final status.",
		}, []string{"type", "status"}),
	}
	registry.MustRegister(
		c.requestsTotal, c.requestDuration, c.rateLimited,
		c.recordsDerived, c.duplicates, c.rowsDropped, c.paymentsMarked, c.jobsTotal,
		collectors.NewGoCollector(),
	)
	c.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return c
}

func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return c.handler
}

func (c *Collector) Record(route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
	if status == http.StatusTooManyRequests {
		c.rateLimited.Inc()
	}
}

// Middleware records every request under its chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		c.Record(routePattern(r), recorder.status, time.Since(start))
	})
}

func (c *Collector) RecordsDerived(inserted, duplicates int, dropped map[string]int) {
	if c == nil {
		return
	}
	c.recordsDerived.Add(float64(inserted))
	c.duplicates.Add(float64(duplicates))
	for reason, count := range dropped {
		c.rowsDropped.WithLabelValues(reason).Add(float64(count))
	}
}

func (c *Collector) PaymentsMarked(mode string, count int) {
	if c == nil {
		return
	}
	c.paymentsMarked.WithLabelValues(mode).Add(float64(count))
}

func (c *Collector) JobFinished(jobType, status string) {
	if c == nil {
		return
	}
	c.jobsTotal.WithLabelValues(jobType, status).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

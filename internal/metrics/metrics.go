// Package metrics exposes Prometheus counters for the HTTP surface and for the
// prompt workflow.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spellbook"

// Recorder owns a registry and the collectors registered on it.
type Recorder struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	compositions    prometheus.Counter
	handoffs        *prometheus.CounterVec
	imports         *prometheus.CounterVec
	formulaSaves    *prometheus.CounterVec
}

// NewRecorder creates a Recorder with its own registry, including the Go and
// process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		compositions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compositions_total",
			Help:      "Prompts composed from a formula.",
		}),
		handoffs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoffs_total",
			Help:      "Prompts submitted to the image app, by outcome.",
		}, []string{"reason"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seed_imports_total",
			Help:      "Seed import runs, by mode.",
		}, []string{"mode"}),
		formulaSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "formula_saves_total",
			Help:      "Formula editor saves, by outcome.",
		}, []string{"outcome"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.requests,
		r.requestDuration,
		r.compositions,
		r.handoffs,
		r.imports,
		r.formulaSaves,
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Composition counts one composed prompt.
func (r *Recorder) Composition() {
	if r == nil {
		return
	}
	r.compositions.Inc()
}

// Handoff counts one submission with the given reason.
func (r *Recorder) Handoff(reason string) {
	if r == nil {
		return
	}
	r.handoffs.WithLabelValues(reason).Inc()
}

// Import counts one seed import run.
func (r *Recorder) Import(mode string) {
	if r == nil {
		return
	}
	r.imports.WithLabelValues(mode).Inc()
}

// FormulaSave counts one save attempt by outcome: saved, declined, invalid or
// error.
func (r *Recorder) FormulaSave(outcome string) {
	if r == nil {
		return
	}
	r.formulaSaves.WithLabelValues(outcome).Inc()
}

// Middleware records request count and latency. Requests are labelled with the
// matched ServeMux pattern so path parameters do not explode cardinality.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, req)

		route := req.Pattern
		if route == "" {
			route = "unmatched"
		}
		r.requests.WithLabelValues(route, req.Method, strconv.Itoa(sw.status)).Inc()
		r.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Package metrics exposes request and mutation counters for Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns its registry so tests and multiple servers never collide on
// the global default.
type Recorder struct {
	registry *prometheus.Registry

	requestLatency *prometheus.HistogramVec
	mutationCount  *prometheus.CounterVec
	pruneRemoved   prometheus.Counter
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "folio",
			Name:      "http_request_duration_seconds",
			Help:      "Latency of API requests by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		mutationCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "folio",
			Name:      "availability_mutations_total",
			Help:      "Availability and template mutations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		pruneRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "folio",
			Name:      "availability_pruned_records_total",
			Help:      "Explicit records removed by the retention job.",
		}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.requestLatency,
		r.mutationCount,
		r.pruneRemoved,
	)
	return r
}

// ObserveMutation counts one finished mutation.
func (r *Recorder) ObserveMutation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.mutationCount.With(prometheus.Labels{"operation": operation, "outcome": outcome}).Inc()
}

func (r *Recorder) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	r.requestLatency.
		With(prometheus.Labels{"method": method, "route": route, "status": strconv.Itoa(status)}).
		Observe(elapsed.Seconds())
}

func (r *Recorder) ObservePrune(removed int) {
	r.pruneRemoved.Add(float64(removed))
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

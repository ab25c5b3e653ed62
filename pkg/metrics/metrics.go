// Package metrics exposes operational counters for the refresh loop and the
// command interface on a Prometheus registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder counts refresh activity per data source and command latency.
type Recorder struct {
	registry        *prometheus.Registry
	refreshTotal    *prometheus.CounterVec
	refreshFailures *prometheus.CounterVec
	advisory        *prometheus.GaugeVec
	cmdDuration     *prometheus.HistogramVec
}

// New creates a Recorder on its own registry so tests can run in parallel.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		refreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "griddash_refresh_total",
				Help: "Refresh attempts per upstream data source",
			},
			[]string{"source"},
		),
		refreshFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "griddash_refresh_failures_total",
				Help: "Failed refresh attempts per upstream data source",
			},
			[]string{"source"},
		),
		advisory: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "griddash_advisory",
				Help: "Current usage advisory (1 when the color is active)",
			},
			[]string{"color"},
		),
		cmdDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "griddash_command_duration_seconds",
				Help:    "Time spent handling dashboard commands",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),
	}
	reg.MustRegister(r.refreshTotal, r.refreshFailures, r.advisory, r.cmdDuration)
	return r
}

// RefreshAttempt counts one refresh attempt of the named source.
func (r *Recorder) RefreshAttempt(source string) {
	r.refreshTotal.WithLabelValues(source).Inc()
}

// RefreshFailure counts one failed refresh of the named source.
func (r *Recorder) RefreshFailure(source string) {
	r.refreshFailures.WithLabelValues(source).Inc()
}

// SetAdvisory marks the active advisory color.
func (r *Recorder) SetAdvisory(color string) {
	for _, c := range []string{"green", "yellow", "red"} {
		v := 0.0
		if c == color {
			v = 1.0
		}
		r.advisory.WithLabelValues(c).Set(v)
	}
}

// ObserveCommand records how long a dashboard command took.
func (r *Recorder) ObserveCommand(command string, seconds float64) {
	r.cmdDuration.WithLabelValues(command).Observe(seconds)
}

// Handler returns the HTTP handler serving the registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

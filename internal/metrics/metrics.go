// Package metrics records download outcomes for Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder captures download request metrics.
type Recorder interface {
	// ObserveDownload records one download request by outcome (e.g. "issued", "not_found")
	ObserveDownload(outcome string, durationSeconds float64)

	// IncAuthFailure counts rejected tokens by reason code
	IncAuthFailure(code string)
}

// Noop implements Recorder without emitting anything.
type Noop struct{}

func (Noop) ObserveDownload(string, float64) {}
func (Noop) IncAuthFailure(string)           {}

// Prom implements Recorder backed by its own Prometheus registry.
type Prom struct {
	registry     *prometheus.Registry
	downloads    *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	authFailures *prometheus.CounterVec
}

func NewProm(namespace string) *Prom {
	p := &Prom{
		registry: prometheus.NewRegistry(),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_requests_total",
			Help:      "Download link requests by outcome",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_request_duration_seconds",
			Help:      "Download link request latency by outcome",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Rejected identity tokens by reason",
		}, []string{"reason"}),
	}
	p.registry.MustRegister(
		p.downloads,
		p.duration,
		p.authFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prom) ObserveDownload(outcome string, durationSeconds float64) {
	p.downloads.WithLabelValues(outcome).Inc()
	p.duration.WithLabelValues(outcome).Observe(durationSeconds)
}

func (p *Prom) IncAuthFailure(code string) {
	p.authFailures.WithLabelValues(code).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

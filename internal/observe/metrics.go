// Package observe exposes Prometheus metrics for the acquisition
// pipeline, served by the status gateway's /metrics route.
package observe

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	acquisitionsTotal  *prometheus.CounterVec
	acquisitionSeconds *prometheus.HistogramVec
}

// NewMetrics registers the acquisition metrics on the default
// Prometheus registry. Call at most once per process.
func NewMetrics() *Metrics {
	metrics := &Metrics{
		acquisitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tikdrop_acquisitions_total",
				Help: "Total acquisitions by content kind and outcome",
			},
			[]string{"kind", "status"},
		),
		acquisitionSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tikdrop_acquisition_duration_seconds",
				Help:    "Wall-clock duration of acquisitions by content kind",
				Buckets: []float64{1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"kind"},
		),
	}

	prometheus.MustRegister(metrics.acquisitionsTotal, metrics.acquisitionSeconds)
	return metrics
}

// RecordAcquisition observes one completed acquisition. Use
// time.Since(start).Seconds() for the duration.
func (metrics *Metrics) RecordAcquisition(kind string, success bool, seconds float64) {
	status := "success"
	if !success {
		status = "failure"
	}

	metrics.acquisitionsTotal.WithLabelValues(kind, status).Inc()
	metrics.acquisitionSeconds.WithLabelValues(kind).Observe(seconds)
}

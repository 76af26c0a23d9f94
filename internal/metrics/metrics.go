// Package metrics exposes Prometheus instruments for locator operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder counts locator operations by outcome and tracks transferred bytes.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	bytes      *prometheus.CounterVec
}

// New creates a Recorder and registers its collectors with reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "locator_operations_total",
				Help: "Total number of locator operations by mode and outcome.",
			},
			[]string{"op", "mode", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "locator_operation_duration_seconds",
				Help:    "Duration of locator operations.",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"op", "mode"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "locator_downloaded_bytes_total",
				Help: "Bytes written to local storage by successful downloads.",
			},
			[]string{"mode"},
		),
	}

	for _, c := range []prometheus.Collector{r.operations, r.duration, r.bytes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe records one finished operation.
func (r *Recorder) Observe(op, mode, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	if mode == "" {
		mode = "unresolved"
	}
	r.operations.WithLabelValues(op, mode, outcome).Inc()
	r.duration.WithLabelValues(op, mode).Observe(elapsed.Seconds())
}

// AddBytes records bytes written by a download.
func (r *Recorder) AddBytes(mode string, n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.bytes.WithLabelValues(mode).Add(float64(n))
}

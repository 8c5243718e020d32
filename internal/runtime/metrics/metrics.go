// Package metrics exposes Prometheus collectors for the dispatch engine:
// per-schema/method request counts, error counts, and latency.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch tracks per schema/method dispatch statistics for the Store
// and the Provider's request executor.
type Dispatch struct {
	mu sync.Mutex

	requestsTotal   *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	registerer prometheus.Registerer
	registered bool
}

func newDispatchCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pubsubstore",
			Subsystem: "dispatch",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newDispatchHistogramVec(name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pubsubstore",
			Subsystem: "dispatch",
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

// NewDispatch creates a new Dispatch Metrics collector. A nil registerer
// falls back to prometheus.DefaultRegisterer.
func NewDispatch(registerer prometheus.Registerer) *Dispatch {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Dispatch{
		registerer: registerer,
		requestsTotal: newDispatchCounterVec(
			"requests_total",
			"Total number of dispatch requests handled, by schema and method",
			[]string{"schema", "method"},
		),
		errorsTotal: newDispatchCounterVec(
			"errors_total",
			"Total number of dispatch requests that failed, by schema and method",
			[]string{"schema", "method"},
		),
		requestDuration: newDispatchHistogramVec(
			"request_duration_seconds",
			"Dispatch request handling latency in seconds, by schema and method",
			[]float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			[]string{"schema", "method"},
		),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (d *Dispatch) Register() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.registered {
		return nil
	}

	collectors := []prometheus.Collector{d.requestsTotal, d.errorsTotal, d.requestDuration}
	for _, c := range collectors {
		if err := d.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	d.registered = true
	return nil
}

// Observe records the outcome and latency of a single dispatch request.
func (d *Dispatch) Observe(schema, method string, duration time.Duration, err error) {
	d.requestsTotal.WithLabelValues(schema, method).Inc()
	d.requestDuration.WithLabelValues(schema, method).Observe(duration.Seconds())
	if err != nil {
		d.errorsTotal.WithLabelValues(schema, method).Inc()
	}
}

// Reset clears all recorded series. Useful for tests.
func (d *Dispatch) Reset() {
	d.requestsTotal.Reset()
	d.errorsTotal.Reset()
	d.requestDuration.Reset()
}

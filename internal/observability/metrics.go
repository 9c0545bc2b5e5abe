package observability

import (
	"fmt"
	"path"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "heimdallr"

// Metrics holds the client's collectors on a private registry. A nil
// *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	resolutions *prometheus.CounterVec
	launches    *prometheus.CounterVec
	evictions   prometheus.Counter
	rpcRequests *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec
	resolveTime prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "resolver",
				Name:      "resolutions_total",
				Help:      "Resolutions by final state.",
			},
			[]string{"outcome"},
		),
		launches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "launcher",
				Name:      "launches_total",
				Help:      "Host launches by success.",
			},
			[]string{"success"},
		),
		evictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "registry",
				Name:      "evictions_total",
				Help:      "Endpoint descriptors removed after an unavailable call.",
			},
		),
		rpcRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "RPC calls by method and status code.",
			},
			[]string{"method", "code"},
		),
		rpcDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "RPC call duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "code"},
		),
		resolveTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "resolver",
				Name:      "resolution_duration_seconds",
				Help:      "Wall time of one resolution.",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 20, 40, 80},
			},
		),
	}
	m.registry.MustRegister(m.resolutions, m.launches, m.evictions, m.rpcRequests, m.rpcDuration, m.resolveTime)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordResolution(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
	m.resolveTime.Observe(duration.Seconds())
}

func (m *Metrics) RecordLaunch(success bool) {
	if m == nil {
		return
	}
	m.launches.WithLabelValues(fmt.Sprint(success)).Inc()
}

func (m *Metrics) RecordEviction() {
	if m == nil {
		return
	}
	m.evictions.Inc()
}

func (m *Metrics) RecordRPC(fullMethod, code string, duration time.Duration) {
	if m == nil {
		return
	}
	method := path.Base(fullMethod)
	m.rpcRequests.WithLabelValues(method, code).Inc()
	m.rpcDuration.WithLabelValues(method, code).Observe(duration.Seconds())
}

// WriteTextfile dumps the registry for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(filename string) error {
	if m == nil || filename == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(filename, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

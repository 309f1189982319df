// Package metrics exposes Prometheus counters for link and device activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exchange results used as the "result" label.
const (
	ResultOK           = "ok"
	ResultTimeout      = "timeout"
	ResultUnexpected   = "unexpected"
	ResultDisconnected = "disconnected"
	ResultWriteFailed  = "write_failed"
	ResultCancelled    = "cancelled"
)

// NewRegistry creates a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns an HTTP handler serving reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Metrics holds the bench counters. A nil *Metrics is valid and records
// nothing, so drivers can be built without a registry.
type Metrics struct {
	FramesDecoded    *prometheus.CounterVec // labels: variant
	ChecksumFailures *prometheus.CounterVec // labels: variant
	Exchanges        *prometheus.CounterVec // labels: op, result
	SamplesStreamed  prometheus.Counter
}

// New registers and returns the bench counters.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hdrbench",
			Name:      "frames_decoded_total",
			Help:      "Frames decoded with a valid checksum.",
		}, []string{"variant"}),
		ChecksumFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hdrbench",
			Name:      "checksum_failures_total",
			Help:      "Frames discarded because of a checksum mismatch.",
		}, []string{"variant"}),
		Exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hdrbench",
			Name:      "exchanges_total",
			Help:      "Request/response exchanges by operation and result.",
		}, []string{"op", "result"}),
		SamplesStreamed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hdrbench",
			Name:      "samples_streamed_total",
			Help:      "Measurement samples received from the shunt monitor.",
		}),
	}
	reg.MustRegister(m.FramesDecoded, m.ChecksumFailures, m.Exchanges, m.SamplesStreamed)
	return m
}

// FrameDecoded counts one valid frame.
func (m *Metrics) FrameDecoded(variant string) {
	if m == nil {
		return
	}
	m.FramesDecoded.WithLabelValues(variant).Inc()
}

// ChecksumFailure counts one discarded frame.
func (m *Metrics) ChecksumFailure(variant string) {
	if m == nil {
		return
	}
	m.ChecksumFailures.WithLabelValues(variant).Inc()
}

// Exchange counts one exchange outcome.
func (m *Metrics) Exchange(op, result string) {
	if m == nil {
		return
	}
	m.Exchanges.WithLabelValues(op, result).Inc()
}

// SampleStreamed counts one measurement sample.
func (m *Metrics) SampleStreamed() {
	if m == nil {
		return
	}
	m.SamplesStreamed.Inc()
}

package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions prometheus.Gauge
	Edits          *prometheus.CounterVec
	StageLatency   *prometheus.HistogramVec
	FusionWarnings prometheus.Counter
	CodecFallbacks *prometheus.CounterVec
	WSMessages     *prometheus.CounterVec

	stageWindow *editStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of live editing sessions.",
		}),
		Edits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edits_total",
			Help:      "Edit operations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		StageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "edit_stage_latency_ms",
			Help:      "Per-stage edit pipeline latency in milliseconds.",
			Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"stage"}),
		FusionWarnings: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fusion_warnings_total",
			Help:      "Data-quality warnings emitted during token fusion.",
		}),
		CodecFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "codec_fallbacks_total",
			Help:      "Codec operations that degraded to fallback output.",
		}, []string{"op"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket event messages by direction and type.",
		}, []string{"direction", "type"}),
		stageWindow: newEditStageWindow(256),
	}
}

// ObserveStage records a pipeline stage latency in both the Prometheus
// histogram and the rolling window behind the perf endpoint.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	ms := float64(d.Milliseconds())
	m.StageLatency.WithLabelValues(stage).Observe(ms)
	m.stageWindow.Observe(stage, ms)
}

// ObserveIndicator bumps a named counter in the rolling perf window.
func (m *Metrics) ObserveIndicator(name string) {
	m.stageWindow.ObserveIndicator(name)
}

// StageSnapshot summarizes the recent per-stage latency window.
func (m *Metrics) StageSnapshot() EditStageSnapshot {
	return m.stageWindow.Snapshot()
}

// ResetStageWindow clears the rolling window without touching the
// cumulative Prometheus series.
func (m *Metrics) ResetStageWindow() {
	m.stageWindow.Reset()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

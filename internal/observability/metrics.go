package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveTurns       prometheus.Gauge
	TurnsTotal        *prometheus.CounterVec
	NodeFailures      *prometheus.CounterVec
	TurnLatency       prometheus.Histogram
	RetrievalAttempts prometheus.Histogram

	// Stages keeps a rolling in-process window of per-node latencies for the
	// debug endpoint; Prometheus histograms lose the per-node breakdown at
	// this cardinality.
	Stages *NodeStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveTurns: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_turns",
			Help:      "Number of turns currently executing.",
		}),
		TurnsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Completed turns by outcome.",
		}, []string{"outcome"}),
		NodeFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_failures_total",
			Help:      "Node handler failures by node.",
		}, []string{"node"}),
		TurnLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_seconds",
			Help:      "End-to-end turn latency in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}),
		RetrievalAttempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_attempts",
			Help:      "Retrieval attempts consumed per turn.",
			Buckets:   []float64{0, 1, 2, 3},
		}),
		Stages: NewNodeStageWindow(0),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Process-wide collectors. Package-level so repeated construction in tests
// does not register twice.
var (
	storeOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gmq_store_operations_total",
		Help: "KV store operations by kind and result",
	}, []string{"op", "result"})

	pipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gmq_store_pipeline_duration_seconds",
		Help:    "Latency of atomic KV pipelines",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
	})

	counterValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gmq_stats_counter",
		Help: "Last observed value of the statistics counters",
	}, []string{"counter"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gmq_http_request_duration_seconds",
		Help:    "Latency of ops HTTP requests by route pattern and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})
)

// Metrics exposes the store, statistics and ops HTTP collectors.
type Metrics struct{}

// New returns the process-wide metrics handle.
func New() *Metrics {
	return &Metrics{}
}

// ObserveStoreOp counts a direct KV operation.
func (m *Metrics) ObserveStoreOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	storeOps.WithLabelValues(op, result).Inc()
}

// ObservePipeline records the duration of a pipeline in seconds.
func (m *Metrics) ObservePipeline(seconds float64) {
	pipelineDuration.Observe(seconds)
}

// SetCounter publishes a statistics counter value.
func (m *Metrics) SetCounter(name string, value int64) {
	counterValue.WithLabelValues(name).Set(float64(value))
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route string, status int, seconds float64) {
	httpDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(seconds)
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

// Compiler Prometheus metrics.
var (
	CompileRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "compile_requests_total",
			Help:      "Total number of compile requests",
		},
		[]string{"status"}, // "ok" or the error kind
	)

	CompileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "compile_duration_seconds",
			Help:      "Compile duration in seconds, query encoding excluded",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	CompiledClausesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "compiled_clauses_total",
			Help:      "Total number of emitted query clauses",
		},
		[]string{"kind"}, // "knn" / "multi_match" / "filter"
	)
)

var compileMetricsRegistered bool

// RegisterCompileMetrics registers Prometheus compiler metrics. Must be called once from main.
func RegisterCompileMetrics() {
	if compileMetricsRegistered {
		return
	}
	prometheus.MustRegister(CompileRequestsTotal)
	prometheus.MustRegister(CompileDuration)
	prometheus.MustRegister(CompiledClausesTotal)
	compileMetricsRegistered = true
}

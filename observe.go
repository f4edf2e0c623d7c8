package hybridq

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// operation names a Compiler method in logs and metric labels.
type operation string

const (
	opCompile operation = "compile"
	opMapping operation = "mapping"
	opPing    operation = "ping"
)

// resultOK labels a successful operation; failures carry their error class.
const resultOK = "ok"

// sdkMetrics holds prometheus metrics registered for the library.
type sdkMetrics struct {
	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	encoderTokens prometheus.Counter
	knnClauses    prometheus.Histogram
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hybridq",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "Compiler operations by operation and result (ok or error class).",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hybridq",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "Compiler operation duration in seconds, query encoding included.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"operation"}),
		encoderTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hybridq",
			Subsystem: "sdk",
			Name:      "encoder_tokens_total",
			Help:      "Provider tokens spent encoding query fields.",
		}),
		knnClauses: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hybridq",
			Subsystem: "sdk",
			Name:      "knn_clauses",
			Help:      "knn clauses per compiled query.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32},
		}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.encoderTokens); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.knnClauses); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("hybridq: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("hybridq: register metric: %w", err)
	}
	return nil
}

// errorClass maps an operation error to a bounded label value. Specific
// sentinels come first: compile errors also wrap ErrInvalidRequest.
func errorClass(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, ErrInvalidFilterValue):
		return "invalid_filter_value"
	case errors.Is(err, ErrUnresolvableEncoder):
		return "unresolvable_encoder"
	case errors.Is(err, ErrMalformedDocument):
		return "malformed_document"
	case errors.Is(err, ErrVectorDimMismatch):
		return "vector_dim_mismatch"
	case errors.Is(err, ErrEmptyScoreCalculation):
		return "empty_score_calculation"
	case errors.Is(err, ErrInvalidSchema):
		return "invalid_schema"
	case errors.Is(err, ErrEncoderNotConfigured):
		return "encoder_not_configured"
	case errors.Is(err, ErrEncoderProviderError):
		return "encoder_provider_error"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return "error"
	}
}

// observer provides logging and metrics for compiler operations.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	var m *sdkMetrics
	if reg != nil {
		var err error
		m, err = newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
	}
	return &observer{logger: logger, metrics: m}, nil
}

func (o *observer) observe(op operation, start time.Time, err error, attrs ...any) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	result := errorClass(err)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(string(op), result).Inc()
		o.metrics.duration.WithLabelValues(string(op)).Observe(dur.Seconds())
	}

	if o.logger != nil {
		args := append([]any{"op", string(op), "duration", dur}, attrs...)
		if err != nil {
			o.logger.Warn("hybridq operation failed", append(args, "result", result, "error", err)...)
		} else {
			o.logger.Debug("hybridq operation completed", args...)
		}
	}
}

// compiled records per-result figures of a successful Compile.
func (o *observer) compiled(res Result) {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.encoderTokens.Add(float64(res.EncoderTokens))
	for _, q := range res.Queries {
		o.metrics.knnClauses.Observe(float64(q.KNNClauses))
	}
}

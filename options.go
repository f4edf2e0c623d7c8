package hybridq

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/hybridq/internal/domain/search/filter"
	compileuc "github.com/kailas-cloud/hybridq/internal/usecase/compile"
)

// Option configures the Compiler.
type Option interface {
	apply(*compilerConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*compilerConfig)

func (f optionFunc) apply(c *compilerConfig) { f(c) }

type boundEncoder struct {
	spec    EncoderSpec
	encoder Encoder
}

type compilerConfig struct {
	schema   Schema
	encoders []boundEncoder

	driver   string // "valkey" or "redis"
	addrs    []string
	password string
	cacheTTL time.Duration

	query    compileuc.Options
	poolSize int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithSchema sets the index schema queries are compiled against. Required.
func WithSchema(s Schema) Option {
	return optionFunc(func(c *compilerConfig) {
		c.schema = s
	})
}

// WithEncoder binds a live encoder to an encoder of the schema.
// Query fields without a precomputed embedding are encoded on demand.
func WithEncoder(spec EncoderSpec, enc Encoder) Option {
	return optionFunc(func(c *compilerConfig) {
		c.encoders = append(c.encoders, boundEncoder{spec: spec, encoder: enc})
	})
}

// WithValkey caches query embeddings in a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *compilerConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis caches query embeddings in a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *compilerConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithCacheTTL sets the lifetime of cached query embeddings. Zero keeps them forever.
func WithCacheTTL(ttl time.Duration) Option {
	return optionFunc(func(c *compilerConfig) {
		c.cacheTTL = ttl
	})
}

// WithK sets the number of neighbours per knn clause.
func WithK(k int) Option {
	return optionFunc(func(c *compilerConfig) {
		c.query.K = k
	})
}

// WithNumCandidates sets the knn candidate pool size.
func WithNumCandidates(n int) Option {
	return optionFunc(func(c *compilerConfig) {
		c.query.NumCandidates = n
	})
}

// WithLexicalBoost sets the field boost of the generated BM25 clause.
func WithLexicalBoost(boost float64) Option {
	return optionFunc(func(c *compilerConfig) {
		c.query.LexicalBoost = &boost
	})
}

// WithFieldTemplate sets the engine vector field template, e.g. "{field}-{encoder}.embedding".
func WithFieldTemplate(tmpl string) Option {
	return optionFunc(func(c *compilerConfig) {
		c.query.FieldTemplate = tmpl
	})
}

// WithTextSearchSuffix sets the text sub-field used for equality filters.
func WithTextSearchSuffix(suffix string) Option {
	return optionFunc(func(c *compilerConfig) {
		c.query.TextSearchSuffix = suffix
	})
}

// WithRejectEmptyCalculation fails requests whose query fields match nothing in the schema.
func WithRejectEmptyCalculation() Option {
	return optionFunc(func(c *compilerConfig) {
		c.query.EmptyCalculation = compileuc.EmptyReject
	})
}

// WithCombinedFilterConflicts keeps both a range and a text or list value on the same path.
func WithCombinedFilterConflicts() Option {
	return optionFunc(func(c *compilerConfig) {
		c.query.FilterConflict = filter.ConflictCombine
	})
}

// WithPoolSize bounds concurrent encoder batches.
func WithPoolSize(n int) Option {
	return optionFunc(func(c *compilerConfig) {
		c.poolSize = n
	})
}

// WithLogger enables structured logging of compiler operations.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *compilerConfig) {
		c.logger = l
	})
}

// WithMetrics registers compiler operation metrics with the given registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return optionFunc(func(c *compilerConfig) {
		c.metricsReg = reg
	})
}

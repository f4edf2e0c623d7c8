package compile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridq/internal/db/elastic"
	"github.com/kailas-cloud/hybridq/internal/domain"
	"github.com/kailas-cloud/hybridq/internal/domain/document"
	"github.com/kailas-cloud/hybridq/internal/domain/mapping"
	"github.com/kailas-cloud/hybridq/internal/domain/search/filter"
	"github.com/kailas-cloud/hybridq/internal/domain/search/request"
	"github.com/kailas-cloud/hybridq/internal/logger"
	"github.com/kailas-cloud/hybridq/internal/metrics"
)

// Service compiles search requests against one index schema.
type Service struct {
	set     mapping.Set
	opts    Options
	encoder QueryEncoder
}

// New creates a compile service. encoder can be nil: documents must then carry their embeddings.
func New(set mapping.Set, opts Options, encoder QueryEncoder) (*Service, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	return &Service{set: set, opts: opts.withDefaults(), encoder: encoder}, nil
}

// Schema returns the index schema the service compiles against.
func (s *Service) Schema() mapping.Set { return s.set }

// Options returns the effective options.
func (s *Service) Options() Options { return s.opts }

// Compile flattens the query documents, fills missing embeddings, derives the score
// calculation, compiles the filters and assembles one query per document.
// Any error aborts the whole request.
func (s *Service) Compile(ctx context.Context, req *request.Request) ([]Compiled, error) {
	ctx, log := logger.With(ctx, zap.Int("documents", len(req.Documents())))

	docs := make([]document.Document, len(req.Documents()))
	for i, d := range req.Documents() {
		flat, err := document.Flatten(d)
		if err != nil {
			return nil, s.fail(log, fmt.Errorf("document %q: %w", d.ID, err))
		}
		docs[i] = flat
	}

	if s.encoder != nil {
		encoded, err := s.encoder.Encode(ctx, docs)
		if err != nil {
			return nil, s.fail(log, fmt.Errorf("encode query: %w", err))
		}
		docs = encoded
	}

	start := time.Now()
	out, err := s.compileFlat(docs, req)
	metrics.CompileDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, s.fail(log, err)
	}

	metrics.CompileRequestsTotal.WithLabelValues("ok").Inc()
	var knn, should int
	for _, c := range out {
		knn += len(c.Query.KNN)
		should += len(c.Query.Query.Bool.Should)
	}
	metrics.CompiledClausesTotal.WithLabelValues("knn").Add(float64(knn))
	metrics.CompiledClausesTotal.WithLabelValues("multi_match").Add(float64(should))

	log.Debug("Compiled query",
		zap.Int("knn_clauses", knn),
		zap.Int("should_clauses", should),
		zap.Bool("breakdown", req.Breakdown()),
	)
	return out, nil
}

func (s *Service) compileFlat(docs []document.Document, req *request.Request) ([]Compiled, error) {
	calc, err := Generate(
		unionFields(docs),
		s.set.EncoderToFields(),
		Lexical{Field: s.set.LexicalField(), Boost: *s.opts.LexicalBoost},
		req.Calculation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	expr, err := filter.Parse(req.Filters(), s.opts.FilterConflict)
	if err != nil {
		return nil, err
	}
	clauses := elastic.BuildFilter(expr, s.opts.TextSearchSuffix)
	metrics.CompiledClausesTotal.WithLabelValues("filter").Add(float64(len(clauses)))

	return Build(docs, calc, s.set, clauses, req.Breakdown(), s.opts.limited(req.Limit()))
}

func (s *Service) fail(log *zap.Logger, err error) error {
	metrics.CompileRequestsTotal.WithLabelValues(errorKind(err)).Inc()
	log.Warn("Compile failed", zap.Error(err))
	return err
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidFilterValue):
		return "invalid_filter_value"
	case errors.Is(err, domain.ErrUnresolvableEncoder):
		return "unresolvable_encoder"
	case errors.Is(err, domain.ErrMalformedDocument):
		return "malformed_document"
	case errors.Is(err, domain.ErrVectorDimMismatch):
		return "vector_dim_mismatch"
	case errors.Is(err, domain.ErrEmptyScoreCalculation):
		return "empty_score_calculation"
	case errors.Is(err, domain.ErrEncoderNotConfigured), errors.Is(err, domain.ErrEncoderProviderError):
		return "encoder"
	default:
		return "internal"
	}
}

// TagType is the engine type of a filterable tag.
type TagType string

// Tag types.
const (
	TagKeyword TagType = "keyword"
	TagNumeric TagType = "numeric"
)

// Tag is a filterable document attribute. Path uses filter notation (tags__color) or dots.
type Tag struct {
	Path string
	Type TagType
}

// IndexMapping renders the engine index mapping of the schema: one dense_vector per
// (index field, encoder), the lexical text field and the filterable tags.
func (s *Service) IndexMapping(name string, tags []Tag) (*elastic.IndexDefinition, error) {
	b := elastic.NewIndex(name)
	if lf := s.set.LexicalField(); lf != "" {
		b.Text(lf)
	}
	for _, m := range s.set.Mappings() {
		for _, f := range m.Fields() {
			b.DenseVector(s.opts.EngineField(f, m.Encoder()), m.Dimension(), elastic.SimilarityCosine)
		}
	}
	for _, t := range tags {
		p, err := filter.ParsePath(t.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: tag: %w", domain.ErrInvalidSchema, err)
		}
		switch t.Type {
		case TagNumeric:
			b.Numeric(p.Dotted())
		case TagKeyword, "":
			b.KeywordWithText(p.Dotted(), s.opts.TextSearchSuffix)
		default:
			return nil, fmt.Errorf("%w: tag %q has unknown type %q", domain.ErrInvalidSchema, t.Path, t.Type)
		}
	}

	def, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidSchema, err)
	}
	return def, nil
}

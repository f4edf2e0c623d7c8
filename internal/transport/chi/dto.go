package chi

import (
	"fmt"

	"github.com/kailas-cloud/hybridq/internal/db/elastic"
	"github.com/kailas-cloud/hybridq/internal/domain"
	"github.com/kailas-cloud/hybridq/internal/domain/document"
	"github.com/kailas-cloud/hybridq/internal/domain/modality"
	"github.com/kailas-cloud/hybridq/internal/domain/search/breakdown"
	"github.com/kailas-cloud/hybridq/internal/domain/search/request"
	"github.com/kailas-cloud/hybridq/internal/domain/search/score"
	compileuc "github.com/kailas-cloud/hybridq/internal/usecase/compile"
)

// ErrorCode is the machine-readable error code of an ErrorResponse.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest            ErrorCode = "bad_request"
	ErrorCodeValidationFailed      ErrorCode = "validation_failed"
	ErrorCodeInvalidFilterValue    ErrorCode = "invalid_filter_value"
	ErrorCodeUnresolvableEncoder   ErrorCode = "unresolvable_encoder"
	ErrorCodeMalformedDocument     ErrorCode = "malformed_document"
	ErrorCodeVectorDimMismatch     ErrorCode = "vector_dim_mismatch"
	ErrorCodeEmptyScoreCalculation ErrorCode = "empty_score_calculation"
	ErrorCodeInvalidSchema         ErrorCode = "invalid_schema"
	ErrorCodeEncoderNotConfigured  ErrorCode = "encoder_not_configured"
	ErrorCodeEncoderProviderError  ErrorCode = "encoder_provider_error"
	ErrorCodeRequestTooLarge       ErrorCode = "request_too_large"
	ErrorCodeInternalError         ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Key     string    `json:"key,omitempty"`
}

// EmbeddingDTO is a precomputed query vector.
type EmbeddingDTO struct {
	Encoder string    `json:"encoder"`
	Vector  []float32 `json:"vector"`
}

// ChunkDTO is a leaf or composite chunk of a query document.
type ChunkDTO struct {
	Field      string         `json:"field,omitempty"`
	Modality   string         `json:"modality,omitempty"` // default: text
	Text       string         `json:"text,omitempty"`
	URI        string         `json:"uri,omitempty"`
	Embeddings []EmbeddingDTO `json:"embeddings,omitempty"`
	Chunks     []ChunkDTO     `json:"chunks,omitempty"`
}

// DocumentDTO is a query document.
type DocumentDTO struct {
	ID     string     `json:"id,omitempty"`
	Chunks []ChunkDTO `json:"chunks"`
}

// ScoreEntryDTO is one entry of an explicit score calculation.
// Weight is the similarity weight of vector entries and the boost of lexical ones.
type ScoreEntryDTO struct {
	Type       score.Kind `json:"type"`
	QueryField string     `json:"query_field"`
	IndexField string     `json:"index_field"`
	Encoder    string     `json:"encoder,omitempty"`
	Weight     *float64   `json:"weight,omitempty"`
}

// CompileRequest is the body of POST /v1/compile.
type CompileRequest struct {
	Documents []DocumentDTO  `json:"documents"`
	Filters   map[string]any `json:"filters,omitempty"`
	// ScoreCalculation replaces the generated calculation when present, even if empty.
	ScoreCalculation *[]ScoreEntryDTO `json:"score_calculation,omitempty"`
	ScoreBreakdown   bool             `json:"score_breakdown,omitempty"`
	Limit            int              `json:"limit,omitempty"`
}

// CompiledQueryDTO is the engine query of one query document.
type CompiledQueryDTO struct {
	DocumentID     string               `json:"document_id"`
	Query          elastic.Query        `json:"query"`
	ScoreBreakdown *breakdown.Breakdown `json:"score_breakdown,omitempty"`
}

// CompileResponse is the body of a successful POST /v1/compile.
type CompileResponse struct {
	Queries []CompiledQueryDTO `json:"queries"`
}

// TagDTO declares a filterable tag of the index mapping.
type TagDTO struct {
	Path string `json:"path"`
	Type string `json:"type,omitempty"`
}

// MappingRequest is the optional body of POST /v1/mapping.
type MappingRequest struct {
	IndexName string    `json:"index_name,omitempty"`
	Tags      *[]TagDTO `json:"tags,omitempty"`
}

// MappingResponse is the index creation body for the engine.
type MappingResponse struct {
	Index string         `json:"index"`
	Body  map[string]any `json:"body"`
}

// HealthResponse reports component health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ToDomain validates the request. breakdown forces the score breakdown on.
// Structural errors wrap domain.ErrInvalidRequest, bad chunks domain.ErrMalformedDocument.
func (req CompileRequest) ToDomain(breakdown bool) (request.Request, error) {
	docs, err := documentsFromDTO(req.Documents)
	if err != nil {
		return request.Request{}, err
	}
	calc, err := calculationFromDTO(req.ScoreCalculation)
	if err != nil {
		return request.Request{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	out, err := request.New(docs, req.Filters, calc, req.ScoreBreakdown || breakdown, req.Limit)
	if err != nil {
		return request.Request{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	return out, nil
}

func documentsFromDTO(in []DocumentDTO) ([]document.Document, error) {
	out := make([]document.Document, len(in))
	for i, d := range in {
		chunks, err := chunksFromDTO(d.Chunks, fmt.Sprintf("documents[%d]", i))
		if err != nil {
			return nil, err
		}
		out[i] = document.Document{ID: d.ID, Chunks: chunks}
	}
	return out, nil
}

func chunksFromDTO(in []ChunkDTO, path string) ([]*document.Chunk, error) {
	out := make([]*document.Chunk, len(in))
	for i, c := range in {
		where := fmt.Sprintf("%s.chunks[%d]", path, i)

		m := modality.Modality(c.Modality)
		if m == "" {
			m = modality.Text
		}
		if !m.IsValid() {
			return nil, fmt.Errorf("%w: %s: unknown modality %q", domain.ErrMalformedDocument, where, c.Modality)
		}

		var embeddings []document.Embedding
		for _, e := range c.Embeddings {
			if e.Encoder == "" {
				return nil, fmt.Errorf("%w: %s: embedding without encoder", domain.ErrMalformedDocument, where)
			}
			embeddings = append(embeddings, document.Embedding{Encoder: e.Encoder, Vector: e.Vector})
		}

		sub, err := chunksFromDTO(c.Chunks, where)
		if err != nil {
			return nil, err
		}
		if len(sub) == 0 {
			sub = nil
		}

		out[i] = &document.Chunk{
			Field:      c.Field,
			Modality:   m,
			Text:       c.Text,
			URI:        c.URI,
			Embeddings: embeddings,
			Chunks:     sub,
		}
	}
	return out, nil
}

func calculationFromDTO(in *[]ScoreEntryDTO) (score.Calculation, error) {
	if in == nil {
		return score.Calculation{}, nil
	}
	entries := make([]score.Entry, 0, len(*in))
	for i, e := range *in {
		var (
			entry score.Entry
			err   error
		)
		switch e.Type {
		case score.KindVector:
			w := score.DefaultWeight
			if e.Weight != nil {
				w = *e.Weight
			}
			entry, err = score.NewVector(e.QueryField, e.IndexField, e.Encoder, w)
		case score.KindLexical:
			b := score.DefaultLexicalBoost
			if e.Weight != nil {
				b = *e.Weight
			}
			entry, err = score.NewLexical(e.QueryField, e.IndexField, b)
		default:
			err = fmt.Errorf("unknown type %q", e.Type)
		}
		if err != nil {
			return score.Calculation{}, fmt.Errorf("score_calculation[%d]: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return score.Explicit(entries...), nil
}

func tagsFromDTO(in []TagDTO) []compileuc.Tag {
	out := make([]compileuc.Tag, len(in))
	for i, t := range in {
		out[i] = compileuc.Tag{Path: t.Path, Type: compileuc.TagType(t.Type)}
	}
	return out
}

// NewCompileResponse converts compiled queries to the response body.
func NewCompileResponse(in []compileuc.Compiled) CompileResponse {
	out := CompileResponse{Queries: make([]CompiledQueryDTO, len(in))}
	for i, c := range in {
		out.Queries[i] = CompiledQueryDTO{
			DocumentID:     c.DocumentID,
			Query:          c.Query,
			ScoreBreakdown: c.Breakdown,
		}
	}
	return out
}

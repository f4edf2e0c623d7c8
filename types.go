package hybridq

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/hybridq/internal/domain"
	"github.com/kailas-cloud/hybridq/internal/domain/document"
	"github.com/kailas-cloud/hybridq/internal/domain/modality"
	"github.com/kailas-cloud/hybridq/internal/domain/search/breakdown"
	"github.com/kailas-cloud/hybridq/internal/domain/search/score"
	compileuc "github.com/kailas-cloud/hybridq/internal/usecase/compile"
)

// Modality is the content kind of a chunk.
type Modality string

// Supported modalities.
const (
	Text  Modality = "text"
	Image Modality = "image"
	Audio Modality = "audio"
	Video Modality = "video"
)

// Embedding is a precomputed query vector.
type Embedding struct {
	Encoder string
	Vector  []float32
}

// Chunk is a leaf or composite element of a query document.
// Leaves without a Field inherit the field of their nearest named ancestor.
type Chunk struct {
	Field string
	// Modality defaults to Text.
	Modality   Modality
	Text       string
	URI        string
	Embeddings []Embedding
	Chunks     []Chunk
}

// Document is a query document.
type Document struct {
	ID     string
	Chunks []Chunk
}

// ScoreKind is the kind of a score calculation entry.
type ScoreKind string

// Score calculation entry kinds.
const (
	VectorSimilarity ScoreKind = ScoreKind(score.KindVector)
	LexicalMatch     ScoreKind = ScoreKind(score.KindLexical)
)

// ScoreEntry is one entry of an explicit score calculation.
// Weight is the similarity weight of vector entries and the boost of lexical ones;
// nil picks the default (1 and 10), an explicit zero is kept.
type ScoreEntry struct {
	Kind       ScoreKind
	QueryField string
	IndexField string
	Encoder    string
	Weight     *float64
}

// Weight returns a pointer for ScoreEntry.Weight.
func Weight(w float64) *float64 { return &w }

// Request is a compile request.
type Request struct {
	Documents []Document
	// Filters maps field paths (tags__color) to a string, a list or a range mapping.
	Filters map[string]any
	// ScoreCalculation replaces the generated calculation when non-nil, even if empty.
	ScoreCalculation []ScoreEntry
	ScoreBreakdown   bool
	// Limit overrides k when positive.
	Limit int
}

// Breakdown lists the clauses contributing to a compiled query's score.
type Breakdown = breakdown.Breakdown

// Decomposition is a hit's score split into weighted clause contributions.
type Decomposition = breakdown.Decomposition

// Contribution is one clause's share of a hit's score.
type Contribution = breakdown.Contribution

// Query is the engine query compiled for one document.
type Query struct {
	DocumentID string
	// Body is the search request body: knn clauses plus the BM25 bool query.
	Body json.RawMessage
	// KNNClauses counts the knn clauses in Body.
	KNNClauses int
	// Breakdown is nil unless requested.
	Breakdown *Breakdown
}

// Decompose explains the score of one hit returned for this query. raw holds the
// unweighted clause scores (vector similarity or BM25, as the engine's explain
// output reports them) aligned with Breakdown.Entries.
func (q Query) Decompose(raw []float64) (Decomposition, error) {
	if q.Breakdown == nil {
		return Decomposition{}, fmt.Errorf("hybridq: query %q was compiled without a score breakdown", q.DocumentID)
	}
	d, err := q.Breakdown.Decompose(raw)
	if err != nil {
		return Decomposition{}, fmt.Errorf("hybridq: decompose %q: %w", q.DocumentID, err)
	}
	return d, nil
}

// Result is the outcome of a compile call.
type Result struct {
	Queries []Query
	// EncoderTokens counts tokens spent encoding missing query vectors.
	EncoderTokens int
}

func toInternalDocuments(in []Document) ([]document.Document, error) {
	out := make([]document.Document, len(in))
	for i, d := range in {
		chunks, err := toInternalChunks(d.Chunks)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		out[i] = document.Document{ID: d.ID, Chunks: chunks}
	}
	return out, nil
}

func toInternalChunks(in []Chunk) ([]*document.Chunk, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]*document.Chunk, len(in))
	for i, c := range in {
		m := modality.Modality(c.Modality)
		if m == "" {
			m = modality.Text
		}
		if !m.IsValid() {
			return nil, fmt.Errorf("%w: chunk %d: unknown modality %q", domain.ErrMalformedDocument, i, c.Modality)
		}
		sub, err := toInternalChunks(c.Chunks)
		if err != nil {
			return nil, err
		}
		var embeddings []document.Embedding
		for _, e := range c.Embeddings {
			embeddings = append(embeddings, document.Embedding{Encoder: e.Encoder, Vector: e.Vector})
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

func toInternalCalculation(in []ScoreEntry) (score.Calculation, error) {
	if in == nil {
		return score.Calculation{}, nil
	}
	entries := make([]score.Entry, 0, len(in))
	for i, e := range in {
		var (
			entry score.Entry
			err   error
		)
		switch e.Kind {
		case VectorSimilarity:
			w := score.DefaultWeight
			if e.Weight != nil {
				w = *e.Weight
			}
			entry, err = score.NewVector(e.QueryField, e.IndexField, e.Encoder, w)
		case LexicalMatch:
			b := score.DefaultLexicalBoost
			if e.Weight != nil {
				b = *e.Weight
			}
			entry, err = score.NewLexical(e.QueryField, e.IndexField, b)
		default:
			err = fmt.Errorf("unknown kind %q", e.Kind)
		}
		if err != nil {
			return score.Calculation{}, fmt.Errorf("%w: score entry %d: %w", domain.ErrInvalidRequest, i, err)
		}
		entries = append(entries, entry)
	}
	return score.Explicit(entries...), nil
}

func fromCompiled(in []compileuc.Compiled) ([]Query, error) {
	out := make([]Query, len(in))
	for i, c := range in {
		body, err := json.Marshal(c.Query)
		if err != nil {
			return nil, fmt.Errorf("marshal query %q: %w", c.DocumentID, err)
		}
		out[i] = Query{DocumentID: c.DocumentID, Body: body, KNNClauses: len(c.Query.KNN), Breakdown: c.Breakdown}
	}
	return out, nil
}

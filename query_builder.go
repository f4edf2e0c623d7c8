package hybridq

import (
	"context"
	"errors"
	"fmt"
)

// QueryBuilder is a fluent builder for a single query document.
type QueryBuilder struct {
	c *Compiler

	id      string
	chunks  []Chunk
	filters map[string]any
	calc    []ScoreEntry

	breakdown bool
	limit     int
}

// Query starts a single-document query.
func (c *Compiler) Query() *QueryBuilder {
	return &QueryBuilder{c: c}
}

// ID sets the document id reported with the compiled query.
func (b *QueryBuilder) ID(id string) *QueryBuilder {
	b.id = id
	return b
}

// Text adds a text chunk. It is encoded on demand and matched with BM25.
func (b *QueryBuilder) Text(field, text string) *QueryBuilder {
	b.chunks = append(b.chunks, Chunk{Field: field, Modality: Text, Text: text})
	return b
}

// Media adds an image, audio or video chunk referenced by URI.
func (b *QueryBuilder) Media(field string, m Modality, uri string) *QueryBuilder {
	b.chunks = append(b.chunks, Chunk{Field: field, Modality: m, URI: uri})
	return b
}

// Vector adds a chunk carrying a precomputed embedding only.
func (b *QueryBuilder) Vector(field, encoder string, vec []float32) *QueryBuilder {
	b.chunks = append(b.chunks, Chunk{
		Field:      field,
		Modality:   Text,
		Embeddings: []Embedding{{Encoder: encoder, Vector: vec}},
	})
	return b
}

// Where adds an equality filter.
func (b *QueryBuilder) Where(path, value string) *QueryBuilder {
	return b.filter(path, value)
}

// In adds a categorical filter matching any of values.
func (b *QueryBuilder) In(path string, values ...any) *QueryBuilder {
	return b.filter(path, values)
}

// Range adds a numeric range filter. bounds keys are gt, gte, lt and lte.
func (b *QueryBuilder) Range(path string, bounds map[string]float64) *QueryBuilder {
	return b.filter(path, bounds)
}

func (b *QueryBuilder) filter(path string, v any) *QueryBuilder {
	if b.filters == nil {
		b.filters = make(map[string]any)
	}
	b.filters[path] = v
	return b
}

// Score replaces the generated score calculation.
func (b *QueryBuilder) Score(entries ...ScoreEntry) *QueryBuilder {
	b.calc = append([]ScoreEntry{}, entries...)
	return b
}

// WithBreakdown attaches the score breakdown to the result.
func (b *QueryBuilder) WithBreakdown() *QueryBuilder {
	b.breakdown = true
	return b
}

// Limit sets k of every knn clause.
func (b *QueryBuilder) Limit(n int) *QueryBuilder {
	b.limit = n
	return b
}

// Do compiles the query.
func (b *QueryBuilder) Do(ctx context.Context) (Query, error) {
	if b.c == nil {
		return Query{}, errors.New("hybridq: query builder has no compiler")
	}
	res, err := b.c.Compile(ctx, Request{
		Documents:        []Document{{ID: b.id, Chunks: b.chunks}},
		Filters:          b.filters,
		ScoreCalculation: b.calc,
		ScoreBreakdown:   b.breakdown,
		Limit:            b.limit,
	})
	if err != nil {
		return Query{}, err
	}
	if len(res.Queries) != 1 {
		return Query{}, fmt.Errorf("hybridq: compiled %d queries for one document", len(res.Queries))
	}
	return res.Queries[0], nil
}

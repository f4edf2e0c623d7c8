package compile

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/hybridq/internal/domain"
	"github.com/kailas-cloud/hybridq/internal/domain/document"
	"github.com/kailas-cloud/hybridq/internal/domain/modality"
	"github.com/kailas-cloud/hybridq/internal/domain/search/request"
	"github.com/kailas-cloud/hybridq/internal/domain/search/score"
)

// --- Mocks ---

type mockEncoder struct {
	vec    []float32
	err    error
	called bool
}

func (m *mockEncoder) Encode(_ context.Context, docs []document.Document) ([]document.Document, error) {
	m.called = true
	if m.err != nil {
		return nil, m.err
	}
	for _, d := range docs {
		for _, c := range d.Chunks {
			if _, ok := c.Embedding("clip"); !ok {
				c.SetEmbedding("clip", m.vec)
			}
		}
	}
	return docs, nil
}

func newService(t *testing.T, opts Options, enc QueryEncoder) *Service {
	t.Helper()
	svc, err := New(clipSet(t), opts, enc)
	require.NoError(t, err)
	return svc
}

func newRequest(t *testing.T, docs []document.Document, filters map[string]any, calc score.Calculation, breakdown bool, limit int) *request.Request {
	t.Helper()
	req, err := request.New(docs, filters, calc, breakdown, limit)
	require.NoError(t, err)
	return &req
}

// --- Tests ---

func TestCompile_ScenarioA(t *testing.T) {
	svc := newService(t, Options{}, nil)
	out, err := svc.Compile(context.Background(), newRequest(t, []document.Document{catQuery("q1")}, nil, score.Calculation{}, false, 0))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.JSONEq(t, scenarioA, mustJSON(t, out[0].Query))
}

func TestCompile_LexicalBoost(t *testing.T) {
	tests := []struct {
		name  string
		boost *float64
		field string
	}{
		{"unset takes default", nil, "title^10"},
		{"explicit value", ptr(2.5), "title^2.5"},
		{"explicit zero kept", ptr(0), "title^0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t, Options{LexicalBoost: tt.boost}, nil)
			out, err := svc.Compile(context.Background(), newRequest(t, []document.Document{catQuery("q1")}, nil, score.Calculation{}, false, 0))
			require.NoError(t, err)
			assert.Equal(t, []string{tt.field}, out[0].Query.Query.Bool.Should[0].MultiMatch.Fields)
		})
	}
}

func TestCompile_NestedChunks(t *testing.T) {
	nested := document.Document{ID: "q1", Chunks: []*document.Chunk{{
		Field: "text",
		Chunks: []*document.Chunk{{
			Modality:   modality.Text,
			Text:       "cat",
			Embeddings: []document.Embedding{{Encoder: "clip", Vector: catVector}},
		}},
	}}}

	svc := newService(t, Options{}, nil)
	out, err := svc.Compile(context.Background(), newRequest(t, []document.Document{nested}, nil, score.Calculation{}, false, 0))
	require.NoError(t, err)
	assert.JSONEq(t, scenarioA, mustJSON(t, out[0].Query))
}

func TestCompile_ScenarioB_Terms(t *testing.T) {
	svc := newService(t, Options{}, nil)
	filters := map[string]any{"tags__color": []any{"red", "blue"}}
	out, err := svc.Compile(context.Background(), newRequest(t, []document.Document{catQuery("q1")}, filters, score.Calculation{}, false, 0))
	require.NoError(t, err)

	for _, knn := range out[0].Query.KNN {
		assert.JSONEq(t, `[{"terms": {"tags.color": ["red", "blue"]}}]`, mustJSON(t, knn.Filter))
	}
}

func TestCompile_ScenarioC_Match(t *testing.T) {
	svc := newService(t, Options{}, nil)
	filters := map[string]any{"tags__color": "red"}
	out, err := svc.Compile(context.Background(), newRequest(t, []document.Document{catQuery("q1")}, filters, score.Calculation{}, false, 0))
	require.NoError(t, err)

	for _, knn := range out[0].Query.KNN {
		assert.JSONEq(t, `[{"match": {"tags.color.text_search": "red"}}]`, mustJSON(t, knn.Filter))
	}
}

func TestCompile_ScenarioD_InvalidFilter(t *testing.T) {
	svc := newService(t, Options{}, nil)
	filters := map[string]any{"tags__color": 5}
	out, err := svc.Compile(context.Background(), newRequest(t, []document.Document{catQuery("q1")}, filters, score.Calculation{}, false, 0))
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, domain.ErrInvalidFilterValue), "error = %v", err)
}

func TestCompile_ScenarioE_Range(t *testing.T) {
	svc := newService(t, Options{}, nil)
	filters := map[string]any{"tags__price": map[string]any{"gt": 10, "lt": 100}}
	out, err := svc.Compile(context.Background(), newRequest(t, []document.Document{catQuery("q1")}, filters, score.Calculation{}, false, 0))
	require.NoError(t, err)

	for _, knn := range out[0].Query.KNN {
		require.Len(t, knn.Filter, 1)
		assert.JSONEq(t, `[{"range": {"tags.price": {"gt": 10, "lt": 100}}}]`, mustJSON(t, knn.Filter))
	}
}

func TestCompile_FilterFromJSON(t *testing.T) {
	var filters map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"tags__price": {"gte": 10}, "tags__size": ["m", 42]}`), &filters))

	svc := newService(t, Options{}, nil)
	out, err := svc.Compile(context.Background(), newRequest(t, []document.Document{catQuery("q1")}, filters, score.Calculation{}, false, 0))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"range": {"tags.price": {"gte": 10}}}, {"terms": {"tags.size": ["m", 42]}}]`,
		mustJSON(t, out[0].Query.KNN[0].Filter))
}

func TestCompile_FilterConflictPolicy(t *testing.T) {
	filters := map[string]any{"tags__price": []any{1, 2}, "tags__price__lt": 5}
	docs := []document.Document{catQuery("q1")}

	_, err := newService(t, Options{}, nil).Compile(context.Background(), newRequest(t, docs, filters, score.Calculation{}, false, 0))
	assert.True(t, errors.Is(err, domain.ErrInvalidFilterValue), "error = %v", err)

	out, err := newService(t, Options{FilterConflict: "combine"}, nil).
		Compile(context.Background(), newRequest(t, docs, filters, score.Calculation{}, false, 0))
	require.NoError(t, err)
	assert.Len(t, out[0].Query.KNN[0].Filter, 2)
}

func TestCompile_Override(t *testing.T) {
	e, err := score.NewVector("text", "gif", "clip", 2)
	require.NoError(t, err)

	svc := newService(t, Options{}, nil)
	out, err := svc.Compile(context.Background(), newRequest(t, []document.Document{catQuery("q1")}, nil, score.Explicit(e), false, 0))
	require.NoError(t, err)

	q := out[0].Query
	require.Len(t, q.KNN, 1)
	assert.Equal(t, "gif-clip.embedding", q.KNN[0].Field)
	assert.Equal(t, 2.0, q.KNN[0].Boost)
	assert.Empty(t, q.Query.Bool.Should)
}

func TestCompile_Limit(t *testing.T) {
	svc := newService(t, Options{}, nil)
	out, err := svc.Compile(context.Background(), newRequest(t, []document.Document{catQuery("q1")}, nil, score.Calculation{}, false, 250))
	require.NoError(t, err)
	assert.Equal(t, 250, out[0].Query.KNN[0].K)
	assert.Equal(t, 250, out[0].Query.KNN[0].NumCandidates)
}

func TestCompile_MalformedDocument(t *testing.T) {
	loop := &document.Chunk{Field: "text"}
	loop.Chunks = []*document.Chunk{loop}

	svc := newService(t, Options{}, nil)
	_, err := svc.Compile(context.Background(), newRequest(t, []document.Document{{ID: "bad", Chunks: []*document.Chunk{loop}}}, nil, score.Calculation{}, false, 0))
	assert.True(t, errors.Is(err, domain.ErrMalformedDocument), "error = %v", err)
}

func TestCompile_EncodesMissingEmbeddings(t *testing.T) {
	raw := document.Document{ID: "q1", Chunks: []*document.Chunk{{Field: "text", Modality: modality.Text, Text: "cat"}}}
	enc := &mockEncoder{vec: catVector}

	svc := newService(t, Options{}, enc)
	out, err := svc.Compile(context.Background(), newRequest(t, []document.Document{raw}, nil, score.Calculation{}, false, 0))
	require.NoError(t, err)
	assert.True(t, enc.called)
	assert.JSONEq(t, scenarioA, mustJSON(t, out[0].Query))
}

func TestCompile_EncoderError(t *testing.T) {
	enc := &mockEncoder{err: domain.ErrEncoderProviderError}

	svc := newService(t, Options{}, enc)
	_, err := svc.Compile(context.Background(), newRequest(t, []document.Document{catQuery("q1")}, nil, score.Calculation{}, false, 0))
	assert.True(t, errors.Is(err, domain.ErrEncoderProviderError), "error = %v", err)
}

func TestCompile_Deterministic(t *testing.T) {
	svc := newService(t, Options{}, nil)
	filters := map[string]any{
		"tags__color": []any{"red", "blue"},
		"tags__price": map[string]any{"gt": 1},
		"tags__brand": "acme",
	}
	req := newRequest(t, []document.Document{catQuery("q1"), catQuery("q2")}, filters, score.Calculation{}, true, 0)

	first, err := svc.Compile(context.Background(), req)
	require.NoError(t, err)
	want := mustJSON(t, first)
	for range 20 {
		again, err := svc.Compile(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, want, mustJSON(t, again))
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(clipSet(t), Options{FieldTemplate: "static"}, nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidRequest), "error = %v", err)
}

func TestIndexMapping(t *testing.T) {
	svc := newService(t, Options{}, nil)
	def, err := svc.IndexMapping("products", []Tag{
		{Path: "tags__color", Type: TagKeyword},
		{Path: "tags.price", Type: TagNumeric},
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{"mappings": {"properties": {
		"title": {"type": "text"},
		"title-clip": {"properties": {"embedding": {"type": "dense_vector", "dims": 4, "index": true, "similarity": "cosine"}}},
		"gif-clip": {"properties": {"embedding": {"type": "dense_vector", "dims": 4, "index": true, "similarity": "cosine"}}},
		"description-sbert": {"properties": {"embedding": {"type": "dense_vector", "dims": 3, "index": true, "similarity": "cosine"}}},
		"tags": {"properties": {
			"color": {"type": "keyword", "fields": {"text_search": {"type": "text"}}},
			"price": {"type": "float"}
		}}
	}}}`, mustJSON(t, def.Body()))
}

func TestIndexMapping_Invalid(t *testing.T) {
	svc := newService(t, Options{}, nil)

	_, err := svc.IndexMapping("Bad Name", nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidSchema), "error = %v", err)

	_, err = svc.IndexMapping("ok", []Tag{{Path: "tags__", Type: TagKeyword}})
	assert.True(t, errors.Is(err, domain.ErrInvalidSchema), "error = %v", err)

	_, err = svc.IndexMapping("ok", []Tag{{Path: "x", Type: "geo"}})
	assert.True(t, errors.Is(err, domain.ErrInvalidSchema), "error = %v", err)
}

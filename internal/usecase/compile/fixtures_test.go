package compile

import (
	"testing"

	"github.com/kailas-cloud/hybridq/internal/domain/document"
	"github.com/kailas-cloud/hybridq/internal/domain/mapping"
	"github.com/kailas-cloud/hybridq/internal/domain/modality"
)

var catVector = []float32{0.1, 0.2, 0.3, 0.4}

func ptr(f float64) *float64 { return &f }

// clipSet is the index schema used across tests: title and gif encoded by a 4-dim clip,
// description by a 3-dim sbert, title as the BM25 field.
func clipSet(t *testing.T) mapping.Set {
	t.Helper()
	clip, err := mapping.New("clip", 4, []string{"title", "gif"})
	if err != nil {
		t.Fatalf("mapping.New: %v", err)
	}
	sbert, err := mapping.New("sbert", 3, []string{"description"})
	if err != nil {
		t.Fatalf("mapping.New: %v", err)
	}
	set, err := mapping.NewSet("title", clip, sbert)
	if err != nil {
		t.Fatalf("mapping.NewSet: %v", err)
	}
	return set
}

// catQuery is a query document with a single text chunk "cat" encoded by clip.
func catQuery(id string) document.Document {
	return document.Document{ID: id, Chunks: []*document.Chunk{{
		Field:      "text",
		Modality:   modality.Text,
		Text:       "cat",
		Embeddings: []document.Embedding{{Encoder: "clip", Vector: catVector}},
	}}}
}

const scenarioA = `{
	"knn": [
		{"field": "title-clip.embedding", "k": 10, "num_candidates": 100, "boost": 1, "query_vector": [0.1, 0.2, 0.3, 0.4]},
		{"field": "gif-clip.embedding", "k": 10, "num_candidates": 100, "boost": 1, "query_vector": [0.1, 0.2, 0.3, 0.4]}
	],
	"query": {"bool": {"should": [{"multi_match": {"query": "cat", "fields": ["title^10"]}}]}}
}`

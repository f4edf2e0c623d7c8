package document

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/hybridq/internal/domain"
	"github.com/kailas-cloud/hybridq/internal/domain/modality"
)

// Embedding is a vector produced for a chunk by one encoder.
type Embedding struct {
	Encoder string
	Vector  []float32
}

// Chunk is a leaf or composite element of a query document.
// A composite chunk carries sub-chunks; only leaves carry searchable content.
type Chunk struct {
	Field      string
	Modality   modality.Modality
	Text       string
	URI        string
	Embeddings []Embedding
	Chunks     []*Chunk
}

// IsLeaf reports whether the chunk has no sub-chunks.
func (c *Chunk) IsLeaf() bool { return len(c.Chunks) == 0 }

// Embedding returns the vector produced by the given encoder.
func (c *Chunk) Embedding(encoder string) ([]float32, bool) {
	for _, e := range c.Embeddings {
		if e.Encoder == encoder {
			return e.Vector, true
		}
	}
	return nil, false
}

// SetEmbedding stores or replaces the vector of an encoder.
func (c *Chunk) SetEmbedding(encoder string, vec []float32) {
	for i := range c.Embeddings {
		if c.Embeddings[i].Encoder == encoder {
			c.Embeddings[i].Vector = vec
			return
		}
	}
	c.Embeddings = append(c.Embeddings, Embedding{Encoder: encoder, Vector: vec})
}

// Document is a query document: an id plus a tree of chunks.
type Document struct {
	ID     string
	Chunks []*Chunk
}

// IsFlat reports whether every top-level chunk is a leaf.
func (d Document) IsFlat() bool {
	for _, c := range d.Chunks {
		if c == nil || !c.IsLeaf() {
			return false
		}
	}
	return true
}

// Flatten lifts nested chunks ("chunks of chunks") into a flat list of leaves.
// Traversal is depth-first and preserves sibling order. Leaves without a field name
// inherit the name of their nearest named ancestor. Flattening a flat document
// yields an equal document. Cyclic containment and nil chunks are rejected with
// domain.ErrMalformedDocument.
func Flatten(doc Document) (Document, error) {
	out := Document{ID: doc.ID, Chunks: make([]*Chunk, 0, len(doc.Chunks))}
	onPath := make(map[*Chunk]bool)

	var walk func(c *Chunk, field string, path []string) error
	walk = func(c *Chunk, field string, path []string) error {
		where := strings.Join(path, "/")
		if c == nil {
			return fmt.Errorf("%w: nil chunk at %s", domain.ErrMalformedDocument, where)
		}
		if onPath[c] {
			return fmt.Errorf("%w: cyclic chunk containment at %s", domain.ErrMalformedDocument, where)
		}
		if c.Field != "" {
			field = c.Field
		}
		if c.IsLeaf() {
			leaf := *c
			leaf.Field = field
			leaf.Chunks = nil
			leaf.Embeddings = append([]Embedding(nil), c.Embeddings...)
			out.Chunks = append(out.Chunks, &leaf)
			return nil
		}

		onPath[c] = true
		for i, sub := range c.Chunks {
			if err := walk(sub, field, append(path, strconv.Itoa(i))); err != nil {
				return err
			}
		}
		delete(onPath, c)
		return nil
	}

	for i, c := range doc.Chunks {
		if err := walk(c, "", []string{strconv.Itoa(i)}); err != nil {
			return Document{}, err
		}
	}
	return out, nil
}

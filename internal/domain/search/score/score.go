package score

import (
	"fmt"
	"math"
)

// Kind is the kind of a score calculation entry.
type Kind string

// Score kinds.
const (
	// KindVector compares a query embedding with an index embedding of the same encoder.
	KindVector Kind = "vector_similarity"
	// KindLexical runs BM25 over a text field.
	KindLexical Kind = "lexical_match"
)

// IsValid checks if the kind is one of the supported values.
func (k Kind) IsValid() bool {
	return k == KindVector || k == KindLexical
}

// DefaultWeight is the weight of generated vector entries.
const DefaultWeight = 1.0

// DefaultLexicalBoost is the field boost of the generated lexical entry.
const DefaultLexicalBoost = 10.0

// Entry is one term of the linear score combination (immutable value object).
// For lexical entries the weight is the field boost and the encoder is empty.
type Entry struct {
	kind       Kind
	queryField string
	indexField string
	encoder    string
	weight     float64
}

// NewVector validates and creates a vector similarity entry.
func NewVector(queryField, indexField, encoder string, weight float64) (Entry, error) {
	if encoder == "" {
		return Entry{}, fmt.Errorf("encoder is required for vector entry %s->%s", queryField, indexField)
	}
	e := Entry{kind: KindVector, queryField: queryField, indexField: indexField, encoder: encoder, weight: weight}
	if err := e.validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// NewLexical validates and creates a lexical match entry.
func NewLexical(queryField, indexField string, boost float64) (Entry, error) {
	e := Entry{kind: KindLexical, queryField: queryField, indexField: indexField, weight: boost}
	if err := e.validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (e Entry) validate() error {
	if e.queryField == "" {
		return fmt.Errorf("query field is required")
	}
	if e.indexField == "" {
		return fmt.Errorf("index field is required")
	}
	if math.IsNaN(e.weight) || math.IsInf(e.weight, 0) {
		return fmt.Errorf("weight for %s->%s must be finite", e.queryField, e.indexField)
	}
	if e.weight < 0 {
		return fmt.Errorf("weight for %s->%s must not be negative", e.queryField, e.indexField)
	}
	return nil
}

// Kind returns the entry kind.
func (e Entry) Kind() Kind { return e.kind }

// QueryField returns the query document field.
func (e Entry) QueryField() string { return e.queryField }

// IndexField returns the indexed field.
func (e Entry) IndexField() string { return e.indexField }

// Encoder returns the shared encoder ("" for lexical entries).
func (e Entry) Encoder() string { return e.encoder }

// Weight returns the linear weight, or the field boost for lexical entries.
func (e Entry) Weight() float64 { return e.weight }

// Calculation is a caller-supplied score plan. The zero value means "derive automatically";
// an explicit calculation, even an empty one, replaces derivation.
type Calculation struct {
	entries []Entry
	set     bool
}

// Explicit creates a caller-supplied calculation.
func Explicit(entries ...Entry) Calculation {
	return Calculation{entries: append([]Entry{}, entries...), set: true}
}

// IsSet reports whether the calculation was supplied by the caller.
func (c Calculation) IsSet() bool { return c.set }

// Entries returns the entries in caller order.
func (c Calculation) Entries() []Entry { return c.entries }

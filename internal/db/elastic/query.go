package elastic

import (
	"encoding/json"
	"strconv"
)

// Query is a compiled search request: kNN clauses plus a lexical bool query.
type Query struct {
	KNN   []KNN      `json:"knn"`
	Query BoolClause `json:"query"`
}

// KNN is one approximate nearest-neighbour clause over a dense_vector field.
type KNN struct {
	Field         string    `json:"field"`
	K             int       `json:"k"`
	NumCandidates int       `json:"num_candidates"`
	Boost         float64   `json:"boost"`
	QueryVector   []float32 `json:"query_vector"`
	Filter        []Clause  `json:"filter,omitempty"`
}

// BoolClause wraps a bool query.
type BoolClause struct {
	Bool Bool `json:"bool"`
}

// Bool holds the should clauses of a bool query.
type Bool struct {
	Should []Clause `json:"should"`
}

// Clause is a leaf query clause. Exactly one member is set.
type Clause struct {
	Terms      *Terms      `json:"terms,omitempty"`
	Match      *Match      `json:"match,omitempty"`
	Range      *Range      `json:"range,omitempty"`
	MultiMatch *MultiMatch `json:"multi_match,omitempty"`
}

// Terms matches documents whose field holds any of the values.
type Terms struct {
	Field  string
	Values []any
}

// MarshalJSON renders {"<field>": [values...]}.
func (t Terms) MarshalJSON() ([]byte, error) {
	values := t.Values
	if values == nil {
		values = []any{}
	}
	return json.Marshal(map[string][]any{t.Field: values})
}

// Match is a full-text match on one field.
type Match struct {
	Field string
	Query string
}

// MarshalJSON renders {"<field>": "<query>"}.
func (m Match) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{m.Field: m.Query})
}

// Bounds are the limits of a range clause.
type Bounds struct {
	GT  *float64 `json:"gt,omitempty"`
	GTE *float64 `json:"gte,omitempty"`
	LT  *float64 `json:"lt,omitempty"`
	LTE *float64 `json:"lte,omitempty"`
}

// Range restricts a numeric field.
type Range struct {
	Field  string
	Bounds Bounds
}

// MarshalJSON renders {"<field>": {"gt": .., "lt": ..}}.
func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]Bounds{r.Field: r.Bounds})
}

// MultiMatch runs a BM25 query over boosted fields.
type MultiMatch struct {
	Query  string   `json:"query"`
	Fields []string `json:"fields"`
}

// BoostedField renders a multi_match field reference: "title^10".
func BoostedField(field string, boost float64) string {
	return field + "^" + strconv.FormatFloat(boost, 'f', -1, 64)
}

// Marshal encodes a query. Output is deterministic for equal input.
func Marshal(q Query) ([]byte, error) {
	return json.Marshal(q)
}

package breakdown

import (
	"fmt"

	"github.com/kailas-cloud/hybridq/internal/domain/search/score"
)

// Entry describes one contributing clause of a compiled query.
// Position indexes the knn list for vector entries and the should list for lexical ones.
type Entry struct {
	Kind        score.Kind `json:"kind"`
	Position    int        `json:"position"`
	QueryField  string     `json:"query_field"`
	IndexField  string     `json:"index_field"`
	EngineField string     `json:"engine_field"`
	Encoder     string     `json:"encoder,omitempty"`
	Weight      float64    `json:"weight"`
}

// Breakdown is the score-breakdown side channel of one compiled query.
type Breakdown struct {
	Entries []Entry `json:"entries"`
}

// Contribution is one entry's share of a hit's score.
type Contribution struct {
	Entry    Entry   `json:"entry"`
	Raw      float64 `json:"raw"`
	Weighted float64 `json:"weighted"`
}

// Decomposition explains a hit's total score.
type Decomposition struct {
	Contributions []Contribution `json:"contributions"`
	Total         float64        `json:"total"`
}

// Decompose turns per-entry raw scores (unweighted similarity or BM25, aligned with Entries)
// into weighted contributions and their sum.
func (b Breakdown) Decompose(raw []float64) (Decomposition, error) {
	if len(raw) != len(b.Entries) {
		return Decomposition{}, fmt.Errorf("got %d scores for %d breakdown entries", len(raw), len(b.Entries))
	}
	d := Decomposition{Contributions: make([]Contribution, len(raw))}
	for i, e := range b.Entries {
		w := raw[i] * e.Weight
		d.Contributions[i] = Contribution{Entry: e, Raw: raw[i], Weighted: w}
		d.Total += w
	}
	return d, nil
}

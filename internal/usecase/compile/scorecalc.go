package compile

import (
	"github.com/kailas-cloud/hybridq/internal/domain/document"
	"github.com/kailas-cloud/hybridq/internal/domain/mapping"
	"github.com/kailas-cloud/hybridq/internal/domain/search/score"
)

// Lexical designates the BM25 target of generated calculations.
// An empty Field disables the lexical entry.
type Lexical struct {
	Field string
	Boost float64
}

// Generate derives the score calculation plan.
//
// A set override is returned verbatim. Otherwise, for every encoder of the index (in
// mapping order) that also encoded some query field, each query field is paired with
// each index field of that encoder at score.DefaultWeight. Encoders known to only one
// side are skipped. If a query field carries lexical text and lex.Field is set, exactly
// one lexical entry follows, driven by the first such field.
func Generate(
	query []document.QueryField,
	index []mapping.EncoderFields,
	lex Lexical,
	override score.Calculation,
) ([]score.Entry, error) {
	if override.IsSet() {
		return override.Entries(), nil
	}

	byEncoder := make(map[string][]document.QueryField)
	for _, g := range document.GroupByEncoder(query) {
		byEncoder[g.Encoder] = g.Fields
	}

	out := []score.Entry{}
	for _, ef := range index {
		qfs, ok := byEncoder[ef.Encoder]
		if !ok {
			continue
		}
		for _, qf := range qfs {
			for _, field := range ef.Fields {
				e, err := score.NewVector(qf.Field, field, ef.Encoder, score.DefaultWeight)
				if err != nil {
					return nil, err
				}
				out = append(out, e)
			}
		}
	}

	if lex.Field == "" {
		return out, nil
	}
	for _, qf := range query {
		if !qf.HasLexicalText() {
			continue
		}
		e, err := score.NewLexical(qf.Field, lex.Field, lex.Boost)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		break
	}
	return out, nil
}

// unionFields collects the distinct (field, encoder) query fields of all documents,
// in order of first appearance.
func unionFields(docs []document.Document) []document.QueryField {
	type key struct{ field, encoder string }
	seen := make(map[key]bool)
	var out []document.QueryField
	for _, d := range docs {
		for _, qf := range document.QueryFields(d) {
			k := key{qf.Field, qf.Encoder}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, qf)
		}
	}
	return out
}

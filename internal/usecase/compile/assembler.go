package compile

import (
	"fmt"

	"github.com/kailas-cloud/hybridq/internal/db/elastic"
	"github.com/kailas-cloud/hybridq/internal/domain"
	"github.com/kailas-cloud/hybridq/internal/domain/document"
	"github.com/kailas-cloud/hybridq/internal/domain/mapping"
	"github.com/kailas-cloud/hybridq/internal/domain/search/breakdown"
	"github.com/kailas-cloud/hybridq/internal/domain/search/score"
)

// Compiled is the engine query of one query document.
// Breakdown is nil unless requested; it is never part of Query.
type Compiled struct {
	DocumentID string
	Query      elastic.Query
	Breakdown  *breakdown.Breakdown
}

// Build assembles one query per flattened document.
//
// Vector entries become knn clauses carrying the filter clauses; lexical entries become
// one multi_match per distinct query text. Entries whose query field is absent from a
// document (or lacks that encoder's embedding) are skipped for that document. Every
// vector entry must name an encoder of set and an index field that encoder produces,
// otherwise domain.ErrUnresolvableEncoder is returned and nothing is built.
func Build(
	docs []document.Document,
	calc []score.Entry,
	set mapping.Set,
	filters []elastic.Clause,
	withBreakdown bool,
	opts Options,
) ([]Compiled, error) {
	opts = opts.withDefaults()

	var vectors, lexicals []score.Entry
	for _, e := range calc {
		switch e.Kind() {
		case score.KindVector:
			if err := resolve(set, e); err != nil {
				return nil, err
			}
			vectors = append(vectors, e)
		case score.KindLexical:
			lexicals = append(lexicals, e)
		default:
			return nil, fmt.Errorf("%w: unknown score kind %q", domain.ErrInvalidRequest, e.Kind())
		}
	}

	if len(vectors) == 0 && len(lexicals) == 0 && opts.EmptyCalculation == EmptyReject {
		return nil, domain.ErrEmptyScoreCalculation
	}

	out := make([]Compiled, 0, len(docs))
	for _, d := range docs {
		c, err := buildOne(d, vectors, lexicals, set, filters, withBreakdown, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func resolve(set mapping.Set, e score.Entry) error {
	m, ok := set.Lookup(e.Encoder())
	if !ok {
		return fmt.Errorf("%w: encoder %q of entry %s->%s is not in the index mapping",
			domain.ErrUnresolvableEncoder, e.Encoder(), e.QueryField(), e.IndexField())
	}
	if !m.HasField(e.IndexField()) {
		return fmt.Errorf("%w: encoder %q does not produce index field %q",
			domain.ErrUnresolvableEncoder, e.Encoder(), e.IndexField())
	}
	return nil
}

func buildOne(
	doc document.Document,
	vectors, lexicals []score.Entry,
	set mapping.Set,
	filters []elastic.Clause,
	withBreakdown bool,
	opts Options,
) (Compiled, error) {
	fields := document.QueryFields(doc)
	q := elastic.Query{
		KNN:   []elastic.KNN{},
		Query: elastic.BoolClause{Bool: elastic.Bool{Should: []elastic.Clause{}}},
	}
	var bd *breakdown.Breakdown
	if withBreakdown {
		bd = &breakdown.Breakdown{Entries: []breakdown.Entry{}}
	}

	for _, e := range vectors {
		qf, ok := document.Lookup(fields, e.QueryField(), e.Encoder())
		if !ok {
			continue
		}
		m, _ := set.Lookup(e.Encoder())
		if len(qf.Vector) != m.Dimension() {
			return Compiled{}, fmt.Errorf("%w: document %q field %q has %d dimensions, encoder %q expects %d",
				domain.ErrVectorDimMismatch, doc.ID, qf.Field, len(qf.Vector), e.Encoder(), m.Dimension())
		}

		engineField := opts.EngineField(e.IndexField(), e.Encoder())
		q.KNN = append(q.KNN, elastic.KNN{
			Field:         engineField,
			K:             opts.K,
			NumCandidates: opts.NumCandidates,
			Boost:         e.Weight(),
			QueryVector:   qf.Vector,
			Filter:        filters,
		})
		if bd != nil {
			bd.Entries = append(bd.Entries, breakdownEntry(e, len(q.KNN)-1, engineField))
		}
	}

	should := q.Query.Bool.Should
	byText := make(map[string]int)
	for _, e := range lexicals {
		text, ok := document.LexicalText(fields, e.QueryField())
		if !ok {
			continue
		}
		boosted := elastic.BoostedField(e.IndexField(), e.Weight())
		i, ok := byText[text]
		if !ok {
			i = len(should)
			byText[text] = i
			should = append(should, elastic.Clause{MultiMatch: &elastic.MultiMatch{Query: text}})
		}
		mm := should[i].MultiMatch
		if !contains(mm.Fields, boosted) {
			mm.Fields = append(mm.Fields, boosted)
		}
		if bd != nil {
			bd.Entries = append(bd.Entries, breakdownEntry(e, i, e.IndexField()))
		}
	}
	q.Query.Bool.Should = should

	return Compiled{DocumentID: doc.ID, Query: q, Breakdown: bd}, nil
}

func breakdownEntry(e score.Entry, position int, engineField string) breakdown.Entry {
	return breakdown.Entry{
		Kind:        e.Kind(),
		Position:    position,
		QueryField:  e.QueryField(),
		IndexField:  e.IndexField(),
		EngineField: engineField,
		Encoder:     e.Encoder(),
		Weight:      e.Weight(),
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

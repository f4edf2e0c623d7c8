package elastic

import "github.com/kailas-cloud/hybridq/internal/domain/search/filter"

// DefaultTextSearchSuffix names the analyzed sub-field used for text filters.
const DefaultTextSearchSuffix = "text_search"

// BuildFilter emits one self-contained clause per condition, in expression order:
// OneOf -> terms, Equality -> match on "<path>.<suffix>", Range -> range.
func BuildFilter(expr filter.Expression, textSearchSuffix string) []Clause {
	if expr.IsEmpty() {
		return nil
	}
	if textSearchSuffix == "" {
		textSearchSuffix = DefaultTextSearchSuffix
	}

	clauses := make([]Clause, 0, len(expr.Conditions()))
	for _, c := range expr.Conditions() {
		path := c.Path().Dotted()
		v := c.Value()
		switch v.Kind() {
		case filter.KindOneOf:
			clauses = append(clauses, Clause{Terms: &Terms{Field: path, Values: v.Items()}})
		case filter.KindEquality:
			clauses = append(clauses, Clause{Match: &Match{Field: path + "." + textSearchSuffix, Query: v.Text()}})
		case filter.KindRange:
			r := v.Range()
			clauses = append(clauses, Clause{Range: &Range{Field: path, Bounds: Bounds{
				GT:  r.GT(),
				GTE: r.GTE(),
				LT:  r.LT(),
				LTE: r.LTE(),
			}}})
		}
	}
	return clauses
}

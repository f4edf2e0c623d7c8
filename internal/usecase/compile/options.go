package compile

import (
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/hybridq/internal/db/elastic"
	"github.com/kailas-cloud/hybridq/internal/domain/search/filter"
	"github.com/kailas-cloud/hybridq/internal/domain/search/score"
)

// Query defaults.
const (
	DefaultK             = 10
	DefaultNumCandidates = 100
	// DefaultFieldTemplate names the dense_vector field of an (index field, encoder) pair.
	DefaultFieldTemplate = "{field}-{encoder}.embedding"
)

// EmptyPolicy decides what an empty score calculation compiles to.
type EmptyPolicy string

// Empty calculation policies.
const (
	// EmptyAllow emits empty knn and should lists.
	EmptyAllow EmptyPolicy = "allow"
	// EmptyReject fails with domain.ErrEmptyScoreCalculation.
	EmptyReject EmptyPolicy = "reject"
)

// Options tunes query assembly. Zero fields take the package defaults.
// LexicalBoost is a pointer so an explicit zero boost stays expressible.
type Options struct {
	K                int
	NumCandidates    int
	LexicalBoost     *float64
	TextSearchSuffix string
	FieldTemplate    string
	EmptyCalculation EmptyPolicy
	FilterConflict   filter.ConflictPolicy
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.K <= 0 {
		o.K = DefaultK
	}
	if o.NumCandidates <= 0 {
		o.NumCandidates = DefaultNumCandidates
	}
	if o.NumCandidates < o.K {
		o.NumCandidates = o.K
	}
	if o.LexicalBoost == nil {
		b := score.DefaultLexicalBoost
		o.LexicalBoost = &b
	}
	if o.TextSearchSuffix == "" {
		o.TextSearchSuffix = elastic.DefaultTextSearchSuffix
	}
	if o.FieldTemplate == "" {
		o.FieldTemplate = DefaultFieldTemplate
	}
	if o.EmptyCalculation == "" {
		o.EmptyCalculation = EmptyAllow
	}
	if o.FilterConflict == "" {
		o.FilterConflict = filter.ConflictReject
	}
	return o
}

// Validate checks options after defaults are applied.
func (o Options) Validate() error {
	o = o.withDefaults()
	if b := *o.LexicalBoost; math.IsNaN(b) || math.IsInf(b, 0) || b < 0 {
		return fmt.Errorf("lexical boost must be a non-negative number")
	}
	if !strings.Contains(o.FieldTemplate, "{field}") {
		return fmt.Errorf("field template %q must contain {field}", o.FieldTemplate)
	}
	if o.EmptyCalculation != EmptyAllow && o.EmptyCalculation != EmptyReject {
		return fmt.Errorf("unknown empty calculation policy %q", o.EmptyCalculation)
	}
	if !o.FilterConflict.IsValid() {
		return fmt.Errorf("unknown filter conflict policy %q", o.FilterConflict)
	}
	return nil
}

// EngineField renders the engine field name of an index field under an encoder.
func (o Options) EngineField(field, encoder string) string {
	return strings.NewReplacer("{field}", field, "{encoder}", encoder).Replace(o.FieldTemplate)
}

// limited returns options with k overridden by a request limit.
func (o Options) limited(limit int) Options {
	if limit <= 0 {
		return o
	}
	o.K = limit
	if o.NumCandidates < limit {
		o.NumCandidates = limit
	}
	return o
}

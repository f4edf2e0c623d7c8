package request

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/hybridq/internal/domain/document"
	"github.com/kailas-cloud/hybridq/internal/domain/search/score"
)

// Compile request limits.
const (
	// MaxDocuments bounds the query documents compiled in one call.
	MaxDocuments = 100
	// MaxLimit is the engine's upper bound for knn k.
	MaxLimit = 10000
)

// Request is a validated compile request.
type Request struct {
	documents   []document.Document
	filters     map[string]any
	calculation score.Calculation
	breakdown   bool
	limit       int
}

// New validates a compile request.
// Documents without an ID are numbered by position. limit 0 keeps the configured k.
func New(
	docs []document.Document,
	filters map[string]any,
	calc score.Calculation,
	breakdown bool,
	limit int,
) (Request, error) {
	if len(docs) == 0 {
		return Request{}, fmt.Errorf("at least one query document is required")
	}
	if len(docs) > MaxDocuments {
		return Request{}, fmt.Errorf("too many query documents (max %d)", MaxDocuments)
	}
	if limit < 0 {
		return Request{}, fmt.Errorf("limit must not be negative")
	}
	if limit > MaxLimit {
		return Request{}, fmt.Errorf("limit too large (max %d)", MaxLimit)
	}

	seen := make(map[string]bool, len(docs))
	out := make([]document.Document, len(docs))
	for i, d := range docs {
		if d.ID == "" {
			d.ID = strconv.Itoa(i)
		}
		if seen[d.ID] {
			return Request{}, fmt.Errorf("duplicate document id %q", d.ID)
		}
		seen[d.ID] = true
		out[i] = d
	}

	return Request{
		documents:   out,
		filters:     filters,
		calculation: calc,
		breakdown:   breakdown,
		limit:       limit,
	}, nil
}

// Documents returns the query documents in input order.
func (r *Request) Documents() []document.Document { return r.documents }

// Filters returns the raw filter expression (field path -> value).
func (r *Request) Filters() map[string]any { return r.filters }

// Calculation returns the caller-supplied score plan (unset means derive).
func (r *Request) Calculation() score.Calculation { return r.calculation }

// Breakdown reports whether score-breakdown metadata was requested.
func (r *Request) Breakdown() bool { return r.breakdown }

// Limit returns the requested result count (0 = configured default).
func (r *Request) Limit() int { return r.limit }

package compile

import (
	"context"

	"github.com/kailas-cloud/hybridq/internal/domain/document"
)

// QueryEncoder fills missing query embeddings of flattened documents.
type QueryEncoder interface {
	Encode(ctx context.Context, docs []document.Document) ([]document.Document, error)
}

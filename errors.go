package hybridq

import "github.com/kailas-cloud/hybridq/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidFilterValue    = domain.ErrInvalidFilterValue
	ErrUnresolvableEncoder   = domain.ErrUnresolvableEncoder
	ErrMalformedDocument     = domain.ErrMalformedDocument
	ErrInvalidSchema         = domain.ErrInvalidSchema
	ErrVectorDimMismatch     = domain.ErrVectorDimMismatch
	ErrEmptyScoreCalculation = domain.ErrEmptyScoreCalculation
	ErrInvalidRequest        = domain.ErrInvalidRequest
	ErrEncoderNotConfigured  = domain.ErrEncoderNotConfigured
	ErrEncoderProviderError  = domain.ErrEncoderProviderError
)

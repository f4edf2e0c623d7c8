package domain

import "errors"

var (
	// ErrInvalidFilterValue signals a filter value that is not a string, list or range mapping.
	ErrInvalidFilterValue = errors.New("invalid filter value")
	// ErrUnresolvableEncoder signals a score calculation entry whose encoder has no index field.
	ErrUnresolvableEncoder = errors.New("unresolvable encoder")
	// ErrMalformedDocument signals a query document that cannot be flattened.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrInvalidSchema signals an invalid document mapping definition.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrVectorDimMismatch signals a query vector whose length differs from the encoder dimension.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmptyScoreCalculation signals that no comparable fields were found and empty queries are rejected.
	ErrEmptyScoreCalculation = errors.New("empty score calculation")
	// ErrInvalidRequest signals a structurally invalid compile request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrEncoderNotConfigured signals a query field that needs an encoder nobody serves.
	ErrEncoderNotConfigured = errors.New("encoder not configured")
	// ErrEncoderProviderError signals an encoder provider failure.
	ErrEncoderProviderError = errors.New("encoder provider error")
)

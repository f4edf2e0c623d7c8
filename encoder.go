package hybridq

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/hybridq/internal/domain"
)

// Encoder converts query text or a media URI to a vector.
type Encoder interface {
	Encode(ctx context.Context, input string) (EncodeResult, error)
}

// BatchEncoder encodes multiple inputs in a single call.
// Optional: if the provided Encoder also implements BatchEncoder,
// every request sends one batch per encoder.
type BatchEncoder interface {
	BatchEncode(ctx context.Context, inputs []string) (BatchEncodeResult, error)
}

// EncodeResult carries the vector and token counts.
type EncodeResult struct {
	Vector       []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEncodeResult carries one vector per input and aggregate token usage.
type BatchEncodeResult struct {
	Vectors      [][]float32
	PromptTokens int
	TotalTokens  int
}

// EncoderSpec describes how an Encoder is bound to the schema.
type EncoderSpec struct {
	// Name must match an encoder of the schema.
	Name string
	// Model scopes cached vectors.
	Model string
	// Instruction is prepended to every input.
	Instruction string
	// Modalities the encoder accepts; empty means text only.
	Modalities []Modality
}

// encoderAdapter wraps a public Encoder to satisfy domain.Encoder and domain.BatchEncoder.
type encoderAdapter struct {
	inner Encoder
}

func (a *encoderAdapter) Encode(ctx context.Context, input string) (domain.EncodeResult, error) {
	r, err := a.inner.Encode(ctx, input)
	if err != nil {
		return domain.EncodeResult{}, fmt.Errorf("encode: %w", err)
	}
	return domain.EncodeResult{
		Vector:       r.Vector,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

func (a *encoderAdapter) BatchEncode(ctx context.Context, inputs []string) (domain.BatchEncodeResult, error) {
	be, ok := a.inner.(BatchEncoder)
	if !ok {
		return domain.BatchFallback(ctx, a, inputs)
	}
	r, err := be.BatchEncode(ctx, inputs)
	if err != nil {
		return domain.BatchEncodeResult{}, fmt.Errorf("batch encode: %w", err)
	}
	if len(r.Vectors) != len(inputs) {
		return domain.BatchEncodeResult{}, fmt.Errorf("batch encode returned %d vectors for %d inputs: %w",
			len(r.Vectors), len(inputs), domain.ErrEncoderProviderError)
	}
	return domain.BatchEncodeResult{
		Vectors:      r.Vectors,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

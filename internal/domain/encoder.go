package domain

import (
	"context"
	"fmt"
)

// Encoder is the shared query vectorization contract between layers.
// input is the chunk text for text leaves and the content URI otherwise.
type Encoder interface {
	Encode(ctx context.Context, input string) (EncodeResult, error)
}

// BatchEncoder vectorizes multiple inputs in a single provider call.
type BatchEncoder interface {
	BatchEncode(ctx context.Context, inputs []string) (BatchEncodeResult, error)
}

// HealthChecker verifies encoder provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EncodeResult carries the vector and token usage through the decorator chain.
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

// BatchFallback calls Encode once per input, for providers without a native batch endpoint.
func BatchFallback(ctx context.Context, e Encoder, inputs []string) (BatchEncodeResult, error) {
	vectors := make([][]float32, len(inputs))
	var totalPrompt, totalTokens int

	for i, in := range inputs {
		res, err := e.Encode(ctx, in)
		if err != nil {
			return BatchEncodeResult{}, fmt.Errorf("fallback encode [%d]: %w", i, err)
		}
		vectors[i] = res.Vector
		totalPrompt += res.PromptTokens
		totalTokens += res.TotalTokens
	}

	return BatchEncodeResult{
		Vectors:      vectors,
		PromptTokens: totalPrompt,
		TotalTokens:  totalTokens,
	}, nil
}

// BatchEncode uses the native batch path of e when it has one.
func BatchEncode(ctx context.Context, e Encoder, inputs []string) (BatchEncodeResult, error) {
	if be, ok := e.(BatchEncoder); ok {
		return be.BatchEncode(ctx, inputs)
	}
	return BatchFallback(ctx, e, inputs)
}

// InstructionEncoder prepends a query instruction before encoding.
type InstructionEncoder struct {
	inner       Encoder
	instruction string
}

// NewInstructionEncoder creates a decorator that prepends instruction text.
func NewInstructionEncoder(inner Encoder, instruction string) *InstructionEncoder {
	return &InstructionEncoder{inner: inner, instruction: instruction}
}

// Encode prepends the instruction and delegates to the inner encoder.
func (e *InstructionEncoder) Encode(ctx context.Context, input string) (EncodeResult, error) {
	result, err := e.inner.Encode(ctx, e.instruction+input)
	if err != nil {
		return EncodeResult{}, fmt.Errorf("instruction encode: %w", err)
	}
	return result, nil
}

// BatchEncode prepends the instruction to each input and delegates to the inner encoder.
func (e *InstructionEncoder) BatchEncode(ctx context.Context, inputs []string) (BatchEncodeResult, error) {
	prefixed := make([]string, len(inputs))
	for i, in := range inputs {
		prefixed[i] = e.instruction + in
	}

	res, err := BatchEncode(ctx, e.inner, prefixed)
	if err != nil {
		return BatchEncodeResult{}, fmt.Errorf("instruction batch encode: %w", err)
	}
	return res, nil
}

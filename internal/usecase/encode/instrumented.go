package encode

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridq/internal/domain"
)

// DefaultMaxAPIBatchSize is the largest batch sent in one provider request.
const DefaultMaxAPIBatchSize = 256

// InstrumentedEncoder wraps an encoder with request logging, batch chunking and
// per-request usage accounting. Transport metrics live in transport/openai.
type InstrumentedEncoder struct {
	inner     domain.Encoder
	name      string
	model     string
	batchSize int
	logger    *zap.Logger
}

// NewInstrumentedEncoder wraps an encoder with observability.
func NewInstrumentedEncoder(inner domain.Encoder, name, model string, logger *zap.Logger) *InstrumentedEncoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedEncoder{
		inner:     inner,
		name:      name,
		model:     model,
		batchSize: DefaultMaxAPIBatchSize,
		logger:    logger,
	}
}

// Encode delegates to the inner encoder and records usage.
func (p *InstrumentedEncoder) Encode(ctx context.Context, input string) (domain.EncodeResult, error) {
	start := time.Now()

	result, err := p.inner.Encode(ctx, input)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Encode request failed",
			zap.String("encoder", p.name),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EncodeResult{}, fmt.Errorf("encode: %w", err)
	}

	domain.UsageFromContext(ctx).AddTokens(result.TotalTokens)

	p.logger.Debug("Encode request completed",
		zap.String("encoder", p.name),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Vector)),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// BatchEncode splits inputs into provider-sized chunks and delegates to the inner encoder.
func (p *InstrumentedEncoder) BatchEncode(ctx context.Context, inputs []string) (domain.BatchEncodeResult, error) {
	if len(inputs) == 0 {
		return domain.BatchEncodeResult{}, nil
	}

	start := time.Now()

	result, err := p.encodeChunked(ctx, inputs)
	if err != nil {
		return domain.BatchEncodeResult{}, err
	}

	domain.UsageFromContext(ctx).AddTokens(result.TotalTokens)

	p.logger.Debug("Batch encode completed",
		zap.String("encoder", p.name),
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(inputs)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

func (p *InstrumentedEncoder) encodeChunked(ctx context.Context, inputs []string) (domain.BatchEncodeResult, error) {
	var vectors [][]float32
	var totalPrompt, totalTokens int

	for offset := 0; offset < len(inputs); offset += p.batchSize {
		if err := ctx.Err(); err != nil {
			return domain.BatchEncodeResult{}, fmt.Errorf("batch encode (chunk %d): %w", offset, err)
		}

		end := min(offset+p.batchSize, len(inputs))
		chunk := inputs[offset:end]

		res, err := domain.BatchEncode(ctx, p.inner, chunk)
		if err != nil {
			p.logger.Error("Batch encode request failed",
				zap.String("encoder", p.name),
				zap.String("model", p.model),
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			return domain.BatchEncodeResult{}, fmt.Errorf("batch encode: %w", err)
		}

		vectors = append(vectors, res.Vectors...)
		totalPrompt += res.PromptTokens
		totalTokens += res.TotalTokens
	}

	return domain.BatchEncodeResult{
		Vectors:      vectors,
		PromptTokens: totalPrompt,
		TotalTokens:  totalTokens,
	}, nil
}

package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridq/internal/domain"
	"github.com/kailas-cloud/hybridq/internal/metrics"
)

// Encoder is a query encoder behind an OpenAI-compatible embeddings API
// (OpenAI, Nebius, a self-hosted CLIP server).
type Encoder struct {
	client     *openai.Client
	name       string
	model      openai.EmbeddingModel
	dimensions int
	user       string
	logger     *zap.Logger
}

// Config holds the encoder provider settings.
type Config struct {
	Name       string
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	User       string
	Logger     *zap.Logger
}

// NewEncoder creates an OpenAI-compatible encoder.
func NewEncoder(cfg *Config) *Encoder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Encoder{
		client:     openai.NewClientWithConfig(clientCfg),
		name:       cfg.Name,
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		logger:     logger,
	}
}

// Name returns the encoder name the vectors belong to.
func (e *Encoder) Name() string { return e.name }

// Model returns the provider model.
func (e *Encoder) Model() string { return string(e.model) }

// Encode implements domain.Encoder.
func (e *Encoder) Encode(ctx context.Context, input string) (domain.EncodeResult, error) {
	res, err := e.create(ctx, []string{input})
	if err != nil {
		return domain.EncodeResult{}, err
	}
	return domain.EncodeResult{
		Vector:       res.Vectors[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEncode implements domain.BatchEncoder. Vectors come back in input order.
func (e *Encoder) BatchEncode(ctx context.Context, inputs []string) (domain.BatchEncodeResult, error) {
	if len(inputs) == 0 {
		return domain.BatchEncodeResult{}, nil
	}
	return e.create(ctx, inputs)
}

func (e *Encoder) create(ctx context.Context, inputs []string) (domain.BatchEncodeResult, error) {
	req := openai.EmbeddingRequest{
		Input:          inputs,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	model := string(e.model)
	start := time.Now()

	resp, err := e.client.CreateEmbeddings(ctx, req)

	duration := time.Since(start)

	if err != nil {
		e.fail("api_error")
		return domain.BatchEncodeResult{}, parseAPIError(err)
	}

	if len(resp.Data) != len(inputs) {
		e.fail("count_mismatch")
		return domain.BatchEncodeResult{}, fmt.Errorf("encoder %s returned %d vectors for %d inputs: %w",
			e.name, len(resp.Data), len(inputs), domain.ErrEncoderProviderError)
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	for i, d := range data {
		if len(d.Embedding) == 0 {
			e.fail("empty_response")
			return domain.BatchEncodeResult{}, fmt.Errorf("empty vector at %d: %w", i, domain.ErrEncoderProviderError)
		}
		vectors[i] = d.Embedding
	}

	metrics.EncoderRequestsTotal.WithLabelValues(e.name, model, "success").Inc()
	metrics.EncoderRequestDuration.WithLabelValues(e.name, model).Observe(duration.Seconds())

	promptTokens := resp.Usage.PromptTokens
	totalTokens := resp.Usage.TotalTokens
	if totalTokens > 0 {
		metrics.EncoderTokensTotal.WithLabelValues(e.name, model, "prompt").Add(float64(promptTokens))
		metrics.EncoderTokensTotal.WithLabelValues(e.name, model, "total").Add(float64(totalTokens))
	}

	return domain.BatchEncodeResult{
		Vectors:      vectors,
		PromptTokens: promptTokens,
		TotalTokens:  totalTokens,
	}, nil
}

func (e *Encoder) fail(kind string) {
	model := string(e.model)
	metrics.EncoderRequestsTotal.WithLabelValues(e.name, model, "error").Inc()
	metrics.EncoderErrorsTotal.WithLabelValues(e.name, model, kind).Inc()
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Encoder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors wrap domain.ErrEncoderProviderError so the transport answers 502.
func parseAPIError(err error) error {
	wrap := domain.ErrEncoderProviderError

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("encoder API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("encoder API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("encoder request failed: %w: %w", err, wrap)
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}

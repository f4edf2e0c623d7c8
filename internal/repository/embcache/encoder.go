package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridq/internal/db"
	"github.com/kailas-cloud/hybridq/internal/domain"
)

// KeyPrefix prefixes every cached query embedding.
const KeyPrefix = "hybridq:emb_cache:"

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	GetMulti(ctx context.Context, keys []string) ([][]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEncoder caches query embeddings of one encoder in a key-value store.
// Keys are scoped by encoder and model so two encoders never share vectors.
type CachedEncoder struct {
	inner      domain.Encoder
	store      store
	encoder    string
	model      string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// Config describes the cache scope of one encoder.
type Config struct {
	Encoder string
	Model   string
	// TTL of cached vectors; zero keeps them forever.
	TTL time.Duration
}

// New creates a caching decorator.
// cacheTotal is a counter vec with labels "encoder" and "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.Encoder,
	s store,
	cfg Config,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEncoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEncoder{
		inner:      inner,
		store:      s,
		encoder:    cfg.Encoder,
		model:      cfg.Model,
		ttl:        cfg.TTL,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Encode returns a cached vector or calls the inner encoder.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
func (c *CachedEncoder) Encode(ctx context.Context, input string) (domain.EncodeResult, error) {
	key := c.cacheKey(input)

	if vec, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit", 1)
		return domain.EncodeResult{Vector: vec}, nil
	}

	c.incCache("miss", 1)

	result, err := c.inner.Encode(ctx, input)
	if err != nil {
		return domain.EncodeResult{}, fmt.Errorf("encode input: %w", err)
	}

	c.putToCache(ctx, key, result.Vector)
	return result, nil
}

// BatchEncode looks all inputs up in one round trip and encodes only the misses.
func (c *CachedEncoder) BatchEncode(ctx context.Context, inputs []string) (domain.BatchEncodeResult, error) {
	if len(inputs) == 0 {
		return domain.BatchEncodeResult{}, nil
	}

	keys := make([]string, len(inputs))
	for i, in := range inputs {
		keys[i] = c.cacheKey(in)
	}

	vectors := make([][]float32, len(inputs))
	cached, err := c.store.GetMulti(ctx, keys)
	if err != nil {
		c.logger.Warn("Failed to get cached embeddings", zap.String("encoder", c.encoder), zap.Error(err))
		cached = nil
	}

	var missIdx []int
	var missInputs []string
	for i := range inputs {
		if i < len(cached) && len(cached[i]) > 0 {
			if vec, err := bytesToVector(cached[i]); err == nil {
				vectors[i] = vec
				continue
			}
			c.logger.Warn("Failed to parse cached embedding", zap.String("key", keys[i]))
		}
		missIdx = append(missIdx, i)
		missInputs = append(missInputs, inputs[i])
	}

	c.incCache("hit", len(inputs)-len(missIdx))
	c.incCache("miss", len(missIdx))

	if len(missIdx) == 0 {
		return domain.BatchEncodeResult{Vectors: vectors}, nil
	}

	res, err := domain.BatchEncode(ctx, c.inner, missInputs)
	if err != nil {
		return domain.BatchEncodeResult{}, fmt.Errorf("batch encode misses: %w", err)
	}
	if len(res.Vectors) != len(missIdx) {
		return domain.BatchEncodeResult{}, fmt.Errorf("encoder %s returned %d vectors for %d inputs: %w",
			c.encoder, len(res.Vectors), len(missIdx), domain.ErrEncoderProviderError)
	}

	for j, i := range missIdx {
		vectors[i] = res.Vectors[j]
		c.putToCache(ctx, keys[i], res.Vectors[j])
	}

	return domain.BatchEncodeResult{
		Vectors:      vectors,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

func (c *CachedEncoder) incCache(result string, n int) {
	if c.cacheTotal != nil && n > 0 {
		c.cacheTotal.WithLabelValues(c.encoder, result).Add(float64(n))
	}
}

func (c *CachedEncoder) cacheKey(input string) string {
	h := sha256.Sum256([]byte(input))
	return KeyPrefix + c.encoder + ":" + c.model + ":" + hex.EncodeToString(h[:])
}

func (c *CachedEncoder) getFromCache(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	vec, err := bytesToVector(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	return vec, true
}

func (c *CachedEncoder) putToCache(ctx context.Context, key string, vec []float32) {
	data := vectorToCacheBytes(vec)
	var err error
	if c.ttl > 0 {
		err = c.store.SetWithTTL(ctx, key, data, c.ttl)
	} else {
		err = c.store.Set(ctx, key, data)
	}
	if err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

func vectorToCacheBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}

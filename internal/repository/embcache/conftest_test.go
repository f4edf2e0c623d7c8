package embcache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridq/internal/db"
	"github.com/kailas-cloud/hybridq/internal/domain"
)

type mockEncoder struct {
	result      domain.EncodeResult
	err         error
	batchErr    error
	batchCalls  int
	batchInputs []string
}

func (m *mockEncoder) Encode(_ context.Context, _ string) (domain.EncodeResult, error) {
	return m.result, m.err
}

func (m *mockEncoder) BatchEncode(_ context.Context, inputs []string) (domain.BatchEncodeResult, error) {
	m.batchCalls++
	m.batchInputs = inputs
	if m.batchErr != nil {
		return domain.BatchEncodeResult{}, m.batchErr
	}
	vectors := make([][]float32, len(inputs))
	for i := range inputs {
		vectors[i] = m.result.Vector
	}
	return domain.BatchEncodeResult{
		Vectors:      vectors,
		PromptTokens: m.result.PromptTokens * len(inputs),
		TotalTokens:  m.result.TotalTokens * len(inputs),
	}, nil
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	data    map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
	getKeys []string
}

func newMockKVStore() *mockKVStore {
	return &mockKVStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *mockKVStore) Get(_ context.Context, key string) ([]byte, error) {
	m.getKeys = append(m.getKeys, key)
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKVStore) GetMulti(_ context.Context, keys []string) ([][]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = m.data[k]
	}
	return out, nil
}

func (m *mockKVStore) Set(_ context.Context, key string, value []byte) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *mockKVStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func newTestCachedEncoder(t *testing.T, inner *mockEncoder, ttl time.Duration) (*CachedEncoder, *mockKVStore) {
	t.Helper()
	ms := newMockKVStore()
	ce := New(inner, ms, Config{Encoder: "clip", Model: "clip-vit-b32", TTL: ttl}, nil, zap.NewNop())
	return ce, ms
}

func domainResult(vec ...float32) domain.EncodeResult {
	return domain.EncodeResult{Vector: vec}
}

package encode

import (
	"context"
	"sync"
	"testing"

	"github.com/kailas-cloud/hybridq/internal/domain"
	"github.com/kailas-cloud/hybridq/internal/domain/mapping"
)

// mockEncoder returns a vector of dim copies of the input length, so tests can tell inputs apart.
type mockEncoder struct {
	mu     sync.Mutex
	dim    int
	tokens int
	err    error
	calls  [][]string
}

func (m *mockEncoder) vector(input string) []float32 {
	v := make([]float32, m.dim)
	for i := range v {
		v[i] = float32(len(input))
	}
	return v
}

func (m *mockEncoder) Encode(_ context.Context, input string) (domain.EncodeResult, error) {
	if m.err != nil {
		return domain.EncodeResult{}, m.err
	}
	return domain.EncodeResult{Vector: m.vector(input), TotalTokens: m.tokens}, nil
}

func (m *mockEncoder) BatchEncode(_ context.Context, inputs []string) (domain.BatchEncodeResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, inputs)
	m.mu.Unlock()
	if m.err != nil {
		return domain.BatchEncodeResult{}, m.err
	}
	vectors := make([][]float32, len(inputs))
	for i, in := range inputs {
		vectors[i] = m.vector(in)
	}
	return domain.BatchEncodeResult{Vectors: vectors, TotalTokens: m.tokens * len(inputs)}, nil
}

func (m *mockEncoder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// testSet: clip (4 dims) indexes title and gif, sbert (3 dims) indexes description.
func testSet(t *testing.T) mapping.Set {
	t.Helper()
	clip, err := mapping.New("clip", 4, []string{"title", "gif"})
	if err != nil {
		t.Fatalf("mapping.New: %v", err)
	}
	sbert, err := mapping.New("sbert", 3, []string{"description"})
	if err != nil {
		t.Fatalf("mapping.New: %v", err)
	}
	set, err := mapping.NewSet("title", clip, sbert)
	if err != nil {
		t.Fatalf("mapping.NewSet: %v", err)
	}
	return set
}

package encode

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridq/internal/domain"
	"github.com/kailas-cloud/hybridq/internal/domain/document"
	"github.com/kailas-cloud/hybridq/internal/domain/mapping"
	"github.com/kailas-cloud/hybridq/internal/domain/modality"
	"github.com/kailas-cloud/hybridq/internal/logger"
)

// Binding attaches a live encoder to an encoder name of the schema.
type Binding struct {
	Name string
	// Modalities the encoder accepts; empty means text only.
	Modalities []modality.Modality
	Encoder    domain.Encoder
}

func (b Binding) accepts(m modality.Modality) bool {
	if len(b.Modalities) == 0 {
		return m == modality.Text
	}
	return slices.Contains(b.Modalities, m)
}

// Service fills missing query embeddings of flattened documents.
// Each encoder receives one deduplicated batch per request; batches of different
// encoders run concurrently on a bounded worker pool.
type Service struct {
	set      mapping.Set
	bindings map[string]Binding
	pool     *ants.Pool
}

// New creates an encode service. poolSize <= 0 picks NumCPU/2.
func New(set mapping.Set, bindings []Binding, poolSize int) (*Service, error) {
	byName := make(map[string]Binding, len(bindings))
	for _, b := range bindings {
		if b.Name == "" || b.Encoder == nil {
			return nil, fmt.Errorf("encoder binding requires a name and an encoder")
		}
		if _, dup := byName[b.Name]; dup {
			return nil, fmt.Errorf("duplicate encoder binding %q", b.Name)
		}
		byName[b.Name] = b
	}

	if poolSize <= 0 {
		poolSize = max(runtime.NumCPU()/2, 1)
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("create encode pool: %w", err)
	}

	return &Service{set: set, bindings: byName, pool: pool}, nil
}

// Release stops the worker pool. The service must not be used afterwards.
func (s *Service) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
}

// Encoders returns the bound encoders keyed by name.
func (s *Service) Encoders() map[string]domain.Encoder {
	out := make(map[string]domain.Encoder, len(s.bindings))
	for name, b := range s.bindings {
		out[name] = b.Encoder
	}
	return out
}

// slot addresses one leaf of one document.
type slot struct {
	doc, chunk int
}

// job is the batch of distinct inputs one encoder has to vectorize.
type job struct {
	binding Binding
	inputs  []string
	targets [][]slot
	vectors [][]float32
}

// Encode returns copies of docs with the embeddings the schema needs filled in.
// A leaf is encoded by the encoder that indexes its field (or, for fields unknown to
// the schema, by every bound encoder accepting its modality) unless it already
// carries that embedding. Text leaves are encoded from their text, other leaves from
// their URI. A non-text leaf left without any embedding fails with
// domain.ErrEncoderNotConfigured.
func (s *Service) Encode(ctx context.Context, docs []document.Document) ([]document.Document, error) {
	out := copyDocs(docs)
	jobs, order := s.plan(out)

	if err := s.run(ctx, jobs, order); err != nil {
		return nil, err
	}

	for _, name := range order {
		j := jobs[name]
		for i, slots := range j.targets {
			for _, sl := range slots {
				out[sl.doc].Chunks[sl.chunk].SetEmbedding(name, j.vectors[i])
			}
		}
	}

	for _, d := range out {
		for i, c := range d.Chunks {
			if c != nil && c.Modality != modality.Text && len(c.Embeddings) == 0 {
				return nil, fmt.Errorf("%w: document %q chunk %d (%s %s) has no embedding and no encoder accepts it",
					domain.ErrEncoderNotConfigured, d.ID, i, c.Field, c.Modality)
			}
		}
	}

	logger.FromContext(ctx).Debug("Query encoding completed",
		zap.Int("documents", len(out)),
		zap.Int("encoders", len(order)),
	)
	return out, nil
}

func (s *Service) plan(docs []document.Document) (map[string]*job, []string) {
	jobs := make(map[string]*job)
	var order []string
	seen := make(map[string]map[string]int)

	for di, d := range docs {
		for ci, c := range d.Chunks {
			if c == nil {
				continue
			}
			input := c.Text
			if c.Modality != modality.Text {
				input = c.URI
			}
			if input == "" {
				continue
			}
			for _, name := range s.targets(c) {
				if _, ok := c.Embedding(name); ok {
					continue
				}
				j, ok := jobs[name]
				if !ok {
					j = &job{binding: s.bindings[name]}
					jobs[name] = j
					seen[name] = make(map[string]int)
					order = append(order, name)
				}
				idx, ok := seen[name][input]
				if !ok {
					idx = len(j.inputs)
					seen[name][input] = idx
					j.inputs = append(j.inputs, input)
					j.targets = append(j.targets, nil)
				}
				j.targets[idx] = append(j.targets[idx], slot{doc: di, chunk: ci})
			}
		}
	}
	return jobs, order
}

// targets lists the bound encoders that should vectorize a leaf.
func (s *Service) targets(c *document.Chunk) []string {
	if enc, ok := s.set.EncoderForField(c.Field); ok {
		if b, bound := s.bindings[enc]; bound && b.accepts(c.Modality) {
			return []string{enc}
		}
		return nil
	}
	var out []string
	for _, name := range s.set.Encoders() {
		if b, bound := s.bindings[name]; bound && b.accepts(c.Modality) {
			out = append(out, name)
		}
	}
	return out
}

func (s *Service) run(ctx context.Context, jobs map[string]*job, order []string) error {
	if len(order) == 0 {
		return nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	for _, name := range order {
		j := jobs[name]
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				record(err)
				return
			}
			res, err := domain.BatchEncode(ctx, j.binding.Encoder, j.inputs)
			if err != nil {
				record(fmt.Errorf("encoder %s: %w", j.binding.Name, err))
				return
			}
			if len(res.Vectors) != len(j.inputs) {
				record(fmt.Errorf("encoder %s returned %d vectors for %d inputs: %w",
					j.binding.Name, len(res.Vectors), len(j.inputs), domain.ErrEncoderProviderError))
				return
			}
			j.vectors = res.Vectors
		})
		if err != nil {
			wg.Done()
			record(fmt.Errorf("submit encoder %s: %w", name, err))
		}
	}
	wg.Wait()

	return errors.Join(errs...)
}

func copyDocs(docs []document.Document) []document.Document {
	out := make([]document.Document, len(docs))
	for i, d := range docs {
		chunks := make([]*document.Chunk, len(d.Chunks))
		for j, c := range d.Chunks {
			if c == nil {
				continue
			}
			cp := *c
			cp.Embeddings = append([]document.Embedding(nil), c.Embeddings...)
			chunks[j] = &cp
		}
		out[i] = document.Document{ID: d.ID, Chunks: chunks}
	}
	return out
}

package hybridq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridq/internal/app"
	"github.com/kailas-cloud/hybridq/internal/config"
	"github.com/kailas-cloud/hybridq/internal/db"
	"github.com/kailas-cloud/hybridq/internal/domain"
	"github.com/kailas-cloud/hybridq/internal/domain/modality"
	"github.com/kailas-cloud/hybridq/internal/domain/search/request"
	compileuc "github.com/kailas-cloud/hybridq/internal/usecase/compile"
	"github.com/kailas-cloud/hybridq/internal/usecase/encode"
)

const defaultReadinessTimeout = 10

// Compiler is the hybridq library entry point.
type Compiler struct {
	schema   Schema
	store    db.Store
	encoding *encode.Service
	svc      *compileuc.Service
	obs      *observer
}

// New creates a Compiler. WithSchema is required; a cache connection is
// opened only when WithValkey or WithRedis is given.
func New(opts ...Option) (*Compiler, error) {
	cfg := &compilerConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	set, err := cfg.schema.toConfig().MappingSet()
	if err != nil {
		return nil, fmt.Errorf("hybridq: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	var store db.Store
	if len(cfg.addrs) > 0 {
		store, err = app.OpenStore(context.Background(), config.CacheConfig{
			Driver:           cfg.driver,
			Addrs:            cfg.addrs,
			Password:         cfg.password,
			ReadinessTimeout: defaultReadinessTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("hybridq: %w", err)
		}
	}

	encoding, err := encode.New(set, bindings(cfg, store), cfg.poolSize)
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("hybridq: %w", err)
	}

	svc, err := compileuc.New(set, cfg.query, encoding)
	if err != nil {
		encoding.Release()
		closeStore(store)
		return nil, fmt.Errorf("hybridq: %w", err)
	}

	return &Compiler{
		schema:   cfg.schema,
		store:    store,
		encoding: encoding,
		svc:      svc,
		obs:      obs,
	}, nil
}

func bindings(cfg *compilerConfig, store db.Store) []encode.Binding {
	var kv db.KVStore
	if store != nil {
		kv = store
	}
	out := make([]encode.Binding, 0, len(cfg.encoders))
	for _, be := range cfg.encoders {
		mods := make([]modality.Modality, len(be.spec.Modalities))
		for i, m := range be.spec.Modalities {
			mods[i] = modality.Modality(m)
		}
		var enc domain.Encoder
		if be.encoder != nil {
			enc = app.BuildEncoder(&encoderAdapter{inner: be.encoder}, be.spec.Name, config.EncoderConfig{
				Model:       be.spec.Model,
				Instruction: be.spec.Instruction,
			}, kv, cfg.cacheTTL, zap.NewNop())
		}
		out = append(out, encode.Binding{Name: be.spec.Name, Modalities: mods, Encoder: enc})
	}
	return out
}

// Close releases the encoder pool and the cache connection.
func (c *Compiler) Close() {
	c.encoding.Release()
	closeStore(c.store)
}

func closeStore(store db.Store) {
	if store != nil {
		store.Close()
	}
}

// Ping checks cache connectivity. Without a cache it always succeeds.
func (c *Compiler) Ping(ctx context.Context) (err error) {
	if c.store == nil {
		return nil
	}
	start := time.Now()
	defer func() { c.obs.observe(opPing, start, err) }()

	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Schema returns the schema the compiler was built with.
func (c *Compiler) Schema() Schema { return c.schema }

// Compile turns every query document of req into an engine query.
// Any error aborts the whole request; use errors.Is with the exported sentinels.
func (c *Compiler) Compile(ctx context.Context, req Request) (res Result, err error) {
	start := time.Now()
	defer func() {
		c.obs.observe(opCompile, start, err, "documents", len(req.Documents), "encoder_tokens", res.EncoderTokens)
		if err == nil {
			c.obs.compiled(res)
		}
	}()

	docs, err := toInternalDocuments(req.Documents)
	if err != nil {
		return Result{}, fmt.Errorf("compile: %w", err)
	}
	calc, err := toInternalCalculation(req.ScoreCalculation)
	if err != nil {
		return Result{}, fmt.Errorf("compile: %w", err)
	}
	r, err := request.New(docs, req.Filters, calc, req.ScoreBreakdown, req.Limit)
	if err != nil {
		return Result{}, fmt.Errorf("compile: %w: %w", domain.ErrInvalidRequest, err)
	}

	ctx, usage := domain.NewContextWithUsage(ctx)
	compiled, err := c.svc.Compile(ctx, &r)
	if err != nil {
		return Result{}, fmt.Errorf("compile: %w", err)
	}

	queries, err := fromCompiled(compiled)
	if err != nil {
		return Result{}, fmt.Errorf("compile: %w", err)
	}
	return Result{Queries: queries, EncoderTokens: usage.TotalTokens()}, nil
}

// Mapping renders the create-index body of the schema. An empty indexName
// falls back to Schema.IndexName.
func (c *Compiler) Mapping(indexName string) (body map[string]any, err error) {
	start := time.Now()
	defer func() { c.obs.observe(opMapping, start, err, "index", indexName) }()

	if indexName == "" {
		indexName = c.schema.IndexName
	}
	if indexName == "" {
		return nil, errors.New("hybridq: index name required")
	}
	def, err := c.svc.IndexMapping(indexName, c.schema.toConfig().CompileTags())
	if err != nil {
		return nil, fmt.Errorf("mapping: %w", err)
	}
	return def.Body(), nil
}

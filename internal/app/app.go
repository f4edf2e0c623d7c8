// Package app is the composition root shared by the hybridq server and CLI.
package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridq/internal/config"
	"github.com/kailas-cloud/hybridq/internal/db"
	dbRedis "github.com/kailas-cloud/hybridq/internal/db/redis"
	"github.com/kailas-cloud/hybridq/internal/domain"
	"github.com/kailas-cloud/hybridq/internal/metrics"
	"github.com/kailas-cloud/hybridq/internal/repository/embcache"
	openaiEnc "github.com/kailas-cloud/hybridq/internal/transport/openai"
	compileuc "github.com/kailas-cloud/hybridq/internal/usecase/compile"
	"github.com/kailas-cloud/hybridq/internal/usecase/encode"
	healthuc "github.com/kailas-cloud/hybridq/internal/usecase/health"
)

// App holds the wired services.
type App struct {
	Compiler *compileuc.Service
	Encoding *encode.Service
	Health   *healthuc.Service
	// Store is nil when the embedding cache is disabled.
	Store db.Store
}

// Build wires the compiler from a validated configuration.
// When the cache is enabled it connects and waits for readiness.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	set, err := cfg.Schema.MappingSet()
	if err != nil {
		return nil, err
	}

	var store db.Store
	if cfg.Cache.Enabled {
		store, err = OpenStore(ctx, cfg.Cache)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to embedding cache",
			zap.String("driver", cfg.Cache.Driver),
			zap.Strings("addrs", cfg.Cache.Addrs),
		)
	}

	names := make([]string, 0, len(cfg.Encoders))
	for name := range cfg.Encoders {
		names = append(names, name)
	}
	sort.Strings(names)

	bindings := make([]encode.Binding, 0, len(names))
	checkers := make(map[string]healthuc.EncoderChecker, len(names))
	for _, name := range names {
		encCfg := cfg.Encoders[name]
		base := openaiEnc.NewEncoder(&openaiEnc.Config{
			Name:       name,
			APIKey:     encCfg.APIKey,
			BaseURL:    encCfg.BaseURL,
			Model:      encCfg.Model,
			Dimensions: encCfg.Dimensions,
			User:       encCfg.User,
			Logger:     logger,
		})
		bindings = append(bindings, encode.Binding{
			Name:       name,
			Modalities: encCfg.ModalityList(),
			Encoder:    BuildEncoder(base, name, encCfg, store, cfg.Cache.TTL(), logger),
		})
		checkers[name] = base
		logger.Info("Encoder configured",
			zap.String("encoder", name),
			zap.String("model", encCfg.Model),
			zap.Int("dimensions", encCfg.Dimensions),
		)
	}

	encodeSvc, err := encode.New(set, bindings, cfg.Encoding.PoolSize)
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("create encode service: %w", err)
	}

	compiler, err := compileuc.New(set, cfg.Query.CompileOptions(), encodeSvc)
	if err != nil {
		encodeSvc.Release()
		closeStore(store)
		return nil, fmt.Errorf("create compiler: %w", err)
	}

	var pinger healthuc.CachePinger
	if store != nil {
		pinger = store
	}

	return &App{
		Compiler: compiler,
		Encoding: encodeSvc,
		Health:   healthuc.New(pinger, checkers),
		Store:    store,
	}, nil
}

// Close releases the worker pool and the cache connection.
func (a *App) Close() {
	a.Encoding.Release()
	closeStore(a.Store)
}

// OpenStore connects to the cache described by cfg and waits until it answers.
func OpenStore(ctx context.Context, cfg config.CacheConfig) (db.Store, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Driver:   dbRedis.Driver(cfg.Driver),
		Addrs:    cfg.Addrs,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("cache not ready: %w", err)
	}
	return store, nil
}

// BuildEncoder assembles the decorator chain: provider -> cached -> instrumented -> instruction.
func BuildEncoder(
	base domain.Encoder,
	name string,
	encCfg config.EncoderConfig,
	store db.KVStore,
	ttl time.Duration,
	logger *zap.Logger,
) domain.Encoder {
	enc := base
	if store != nil {
		enc = embcache.New(base, store, embcache.Config{
			Encoder: name,
			Model:   encCfg.Model,
			TTL:     ttl,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	enc = encode.NewInstrumentedEncoder(enc, name, encCfg.Model, logger)

	// Outermost, so the cache key includes the instruction.
	if encCfg.Instruction != "" {
		return domain.NewInstructionEncoder(enc, encCfg.Instruction)
	}
	return enc
}

func closeStore(store db.Store) {
	if store != nil {
		store.Close()
	}
}

package engine

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rushteam/catalogrec/cache"
	"github.com/rushteam/catalogrec/catalog"
	"github.com/rushteam/catalogrec/config"
	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/feast"
	"github.com/rushteam/catalogrec/logging"
	"github.com/rushteam/catalogrec/store"
	"github.com/rushteam/catalogrec/telemetry"
)

// catalogBackend 是同时提供商品数据与偏好存储的后端。
type catalogBackend interface {
	core.CatalogStore
	core.PreferenceStore
}

// Open 按配置组装 Engine：Block 定义、目录存储、缓存存储与熔断器、Feast 信号、Prometheus 指标。
// reg 为 nil 时使用 prometheus.DefaultRegisterer。返回的 Engine 需要调用 Close。
//
// opts 在配置之后应用，可覆盖配置项（例如测试替换 Clock）。
func Open(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, opts ...Option) (eng *Engine, err error) {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	logger := logging.New(cfg.Logging)

	var closers []func() error
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i]()
			}
		}
	}()

	blocks := config.NewMemoryBlockRepository()
	if cfg.BlocksPath != "" {
		defs, err := config.LoadBlocks(cfg.BlocksPath)
		if err != nil {
			return nil, err
		}
		blocks.Replace(defs)
	}

	var backend catalogBackend
	switch cfg.Catalog.Driver {
	case "sqlite":
		db, err := catalog.OpenSQLite(ctx, cfg.Catalog.Path)
		if err != nil {
			return nil, err
		}
		closers = append(closers, db.Close)
		backend = db
	default:
		backend = catalog.NewMemoryCatalog()
	}

	var kv core.KeyValueStore
	switch cfg.Cache.Backend {
	case "redis":
		rs, err := store.NewRedisStore(ctx, cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB)
		if err != nil {
			return nil, err
		}
		kv = rs
	default:
		kv = store.NewMemoryStoreWithSweep(cfg.Cache.SweepInterval)
	}
	closers = append(closers, kv.Close)

	var (
		recorder telemetry.Recorder = telemetry.Nop{}
		prom     *telemetry.Prometheus
	)
	if cfg.Telemetry.Enabled {
		prom = telemetry.NewPrometheus(reg)
		async := telemetry.NewAsync(prom, cfg.Telemetry.BufferSize, logger)
		closers = append(closers, async.Close)
		recorder = async
	}

	var cacheOpts []cache.Option
	if cfg.Cache.BreakerEnabled {
		bcfg := cfg.Cache.Breaker
		if prom != nil {
			bcfg.OnStateChange = prom.BreakerStateChanged
		}
		cacheOpts = append(cacheOpts, cache.WithBreaker(cache.NewBreaker(bcfg, logging.Component(logger, "cache"))))
	}

	deps := Deps{
		Blocks:      blocks,
		Catalog:     backend,
		Preferences: backend,
		Cache:       cache.New(kv, cacheOpts...),
	}

	if cfg.Feast.Enabled {
		fopts := []feast.ClientOption{feast.WithTimeout(cfg.Feast.Timeout)}
		if cfg.Feast.Token != "" {
			fopts = append(fopts, feast.WithToken(cfg.Feast.Token))
		}
		if cfg.Feast.TLS {
			fopts = append(fopts, feast.WithTLS())
		}
		client, err := feast.NewGrpcClient(cfg.Feast.Endpoint, cfg.Feast.Project, fopts...)
		if err != nil {
			return nil, fmt.Errorf("feast client: %w", err)
		}
		closers = append(closers, client.Close)
		src := feast.NewSignalSource(client, cfg.Feast.Project)
		src.Features = cfg.Feast.Features
		deps.Signals = src
	}

	all := []Option{
		WithLogger(logger),
		WithRecorder(recorder),
		WithDeadline(cfg.Engine.GenerationDeadline),
		WithMinQualityScore(cfg.Engine.MinQualityScore),
		WithSingleflight(cfg.Engine.Singleflight),
		WithReviewRatingScale(cfg.Engine.ScaleReviewByRating),
	}
	for _, c := range closers {
		all = append(all, withCloser(c))
	}
	all = append(all, opts...)

	logger.Info().
		Str("catalog", backend.Name()).
		Str("cache", kv.Name()).
		Bool("feast", cfg.Feast.Enabled).
		Bool("telemetry", cfg.Telemetry.Enabled).
		Int("blocks", len(blocks.Names())).
		Msg("recommendation engine ready")
	return New(deps, all...), nil
}

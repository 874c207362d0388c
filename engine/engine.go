// Package engine 是推荐生成的入口（Orchestrator）。
//
// 一次 GetRecommendations 调用：
//  1. 按名称解析 Block，不存在或未启用时走 Fallback
//  2. 计算缓存 key，命中则累加命中计数并原样返回
//  3. 未命中时在截止时间内聚合各算法，非空结果写入缓存
//  4. 记录性能样本
//
// 任何错误或 panic 都在顶层被捕获并转为 Fallback 结果，调用方永远不会收到错误。
package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/rushteam/catalogrec/aggregate"
	"github.com/rushteam/catalogrec/cache"
	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/feedback"
	"github.com/rushteam/catalogrec/filter"
	"github.com/rushteam/catalogrec/logging"
	"github.com/rushteam/catalogrec/strategy"
	"github.com/rushteam/catalogrec/telemetry"
)

// Deps 是 Engine 的外部协作者。Blocks 与 Catalog 必填，其余可选。
type Deps struct {
	Blocks      core.BlockRepository
	Catalog     core.CatalogStore
	Preferences core.PreferenceStore
	Signals     core.SignalSource

	// Cache 为 nil 时不缓存
	Cache *cache.Cache
}

// RequestContext 是调用方传入的场景信息（context.type 与任意参数）。
type RequestContext struct {
	Type   string
	Params map[string]any
}

// Engine 是 Recommendation Orchestrator，并发安全。
type Engine struct {
	deps       Deps
	factory    *strategy.Factory
	aggregator *aggregate.Aggregator
	feedback   *feedback.Loop

	clock    core.Clock
	logger   zerolog.Logger
	recorder telemetry.Recorder
	deadline time.Duration
	minScore float64

	coalesce     bool
	group        singleflight.Group
	scaleReviews bool

	closers []func() error
}

// Option 配置 Engine。
type Option func(*Engine)

// WithClock 替换时间源；截止时间与执行耗时都按它计算。
func WithClock(c core.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLogger 设置 Logger。
//
//nolint:gocritic // zerolog.Logger 按值传递
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRecorder 设置性能样本的接收方。
func WithRecorder(r telemetry.Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithDeadline 设置一次生成的时间预算，默认 30s。
func WithDeadline(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.deadline = d
		}
	}
}

// WithFactory 使用自定义的算法分发表（注册额外算法或替换内置算法）。
func WithFactory(f *strategy.Factory) Option {
	return func(e *Engine) {
		if f != nil {
			e.factory = f
		}
	}
}

// WithMinQualityScore 设置质量过滤阈值，默认 0.3。
func WithMinQualityScore(score float64) Option {
	return func(e *Engine) {
		if score > 0 {
			e.minScore = score
		}
	}
}

// WithSingleflight 控制是否合并同一缓存 key 的并发未命中，默认开启。
func WithSingleflight(enabled bool) Option {
	return func(e *Engine) { e.coalesce = enabled }
}

// WithReviewRatingScale 开启后 review 的偏好增量按评分缩放。
func WithReviewRatingScale(enabled bool) Option {
	return func(e *Engine) { e.scaleReviews = enabled }
}

// withCloser 注册 Close 时释放的资源。
func withCloser(fn func() error) Option {
	return func(e *Engine) { e.closers = append(e.closers, fn) }
}

// New 创建 Engine。
func New(deps Deps, opts ...Option) *Engine {
	e := &Engine{
		deps:     deps,
		factory:  strategy.NewFactory(),
		clock:    core.SystemClock{},
		logger:   logging.Nop(),
		recorder: telemetry.Nop{},
		deadline: aggregate.DefaultDeadline,
		minScore: filter.DefaultMinScore,
		coalesce: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.Component(e.logger, "engine")

	sdeps := strategy.Deps{
		Catalog:     deps.Catalog,
		Preferences: deps.Preferences,
		Signals:     deps.Signals,
		Clock:       e.clock,
	}
	e.aggregator = aggregate.New(e.factory, sdeps, e.logger)
	e.aggregator.MinScore = e.minScore

	fopts := []feedback.Option{
		feedback.WithClock(e.clock),
		feedback.WithLogger(e.logger),
		feedback.WithReviewRatingScale(e.scaleReviews),
	}
	if rec, ok := deps.Catalog.(core.InteractionRecorder); ok {
		fopts = append(fopts, feedback.WithRecorder(rec))
	}
	e.feedback = feedback.New(deps.Preferences, fopts...)
	return e
}

// GetRecommendations 返回 blockName 推荐位的候选列表。user、product 可为 nil。
// 从不返回错误：任何失败都以 Fallback 结果（热门商品）代替，结果可能为空。
func (e *Engine) GetRecommendations(
	ctx context.Context,
	blockName string,
	user *core.User,
	product *core.Product,
	req RequestContext,
) (out []*core.Candidate) {
	start := e.clock.Now()
	rctx := newRecommendContext(blockName, user, product, req)
	base := e.logger.With().Str("block", blockName).Logger()
	ctx = logging.WithRequestID(ctx, base, uuid.NewString())
	logger := *logging.Ctx(ctx, base)

	sample := core.PerformanceSample{BlockName: blockName}
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("user_id", rctx.UserID()).
				Str("product_id", rctx.ProductID()).
				Str("context_type", rctx.Type).
				Interface("context", rctx.Params).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("recommendation generation panicked, using fallback")
			sample.CacheHit = false
			sample.Fallback = true
			out = e.fallback(ctx, rctx, logger)
		}
		sample.ExecutionTime = e.clock.Now().Sub(start)
		sample.ResultCount = len(out)
		e.emit(logger, sample)
	}()

	items, hit, err := e.generate(ctx, rctx, logger)
	if err != nil {
		ev := logger.Error()
		if core.IsConfigurationMissing(err) {
			ev = logger.Warn()
		}
		ev.Err(err).
			Str("user_id", rctx.UserID()).
			Str("product_id", rctx.ProductID()).
			Str("context_type", rctx.Type).
			Interface("context", rctx.Params).
			Msg("recommendation generation failed, using fallback")
		sample.Fallback = true
		return e.fallback(ctx, rctx, logger)
	}
	sample.CacheHit = hit
	return items
}

// Fallback 直接运行默认参数的热门算法，不读取任何 Block 配置。从不返回错误。
func (e *Engine) Fallback(ctx context.Context, user *core.User, product *core.Product, req RequestContext) []*core.Candidate {
	return e.fallback(ctx, newRecommendContext("", user, product, req), e.logger)
}

//nolint:gocritic // zerolog.Logger 按值传递
func (e *Engine) fallback(ctx context.Context, rctx *core.RecommendContext, logger zerolog.Logger) (out []*core.Candidate) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("fallback panicked")
			out = []*core.Candidate{}
		}
	}()
	items, err := strategy.NewPopularity(e.deps.Catalog, e.deps.Signals).Generate(ctx, rctx)
	if err != nil {
		logger.Error().Err(err).Msg("fallback failed")
		return []*core.Candidate{}
	}
	if items == nil {
		items = []*core.Candidate{}
	}
	return items
}

// generate 执行 Block 解析、缓存查询与聚合；返回的 bool 表示是否命中缓存。
//
//nolint:gocritic // zerolog.Logger 按值传递
func (e *Engine) generate(ctx context.Context, rctx *core.RecommendContext, logger zerolog.Logger) ([]*core.Candidate, bool, error) {
	block, err := e.resolve(ctx, rctx.BlockName)
	if err != nil {
		return nil, false, err
	}

	key := cache.Key(block.Name, rctx.UserID(), rctx.ProductID(), rctx.Type, rctx.Params)
	if items, ok := e.lookup(ctx, key, logger); ok {
		return items, true, nil
	}

	if !e.coalesce {
		items, err := e.miss(ctx, block, rctx, key, logger)
		return items, false, err
	}
	return e.coalesced(ctx, block, rctx, key, logger)
}

// coalesced 合并同一 key 的并发未命中。共享的生成不随任一调用方取消，
// 每个调用方只按自己的 ctx 停止等待，并拿到各自独立的候选副本。
//
//nolint:gocritic // zerolog.Logger 按值传递
func (e *Engine) coalesced(
	ctx context.Context,
	block *core.Block,
	rctx *core.RecommendContext,
	key string,
	logger zerolog.Logger,
) ([]*core.Candidate, bool, error) {
	shared := context.WithoutCancel(ctx)
	ch := e.group.DoChan(key, func() (v any, err error) {
		// DoChan 在独立 goroutine 中重新抛出 panic，这里必须自行恢复
		defer func() {
			if r := recover(); r != nil {
				err = core.NewDomainError(core.ModuleAggregate, core.ErrorCodeAggregationFailure,
					fmt.Sprintf("shared generation panicked: %v\n%s", r, debug.Stack()))
			}
		}()
		return e.miss(shared, block, rctx, key, logger)
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return cloneCandidates(res.Val.([]*core.Candidate)), false, nil
	}
}

func cloneCandidates(items []*core.Candidate) []*core.Candidate {
	out := make([]*core.Candidate, len(items))
	for i, c := range items {
		out[i] = c.Clone()
	}
	return out
}

// resolve 读取启用中的 Block；不存在或未启用返回 CONFIGURATION_MISSING。
func (e *Engine) resolve(ctx context.Context, name string) (*core.Block, error) {
	if e.deps.Blocks == nil {
		return nil, core.NewDomainError(core.ModuleBlock, core.ErrorCodeConfigurationMissing, "engine: block repository not configured")
	}
	block, err := e.deps.Blocks.GetBlock(ctx, name)
	switch {
	case core.IsNotFound(err):
		return nil, core.WrapDomainError(core.ModuleBlock, core.ErrorCodeConfigurationMissing,
			fmt.Sprintf("block %q not found", name), err)
	case err != nil:
		return nil, err
	case block == nil:
		return nil, core.NewDomainError(core.ModuleBlock, core.ErrorCodeConfigurationMissing,
			fmt.Sprintf("block %q not found", name))
	case !block.Active:
		return nil, core.NewDomainError(core.ModuleBlock, core.ErrorCodeConfigurationMissing,
			fmt.Sprintf("block %q is inactive", name))
	}
	return block, nil
}

// lookup 查询缓存；缓存错误视为未命中。
//
//nolint:gocritic // zerolog.Logger 按值传递
func (e *Engine) lookup(ctx context.Context, key string, logger zerolog.Logger) ([]*core.Candidate, bool) {
	if e.deps.Cache == nil {
		return nil, false
	}
	entry, found, err := e.deps.Cache.Get(ctx, key)
	if err != nil {
		logger.Warn().Err(err).Str("cache_key", key).Msg("cache read failed, treating as miss")
		return nil, false
	}
	if !found {
		return nil, false
	}
	hits, err := e.deps.Cache.IncrementHitCount(ctx, key)
	if err != nil {
		// 条目在读取后过期，仍返回已读到的列表
		logger.Debug().Err(err).Str("cache_key", key).Msg("increment hit count failed")
	}
	logger.Debug().Str("cache_key", key).Int64("hit_count", hits).Msg("cache hit")

	items := entry.Candidates
	if items == nil {
		items = []*core.Candidate{}
	}
	return items, true
}

// miss 在截止时间内聚合算法，非空结果写入缓存。
//
//nolint:gocritic // zerolog.Logger 按值传递
func (e *Engine) miss(
	ctx context.Context,
	block *core.Block,
	rctx *core.RecommendContext,
	key string,
	logger zerolog.Logger,
) ([]*core.Candidate, error) {
	res, err := e.aggregator.Aggregate(ctx, block, rctx, e.clock.Now().Add(e.deadline))
	if err != nil {
		return nil, err
	}
	logger.Debug().
		Int("invoked", res.Invoked).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Int("results", len(res.Candidates)).
		Msg("aggregation finished")

	items := res.Candidates
	if items == nil {
		items = []*core.Candidate{}
	}
	if len(items) > 0 && e.deps.Cache != nil {
		if err := e.deps.Cache.Put(ctx, key, items, block.CacheTTL()); err != nil {
			logger.Warn().Err(err).Str("cache_key", key).Msg("cache write failed")
		}
	}
	return items, nil
}

//nolint:gocritic // zerolog.Logger 按值传递
func (e *Engine) emit(logger zerolog.Logger, s core.PerformanceSample) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("telemetry recorder panicked")
		}
	}()
	logger.Info().
		Dur("execution_time", s.ExecutionTime).
		Int("result_count", s.ResultCount).
		Bool("cache_hit", s.CacheHit).
		Bool("fallback", s.Fallback).
		Msg("recommendations generated")
	e.recorder.Record(s)
}

// Catalog 返回商品数据存储。
func (e *Engine) Catalog() core.CatalogStore { return e.deps.Catalog }

// Blocks 返回 Block 定义仓库。
func (e *Engine) Blocks() core.BlockRepository { return e.deps.Blocks }

// RecordInteraction 记录一次用户交互并更新偏好。从不返回错误。
func (e *Engine) RecordInteraction(ctx context.Context, user *core.User, product *core.Product, t core.InteractionType, rating float64) {
	e.feedback.RecordInteraction(ctx, user, product, t, rating)
}

// Close 释放 Engine 持有的资源（由 Open 创建的存储、客户端等），按创建的逆序关闭。
func (e *Engine) Close() error {
	var first error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	e.closers = nil
	return first
}

func newRecommendContext(blockName string, user *core.User, product *core.Product, req RequestContext) *core.RecommendContext {
	return &core.RecommendContext{
		BlockName: blockName,
		User:      user,
		Product:   product,
		Type:      req.Type,
		Params:    req.Params,
	}
}

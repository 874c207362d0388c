// Package aggregate 实现带截止时间的多算法聚合器。
//
// 按 Block 中的顺序逐个执行算法，每次执行前检查 clock.Now() 是否已过截止时间；
// 已在执行中的算法不会被打断，只有之后排队的算法会被跳过。
package aggregate

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/filter"
	"github.com/rushteam/catalogrec/logging"
	"github.com/rushteam/catalogrec/pipeline"
	"github.com/rushteam/catalogrec/pkg/utils"
	"github.com/rushteam/catalogrec/rerank"
	"github.com/rushteam/catalogrec/strategy"
)

// DefaultDeadline 是一次生成的默认时间预算。
const DefaultDeadline = 30 * time.Second

// Aggregator 是 Deadline-Bounded Aggregator。
type Aggregator struct {
	Factory *strategy.Factory
	Deps    strategy.Deps
	Clock   core.Clock
	Logger  zerolog.Logger

	// MinScore 是质量过滤阈值，默认 filter.DefaultMinScore
	MinScore float64
}

// New 创建 Aggregator。
func New(factory *strategy.Factory, deps strategy.Deps, logger zerolog.Logger) *Aggregator {
	if factory == nil {
		factory = strategy.NewFactory()
	}
	clock := deps.Clock
	if clock == nil {
		clock = core.SystemClock{}
		deps.Clock = clock
	}
	return &Aggregator{
		Factory:  factory,
		Deps:     deps,
		Clock:    clock,
		Logger:   logging.Component(logger, "aggregate"),
		MinScore: filter.DefaultMinScore,
	}
}

// Result 是一次聚合的结果与执行统计。
type Result struct {
	Candidates []*core.Candidate

	// Invoked 实际执行的算法数；Skipped 因超过截止时间被跳过的算法数；Failed 出错/panic 的算法数
	Invoked int
	Skipped int
	Failed  int
}

// Aggregate 在 deadline 之前依次执行 block 的算法并合并结果。
// 单个算法的错误或 panic 只记录日志；超过截止时间时静默停止并返回已收集的结果。
// 返回错误仅来自合并后处理（例如 filter_expr 编译失败）。
func (a *Aggregator) Aggregate(
	ctx context.Context,
	block *core.Block,
	rctx *core.RecommendContext,
	deadline time.Time,
) (*Result, error) {
	if block == nil {
		return nil, core.NewDomainError(core.ModuleAggregate, core.ErrorCodeInvalidInput, "aggregate: nil block")
	}
	if rctx == nil {
		rctx = &core.RecommendContext{BlockName: block.Name}
	}

	logger := logging.Ctx(ctx, a.Logger)
	registry := strategy.NewRegistry(a.Factory, a.Deps)
	res := &Result{}
	var all []*core.Candidate

	for i, cfg := range block.Algorithms {
		if !a.Clock.Now().Before(deadline) {
			res.Skipped = len(block.Algorithms) - i
			logger.Debug().
				Str("block", block.Name).
				Int("skipped", res.Skipped).
				Msg("generation deadline reached")
			break
		}
		res.Invoked++

		// 截止时间只在调度时检查，已启动的算法使用调用方的 ctx 运行完
		items, err := a.invoke(ctx, registry, cfg, rctx)
		if err != nil {
			res.Failed++
			logger.Error().Err(err).
				Str("block", block.Name).
				Str("algorithm", string(cfg.Type)).
				Msg("algorithm failed")
			continue
		}
		for _, it := range items {
			if it == nil {
				continue
			}
			it.PutLabel("algorithm_index", utils.Label{Value: fmt.Sprint(i), Source: "aggregate"})
		}
		all = append(all, items...)
	}

	post, err := a.postProcess(block)
	if err != nil {
		return nil, err
	}
	out, err := post.Run(ctx, rctx, all)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleAggregate, core.ErrorCodeAggregationFailure, "aggregate: post-process", err)
	}
	res.Candidates = out
	return res, nil
}

// invoke 执行单个算法，把 panic 转为 ALGORITHM_FAILURE 错误。
func (a *Aggregator) invoke(
	ctx context.Context,
	registry *strategy.Registry,
	cfg core.AlgorithmConfig,
	rctx *core.RecommendContext,
) (items []*core.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = core.NewDomainError(core.ModuleStrategy, core.ErrorCodeAlgorithmFailure,
				fmt.Sprintf("%s panicked: %v\n%s", cfg.Type, r, debug.Stack()))
		}
	}()

	s, err := registry.Get(cfg)
	if err != nil {
		return nil, err
	}
	items, err = s.Generate(ctx, rctx)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleStrategy, core.ErrorCodeAlgorithmFailure, s.Name(), err)
	}
	return items, nil
}

// postProcess 构建合并后处理链：去重 -> 表达式/排除过滤 -> 质量 skip-prefix -> Top-N。
func (a *Aggregator) postProcess(block *core.Block) (*pipeline.Pipeline, error) {
	uniform := []filter.Filter{&filter.ExcludeFilter{}}
	expr, err := filter.NewExprFilter(block.FilterExpr)
	if err != nil {
		return nil, err
	}
	if expr != nil {
		uniform = append(uniform, expr)
	}

	minScore := a.MinScore
	if minScore <= 0 {
		minScore = filter.DefaultMinScore
	}

	return (&pipeline.Pipeline{}).Append(
		&rerank.DedupNode{},
		&filter.FilterNode{Filters: uniform},
		&filter.SkipPrefixNode{Filters: []filter.Filter{&filter.QualityFilter{MinScore: minScore}}},
		&rerank.TopNNode{N: block.MaxResults},
	), nil
}

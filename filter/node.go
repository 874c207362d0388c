package filter

import (
	"context"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/pipeline"
	"github.com/rushteam/catalogrec/pkg/utils"
)

// FilterNode 对每个候选应用全部过滤器，任何一个返回 true 就移除该候选。
// 过滤器出错时该过滤器视为通过，不中断流程；ExprFilter 出错时自身已返回 true。
type FilterNode struct {
	Filters []Filter
}

func (n *FilterNode) Name() string {
	return "filter.node"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Candidate,
) ([]*core.Candidate, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	out := make([]*core.Candidate, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if reason := firstMatch(ctx, rctx, n.Filters, item); reason != "" {
			item.PutLabel("filtered", utils.Label{Value: "true", Source: reason})
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// SkipPrefixNode 只丢弃开头连续不满足条件的候选：
// 一旦遇到第一个通过全部过滤器的候选，其后的候选全部保留，不再检查。
//
// 例如阈值 0.3 时 [A(0.1), B(0.9), C(0.1)] 得到 [B, C]。
type SkipPrefixNode struct {
	Filters []Filter
}

func (n *SkipPrefixNode) Name() string {
	return "filter.skip_prefix"
}

func (n *SkipPrefixNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *SkipPrefixNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Candidate,
) ([]*core.Candidate, error) {
	if len(n.Filters) == 0 {
		return items, nil
	}
	for i, item := range items {
		if item != nil && firstMatch(ctx, rctx, n.Filters, item) == "" {
			return items[i:], nil
		}
	}
	return []*core.Candidate{}, nil
}

// firstMatch 返回第一个要求过滤的过滤器名称，全部通过返回空串。
func firstMatch(ctx context.Context, rctx *core.RecommendContext, filters []Filter, item *core.Candidate) string {
	for _, f := range filters {
		drop, err := f.ShouldFilter(ctx, rctx, item)
		if err != nil && !drop {
			continue
		}
		if drop {
			return f.Name()
		}
	}
	return ""
}

package rerank

import (
	"context"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/pipeline"
)

// TopNNode 截取前 N 个候选，对应 Block.MaxResults。
// 通常位于合并后处理链末尾：
//
//	p := (&pipeline.Pipeline{}).Append(
//	    &rerank.DedupNode{},
//	    &filter.SkipPrefixNode{Filters: []filter.Filter{filter.NewQualityFilter()}},
//	    &rerank.TopNNode{N: block.MaxResults},
//	)
type TopNNode struct {
	// N 要保留的候选数量
	// 如果 N <= 0，则返回空列表（max_results 为 0 的 Block 不展示任何结果）
	// 如果 N > len(items)，则返回所有候选
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Candidate,
) ([]*core.Candidate, error) {
	if n.N <= 0 {
		return []*core.Candidate{}, nil
	}
	if len(items) <= n.N {
		return items, nil
	}
	return items[:n.N], nil
}

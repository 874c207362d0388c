package rerank

import (
	"context"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/pipeline"
)

// DedupNode 按 ID 去重，保留第一次出现的候选（分数、属性均取第一个），
// 后出现的同 ID 候选只把 Label 合并进来，便于解释来源。
type DedupNode struct{}

func (n *DedupNode) Name() string {
	return "rerank.dedup"
}

func (n *DedupNode) Kind() pipeline.Kind {
	return pipeline.KindMerge
}

func (n *DedupNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Candidate,
) ([]*core.Candidate, error) {
	return Dedup(items), nil
}

// Dedup 是 DedupNode 的函数形式。
func Dedup(items []*core.Candidate) []*core.Candidate {
	seen := make(map[string]*core.Candidate, len(items))
	out := make([]*core.Candidate, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		if old, ok := seen[it.ID]; ok {
			for k, v := range it.Labels {
				old.PutLabel(k, v)
			}
			continue
		}
		seen[it.ID] = it
		out = append(out, it)
	}
	return out
}

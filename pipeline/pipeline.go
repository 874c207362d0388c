package pipeline

import (
	"context"
	"fmt"

	"github.com/rushteam/catalogrec/core"
)

// Pipeline 把合并后的候选处理拆成可组合的 Node 链：
// 去重 -> 表达式过滤 -> 质量过滤 -> Top-N。
type Pipeline struct {
	Nodes []Node
}

// Append 追加节点，nil 节点被忽略。
func (p *Pipeline) Append(nodes ...Node) *Pipeline {
	for _, n := range nodes {
		if n != nil {
			p.Nodes = append(p.Nodes, n)
		}
	}
	return p
}

func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Candidate,
) ([]*core.Candidate, error) {
	cur := items
	for _, node := range p.Nodes {
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node.Name(), err)
		}
		cur = next
	}
	return cur, nil
}

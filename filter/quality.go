package filter

import (
	"context"

	"github.com/rushteam/catalogrec/core"
)

// DefaultMinScore 是质量过滤的默认相关度阈值。
const DefaultMinScore = 0.3

// QualityFilter 过滤不满足展示质量的候选：
// 相关度低于 MinScore、名称为空、不可见或价格 <= 0。
type QualityFilter struct {
	MinScore float64
}

// NewQualityFilter 创建使用默认阈值的 QualityFilter。
func NewQualityFilter() *QualityFilter {
	return &QualityFilter{MinScore: DefaultMinScore}
}

func (f *QualityFilter) Name() string { return "filter.quality" }

func (f *QualityFilter) ShouldFilter(_ context.Context, _ *core.RecommendContext, item *core.Candidate) (bool, error) {
	if item == nil {
		return true, nil
	}
	return item.Score < f.MinScore || item.Name == "" || !item.Visible || item.Price <= 0, nil
}

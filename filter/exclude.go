package filter

import (
	"context"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/pkg/conv"
)

// ExcludeParam 是请求参数中排除 ID 列表的 key。
const ExcludeParam = "exclude_ids"

// ExcludeFilter 排除指定 ID：静态 IDs、当前浏览的商品、请求参数 exclude_ids。
type ExcludeFilter struct {
	IDs []string

	// KeepCurrentProduct 为 true 时不排除 rctx.Product 本身
	KeepCurrentProduct bool
}

func (f *ExcludeFilter) Name() string { return "filter.exclude" }

func (f *ExcludeFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Candidate) (bool, error) {
	if item == nil {
		return true, nil
	}
	for _, id := range f.IDs {
		if item.ID == id {
			return true, nil
		}
	}
	if !f.KeepCurrentProduct && rctx.ProductID() != "" && item.ID == rctx.ProductID() {
		return true, nil
	}
	if v, ok := rctx.Param(ExcludeParam); ok {
		for _, id := range excludeIDs(v) {
			if item.ID == id {
				return true, nil
			}
		}
	}
	return false, nil
}

func excludeIDs(v any) []string {
	switch ids := v.(type) {
	case []string:
		return ids
	case []any:
		return conv.SliceAnyToString(ids)
	case string:
		return []string{ids}
	default:
		return nil
	}
}

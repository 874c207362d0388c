package core

import "github.com/rushteam/catalogrec/pkg/utils"

// RecommendContext 承载一次推荐调用的用户/商品/场景信息，贯穿 Aggregator 与各个 Strategy。
type RecommendContext struct {
	BlockName string

	// User / Product 均可为空：首页推荐没有 Product，匿名访问没有 User
	User    *User
	Product *Product

	// Type 是调用方的场景类型（context.type），例如 "homepage"、"product_page"、"cart"
	Type string

	// Params 请求级上下文参数，例如 query、category_id、location、search_history 等
	Params map[string]any

	// Labels 是请求级标签，Strategy 可读可写
	Labels map[string]utils.Label
}

// UserID 返回用户 ID，匿名时为空串。
func (rctx *RecommendContext) UserID() string {
	if rctx == nil || rctx.User == nil {
		return ""
	}
	return rctx.User.ID
}

// ProductID 返回商品 ID，没有商品时为空串。
func (rctx *RecommendContext) ProductID() string {
	if rctx == nil || rctx.Product == nil {
		return ""
	}
	return rctx.Product.ID
}

// Param 读取请求参数。
func (rctx *RecommendContext) Param(key string) (any, bool) {
	if rctx == nil || rctx.Params == nil {
		return nil, false
	}
	v, ok := rctx.Params[key]
	return v, ok
}

// PutLabel 写入请求级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取请求级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}

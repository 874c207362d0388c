package strategy

import (
	"context"

	"github.com/rushteam/catalogrec/core"
)

// UpSell 推荐给定商品的高价替代品：同类目、价格在 (MinRatio·price, MaxRatio·price] 之间。
// 打分：共同类目 0.5 + 同品牌 0.2 + 价格越接近下限越高 0.3。没有 Product 时不产生结果。
//
// 参数：limit（默认 5）、min_ratio（默认 1.0）、max_ratio（默认 3.0）。
type UpSell struct {
	Catalog core.CatalogStore

	Limit    int
	MinRatio float64
	MaxRatio float64
}

func buildUpSell(params map[string]any, deps Deps) (Strategy, error) {
	u := &UpSell{
		Catalog:  deps.Catalog,
		Limit:    limitParam(params, defaultRelatedLimit),
		MinRatio: floatParam(params, "min_ratio", 1.0),
		MaxRatio: floatParam(params, "max_ratio", 3.0),
	}
	if u.MinRatio <= 0 || u.MaxRatio <= u.MinRatio {
		return nil, core.NewDomainError(core.ModuleStrategy, core.ErrorCodeInvalidInput, "up_sell: require 0 < min_ratio < max_ratio")
	}
	return u, nil
}

func (u *UpSell) Name() string { return string(core.AlgorithmUpSell) }

func (u *UpSell) Generate(ctx context.Context, rctx *core.RecommendContext) ([]*core.Candidate, error) {
	target := rctx.Product
	if target == nil || target.Price <= 0 {
		return nil, nil
	}

	products, err := u.Catalog.VisibleProducts(ctx)
	if err != nil {
		return nil, err
	}

	lo, hi := target.Price*u.MinRatio, target.Price*u.MaxRatio
	raw := make(map[string]float64)
	for _, p := range products {
		if p.ID == target.ID || p.Price <= lo || p.Price > hi {
			continue
		}
		shared := sharedCount(target.CategoryIDs, p.CategoryIDs)
		if shared == 0 {
			continue
		}
		score := 0.5 * float64(shared) / float64(len(uniq(target.CategoryIDs)))
		if target.BrandID != "" && target.BrandID == p.BrandID {
			score += 0.2
		}
		score += 0.3 * (1 - (p.Price-lo)/(hi-lo))
		raw[p.ID] = score
	}
	return rank(raw, productIndex(products), u.Limit, u.Name(), false), nil
}

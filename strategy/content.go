package strategy

import (
	"context"
	"math"

	"github.com/rushteam/catalogrec/core"
)

// ContentBased 按内容相似度打分。
//
// 商品相似度：共同类目（Jaccard）0.5 + 同品牌 0.3 + 价格接近度 0.2。
// 偏好相似度：候选类目的最高偏好 0.5 + 品牌偏好 0.3 + 价格区间偏好 0.2。
// 两者都有时按 ProductWeight / 1-ProductWeight 合并。
//
// 参数：limit（默认 10）、product_weight（默认 0.6）。
type ContentBased struct {
	Catalog     core.CatalogStore
	Preferences core.PreferenceStore

	Limit         int
	ProductWeight float64
}

func buildContentBased(params map[string]any, deps Deps) (Strategy, error) {
	return &ContentBased{
		Catalog:       deps.Catalog,
		Preferences:   deps.Preferences,
		Limit:         limitParam(params, defaultLimit),
		ProductWeight: floatParam(params, "product_weight", 0.6),
	}, nil
}

func (c *ContentBased) Name() string { return string(core.AlgorithmContentBased) }

func (c *ContentBased) Generate(ctx context.Context, rctx *core.RecommendContext) ([]*core.Candidate, error) {
	raw, index, err := c.scores(ctx, rctx)
	if err != nil || len(raw) == 0 {
		return nil, err
	}
	return rank(raw, index, c.Limit, c.Name(), false), nil
}

// scores 返回未归一化的内容分数及可见商品索引，Hybrid 复用。
func (c *ContentBased) scores(ctx context.Context, rctx *core.RecommendContext) (map[string]float64, map[string]*core.Product, error) {
	prefs, err := c.loadPreferences(ctx, rctx.UserID())
	if err != nil {
		return nil, nil, err
	}
	if rctx.Product == nil && len(prefs) == 0 {
		return nil, nil, nil
	}

	products, err := c.Catalog.VisibleProducts(ctx)
	if err != nil {
		return nil, nil, err
	}

	raw := make(map[string]float64, len(products))
	for _, p := range products {
		if p.ID == rctx.ProductID() {
			continue
		}
		raw[p.ID] = c.score(rctx.Product, prefs, p)
	}
	return raw, productIndex(products), nil
}

func (c *ContentBased) score(target *core.Product, prefs map[core.PreferenceType]map[string]float64, p *core.Product) float64 {
	switch {
	case target != nil && len(prefs) > 0:
		return c.ProductWeight*productSimilarity(target, p) + (1-c.ProductWeight)*preferenceAffinity(prefs, p)
	case target != nil:
		return productSimilarity(target, p)
	default:
		return preferenceAffinity(prefs, p)
	}
}

func (c *ContentBased) loadPreferences(ctx context.Context, userID string) (map[core.PreferenceType]map[string]float64, error) {
	if c.Preferences == nil || userID == "" {
		return nil, nil
	}
	recs, err := c.Preferences.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	return core.PreferenceWeights(recs), nil
}

func productSimilarity(a, b *core.Product) float64 {
	score := 0.5 * jaccard(a.CategoryIDs, b.CategoryIDs)
	if a.BrandID != "" && a.BrandID == b.BrandID {
		score += 0.3
	}
	score += 0.2 * priceProximity(a.Price, b.Price)
	return score
}

func priceProximity(a, b float64) float64 {
	hi := math.Max(a, b)
	if hi <= 0 {
		return 0
	}
	return 1 - math.Abs(a-b)/hi
}

// preferenceAffinity 计算商品与用户偏好的匹配度，结果在 [0,1]。
func preferenceAffinity(prefs map[core.PreferenceType]map[string]float64, p *core.Product) float64 {
	var catScore float64
	for _, cid := range p.CategoryIDs {
		if s := prefs[core.PreferenceCategory][cid]; s > catScore {
			catScore = s
		}
	}
	brandScore := prefs[core.PreferenceBrand][p.BrandID]
	priceScore := prefs[core.PreferencePriceRange][core.PriceBracket(p.Price)]
	return 0.5*catScore + 0.3*brandScore + 0.2*priceScore
}

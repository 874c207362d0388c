package strategy

import (
	"context"

	"github.com/rushteam/catalogrec/core"
)

// Popularity 按全局热度（浏览量/销量）排序可见商品。
// 只要目录中存在可见商品就一定有结果，是所有失败路径的兜底算法。
//
// 参数：
//   - limit：返回数量，默认 10
//   - view_weight：浏览量权重，默认 1
//   - sale_weight：销量权重，默认 0
//
// 配置了 Signals 时，外部信号覆盖目录中的计数；信号读取失败时回退到目录计数。
type Popularity struct {
	Catalog core.CatalogStore
	Signals core.SignalSource

	Limit      int
	ViewWeight float64
	SaleWeight float64
}

// NewPopularity 创建使用默认参数的 Popularity（Fallback 路径）。
func NewPopularity(catalog core.CatalogStore, signals core.SignalSource) *Popularity {
	return &Popularity{
		Catalog:    catalog,
		Signals:    signals,
		Limit:      defaultLimit,
		ViewWeight: 1,
	}
}

func buildPopularity(params map[string]any, deps Deps) (Strategy, error) {
	p := NewPopularity(deps.Catalog, deps.Signals)
	p.Limit = limitParam(params, defaultLimit)
	p.ViewWeight = floatParam(params, "view_weight", 1)
	p.SaleWeight = floatParam(params, "sale_weight", 0)
	return p, nil
}

func (p *Popularity) Name() string { return string(core.AlgorithmPopularity) }

func (p *Popularity) Generate(ctx context.Context, _ *core.RecommendContext) ([]*core.Candidate, error) {
	if p.Catalog == nil {
		return nil, core.NewDomainError(core.ModuleStrategy, core.ErrorCodeConfigurationMissing, "popularity: catalog not configured")
	}
	products, err := p.Catalog.VisibleProducts(ctx)
	if err != nil {
		return nil, err
	}
	index := productIndex(products)
	signals := loadSignals(ctx, p.Signals, index)

	raw := make(map[string]float64, len(products))
	for id, prod := range index {
		views, sales := float64(prod.ViewCount), float64(prod.SalesCount)
		if s, ok := signals[id]; ok {
			views, sales = s.Views, s.Sales
		}
		raw[id] = p.ViewWeight*views + p.SaleWeight*sales
	}
	return rank(raw, index, p.Limit, p.Name(), true), nil
}

// loadSignals 读取外部热度信号，失败时返回 nil（由调用方使用目录计数）。
func loadSignals(ctx context.Context, src core.SignalSource, index map[string]*core.Product) map[string]core.ProductSignals {
	if src == nil || len(index) == 0 {
		return nil
	}
	ids := make([]string, 0, len(index))
	for id := range index {
		ids = append(ids, id)
	}
	signals, err := src.ProductSignals(ctx, ids)
	if err != nil {
		return nil
	}
	return signals
}

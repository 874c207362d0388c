package strategy

import (
	"context"

	"github.com/rushteam/catalogrec/core"
)

// CrossSell 推荐与给定商品经常被一起购买的商品：
// 找出购买过该商品的用户，统计他们购买过的其他商品次数。
// 没有 Product 时不产生结果。
//
// 参数：limit（默认 5）。
type CrossSell struct {
	Catalog core.CatalogStore
	Limit   int
}

func buildCrossSell(params map[string]any, deps Deps) (Strategy, error) {
	return &CrossSell{
		Catalog: deps.Catalog,
		Limit:   limitParam(params, defaultRelatedLimit),
	}, nil
}

func (c *CrossSell) Name() string { return string(core.AlgorithmCrossSell) }

func (c *CrossSell) Generate(ctx context.Context, rctx *core.RecommendContext) ([]*core.Candidate, error) {
	pid := rctx.ProductID()
	if pid == "" {
		return nil, nil
	}

	buys, err := c.Catalog.ProductInteractions(ctx, pid, core.InteractionPurchase)
	if err != nil {
		return nil, err
	}

	buyers := make(map[string]struct{}, len(buys))
	for _, b := range buys {
		if b.UserID != "" {
			buyers[b.UserID] = struct{}{}
		}
	}

	raw := make(map[string]float64)
	for uid := range buyers {
		history, err := c.Catalog.UserInteractions(ctx, uid, 0)
		if err != nil {
			return nil, err
		}
		bought := make(map[string]struct{})
		for _, in := range history {
			if in.Type != core.InteractionPurchase || in.ProductID == pid {
				continue
			}
			bought[in.ProductID] = struct{}{}
		}
		for id := range bought {
			raw[id]++
		}
	}
	if len(raw) == 0 {
		return nil, nil
	}

	products, err := c.Catalog.GetProducts(ctx, keys(raw))
	if err != nil {
		return nil, err
	}
	return rank(raw, products, c.Limit, c.Name(), false), nil
}

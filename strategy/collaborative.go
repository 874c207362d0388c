package strategy

import (
	"context"
	"math"
	"time"

	"github.com/rushteam/catalogrec/core"
)

// Collaborative 是物品到物品的协同过滤：
// 两个商品的相似度为共同交互用户数除以各自交互用户数几何平均（余弦归一化）。
//
// 种子商品：有 Product 时为该商品，否则为用户最近交互过的商品（按交互强度加权）。
// 用户已交互过的商品不会被推荐。
//
// 参数：limit（默认 10）、window_hours（交互回溯窗口，默认 2160）、history（用户种子数，默认 50）。
type Collaborative struct {
	Catalog core.CatalogStore
	Clock   core.Clock

	Limit   int
	Window  time.Duration
	History int
}

func buildCollaborative(params map[string]any, deps Deps) (Strategy, error) {
	c := &Collaborative{
		Catalog: deps.Catalog,
		Clock:   deps.clock(),
		Limit:   limitParam(params, defaultLimit),
		Window:  hoursParam(params, "window_hours", 2160),
		History: int(floatParam(params, "history", 50)),
	}
	if c.Window <= 0 {
		return nil, core.NewDomainError(core.ModuleStrategy, core.ErrorCodeInvalidInput, "collaborative: window_hours must be positive")
	}
	return c, nil
}

func (c *Collaborative) Name() string { return string(core.AlgorithmCollaborative) }

func (c *Collaborative) Generate(ctx context.Context, rctx *core.RecommendContext) ([]*core.Candidate, error) {
	raw, err := c.scores(ctx, rctx)
	if err != nil || len(raw) == 0 {
		return nil, err
	}
	products, err := c.Catalog.GetProducts(ctx, keys(raw))
	if err != nil {
		return nil, err
	}
	return rank(raw, products, c.Limit, c.Name(), false), nil
}

// scores 返回未归一化的协同分数，Hybrid 复用。
func (c *Collaborative) scores(ctx context.Context, rctx *core.RecommendContext) (map[string]float64, error) {
	seeds, seen, err := c.seeds(ctx, rctx)
	if err != nil || len(seeds) == 0 {
		return nil, err
	}

	events, err := c.Catalog.InteractionsSince(ctx, c.Clock.Now().Add(-c.Window))
	if err != nil {
		return nil, err
	}

	// product -> 交互过的用户集合
	users := make(map[string]map[string]struct{})
	// user -> 交互过的商品集合
	items := make(map[string]map[string]struct{})
	for _, ev := range events {
		if ev.UserID == "" {
			continue
		}
		if users[ev.ProductID] == nil {
			users[ev.ProductID] = make(map[string]struct{})
		}
		users[ev.ProductID][ev.UserID] = struct{}{}
		if items[ev.UserID] == nil {
			items[ev.UserID] = make(map[string]struct{})
		}
		items[ev.UserID][ev.ProductID] = struct{}{}
	}

	self := rctx.UserID()
	raw := make(map[string]float64)
	for seed, weight := range seeds {
		co := make(map[string]int)
		for u := range users[seed] {
			if u == self {
				continue
			}
			for other := range items[u] {
				if other != seed {
					co[other]++
				}
			}
		}
		for other, n := range co {
			if _, ok := seen[other]; ok {
				continue
			}
			norm := math.Sqrt(float64(len(users[seed])) * float64(len(users[other])))
			if norm == 0 {
				continue
			}
			raw[other] += weight * float64(n) / norm
		}
	}
	return raw, nil
}

func (c *Collaborative) seeds(ctx context.Context, rctx *core.RecommendContext) (map[string]float64, map[string]struct{}, error) {
	seen := make(map[string]struct{})
	if rctx.Product != nil {
		seen[rctx.Product.ID] = struct{}{}
	}

	var history []core.Interaction
	if uid := rctx.UserID(); uid != "" {
		var err error
		history, err = c.Catalog.UserInteractions(ctx, uid, c.History)
		if err != nil {
			return nil, nil, err
		}
	}
	for _, in := range history {
		seen[in.ProductID] = struct{}{}
	}

	if rctx.Product != nil {
		return map[string]float64{rctx.Product.ID: 1}, seen, nil
	}
	seeds := make(map[string]float64, len(history))
	for _, in := range history {
		if w := interactionWeight(in.Type); w > seeds[in.ProductID] {
			seeds[in.ProductID] = w
		}
	}
	return seeds, seen, nil
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

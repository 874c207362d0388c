package strategy

import (
	"context"
	"math"
	"time"

	"github.com/rushteam/catalogrec/core"
)

// Trending 是带时间衰减的热度：窗口内每次交互按类型加权，
// 权重随时间指数衰减，半衰期为 HalfLife。
//
// 参数：limit（默认 10）、half_life_hours（默认 24）、window_hours（默认 168）。
type Trending struct {
	Catalog core.CatalogStore
	Clock   core.Clock

	Limit    int
	HalfLife time.Duration
	Window   time.Duration
}

func buildTrending(params map[string]any, deps Deps) (Strategy, error) {
	t := &Trending{
		Catalog:  deps.Catalog,
		Clock:    deps.clock(),
		Limit:    limitParam(params, defaultLimit),
		HalfLife: hoursParam(params, "half_life_hours", 24),
		Window:   hoursParam(params, "window_hours", 168),
	}
	if t.HalfLife <= 0 || t.Window <= 0 {
		return nil, core.NewDomainError(core.ModuleStrategy, core.ErrorCodeInvalidInput, "trending: half_life_hours and window_hours must be positive")
	}
	return t, nil
}

func hoursParam(params map[string]any, key string, def float64) time.Duration {
	return time.Duration(floatParam(params, key, def) * float64(time.Hour))
}

func (t *Trending) Name() string { return string(core.AlgorithmTrending) }

func (t *Trending) Generate(ctx context.Context, _ *core.RecommendContext) ([]*core.Candidate, error) {
	now := t.Clock.Now()
	events, err := t.Catalog.InteractionsSince(ctx, now.Add(-t.Window))
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	raw := make(map[string]float64)
	for _, ev := range events {
		age := now.Sub(ev.CreatedAt)
		if age < 0 {
			age = 0
		}
		decay := math.Exp(-math.Ln2 * age.Hours() / t.HalfLife.Hours())
		raw[ev.ProductID] += interactionWeight(ev.Type) * decay
	}

	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	products, err := t.Catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	return rank(raw, products, t.Limit, t.Name(), false), nil
}

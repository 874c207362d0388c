// Package strategy 实现推荐候选生成算法（Strategy）及其分发表与调用级 Registry。
//
// 每个 Strategy 封装一种打分/候选生成方式，通过 core.CatalogStore 读取数据，
// 输出按 relevance_score 降序、归一化到 [0,1] 的候选列表。
package strategy

import (
	"context"
	"sort"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/pkg/conv"
	"github.com/rushteam/catalogrec/pkg/utils"
)

// Strategy 是一种候选生成算法。
// 不要求每个变体都使用全部输入，例如 popularity 忽略 User/Product。
type Strategy interface {
	Name() string
	Generate(ctx context.Context, rctx *core.RecommendContext) ([]*core.Candidate, error)
}

// Deps 是 Strategy 构建时注入的协作者。
type Deps struct {
	Catalog     core.CatalogStore
	Preferences core.PreferenceStore // 可选，content_based 读取用户偏好
	Signals     core.SignalSource    // 可选，popularity/trending 的外部热度信号
	Clock       core.Clock
}

func (d Deps) clock() core.Clock {
	if d.Clock == nil {
		return core.SystemClock{}
	}
	return d.Clock
}

// 各算法默认返回数量
const (
	defaultLimit        = 10
	defaultRelatedLimit = 5
)

func limitParam(params map[string]any, def int) int {
	if n := conv.ConfigGetInt64(params, "limit", int64(def)); n > 0 {
		return int(n)
	}
	return def
}

func floatParam(params map[string]any, key string, def float64) float64 {
	v, ok := params[key]
	if !ok {
		return def
	}
	if f, ok := conv.ToFloat64(v); ok {
		return f
	}
	return def
}

// rank 把原始分数按最大值归一化，按分数降序（同分按 ID 升序）截取 limit 个，
// 并用商品信息封装为候选；不在 products 中或不可见的 ID 被跳过。
// keepZero 为 false 时丢弃分数 <= 0 的条目。
func rank(raw map[string]float64, products map[string]*core.Product, limit int, source string, keepZero bool) []*core.Candidate {
	type scored struct {
		id    string
		score float64
	}
	list := make([]scored, 0, len(raw))
	maxScore := 0.0
	for id, s := range raw {
		p, ok := products[id]
		if !ok || !p.Visible || !p.Published || (s <= 0 && !keepZero) {
			continue
		}
		if s < 0 {
			s = 0
		}
		list = append(list, scored{id: id, score: s})
		if s > maxScore {
			maxScore = s
		}
	}
	if len(list) == 0 {
		return nil
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].score != list[j].score {
			return list[i].score > list[j].score
		}
		return list[i].id < list[j].id
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	out := make([]*core.Candidate, 0, len(list))
	for _, s := range list {
		score := 0.0
		if maxScore > 0 {
			score = s.score / maxScore
		}
		c := core.CandidateFromProduct(products[s.id], score)
		c.PutLabel("strategy", utils.Label{Value: source, Source: "strategy"})
		out = append(out, c)
	}
	return out
}

// productIndex 把商品列表转为 ID 索引。
func productIndex(products []*core.Product) map[string]*core.Product {
	m := make(map[string]*core.Product, len(products))
	for _, p := range products {
		if p != nil {
			m[p.ID] = p
		}
	}
	return m
}

// interactionWeight 是协同/趋势类算法中不同交互的强度。
func interactionWeight(t core.InteractionType) float64 {
	switch t {
	case core.InteractionPurchase:
		return 5
	case core.InteractionCart:
		return 3
	case core.InteractionWishlist, core.InteractionReview:
		return 2
	case core.InteractionClick:
		return 1.5
	default:
		return 1
	}
}

func sharedCount(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, x := range a {
		set[x] = struct{}{}
	}
	n := 0
	for _, y := range b {
		if _, ok := set[y]; ok {
			n++
			delete(set, y)
		}
	}
	return n
}

// jaccard 计算两个 ID 集合的 Jaccard 相似度。
func jaccard(a, b []string) float64 {
	inter := sharedCount(a, b)
	if inter == 0 {
		return 0
	}
	union := len(uniq(a)) + len(uniq(b)) - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func uniq(s []string) map[string]struct{} {
	m := make(map[string]struct{}, len(s))
	for _, x := range s {
		m[x] = struct{}{}
	}
	return m
}

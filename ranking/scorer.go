// Package ranking 计算通用排序结果（商品、类目、品牌、专题、属性）的综合相关度。
//
//	score = 0.3·base + 0.4·text + 0.2·popularity + 0.1·context
//
// 排序完全确定：分数降序，同分按类型优先级，再按 ID。
package ranking

import (
	"math"
	"sort"
	"strings"

	"github.com/rushteam/catalogrec/core"
)

// 综合分数权重
const (
	WeightBase       = 0.3
	WeightText       = 0.4
	WeightPopularity = 0.2
	WeightContext    = 0.1
)

// Result 是一个待排序的结果。
type Result struct {
	ID   string
	Type string

	// BaseRelevance 上游给出的基础相关度
	BaseRelevance float64

	Title       string
	Subtitle    string
	Description string

	// 商品热度信号
	SalesCount  int64
	ReviewCount int64
	AvgRating   float64
	Featured    bool

	// ProductCount 类目/品牌/专题下的商品数
	ProductCount int64

	CategoryIDs []string
	BrandID     string
	Location    string

	// Score 为 Scorer.Rank 写入的综合分数
	Score float64
}

// Context 是打分所需的用户上下文。
type Context struct {
	Query string

	// Preferences 用户偏好（core.PreferenceWeights 的输出）
	Preferences map[core.PreferenceType]map[string]float64

	// SearchHistory 用户最近的搜索词
	SearchHistory []string

	// Location 用户所在地区
	Location string
}

// typePriority 越小越优先。
var typePriority = map[string]int{
	core.CandidateTypeProduct:        0,
	core.CandidateTypeCategory:       1,
	core.CandidateTypeBrand:          2,
	core.CandidateTypeCollection:     3,
	core.CandidateTypeAttribute:      4,
	core.CandidateTypeAttributeValue: 5,
}

func priority(t string) int {
	if p, ok := typePriority[t]; ok {
		return p
	}
	return len(typePriority)
}

// Scorer 是无状态的综合打分器。
type Scorer struct{}

// Score 计算单个结果的综合分数。
func (Scorer) Score(r *Result, c Context) float64 {
	tokens := Tokenize(c.Query)
	return WeightBase*r.BaseRelevance +
		WeightText*TextMatch(r, tokens) +
		WeightPopularity*Popularity(r) +
		WeightContext*ContextScore(r, c)
}

// Rank 为每个结果写入 Score 并原地排序。
func (s Scorer) Rank(results []*Result, c Context) []*Result {
	for _, r := range results {
		r.Score = s.Score(r, c)
	}
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if pa, pb := priority(a.Type), priority(b.Type); pa != pb {
			return pa < pb
		}
		return a.ID < b.ID
	})
	return results
}

// Tokenize 把查询拆成小写词。
func Tokenize(q string) []string {
	return strings.Fields(strings.ToLower(q))
}

// TextMatch 是标题 0.5、副标题 0.3、描述 0.2 的加权文本匹配分。
func TextMatch(r *Result, tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	return 0.5*fieldMatch(r.Title, tokens) +
		0.3*fieldMatch(r.Subtitle, tokens) +
		0.2*fieldMatch(r.Description, tokens)
}

// fieldMatch 对每个查询词取字段中最好的词级匹配（精确 1.0、前缀 0.8、包含 0.6），再取平均。
func fieldMatch(field string, tokens []string) float64 {
	words := strings.Fields(strings.ToLower(field))
	if len(words) == 0 {
		return 0
	}
	var total float64
	for _, tok := range tokens {
		best := 0.0
		for _, w := range words {
			switch {
			case w == tok:
				best = 1.0
			case strings.HasPrefix(w, tok):
				best = math.Max(best, 0.8)
			case strings.Contains(w, tok):
				best = math.Max(best, 0.6)
			}
			if best == 1.0 {
				break
			}
		}
		total += best
	}
	return total / float64(len(tokens))
}

// Popularity 是按类型归一化的热度分，结果在 [0,1]。
func Popularity(r *Result) float64 {
	switch r.Type {
	case core.CandidateTypeProduct:
		score := ratio(float64(r.SalesCount), 100)*0.4 +
			ratio(float64(r.ReviewCount), 50)*0.3 +
			ratio(r.AvgRating, 5)*0.3
		if r.Featured {
			score += 0.2
		}
		return math.Min(score, 1)
	case core.CandidateTypeCategory, core.CandidateTypeBrand, core.CandidateTypeCollection:
		return ratio(float64(r.ProductCount), 100)
	default:
		return 0
	}
}

// ContextScore 是偏好 0.5、搜索历史 0.3、地区 0.2 的上下文分。
func ContextScore(r *Result, c Context) float64 {
	return 0.5*preferenceAffinity(r, c.Preferences) +
		0.3*historySimilarity(r, c.SearchHistory) +
		0.2*locationAffinity(r, c.Location)
}

func preferenceAffinity(r *Result, prefs map[core.PreferenceType]map[string]float64) float64 {
	if len(prefs) == 0 {
		return 0
	}
	var best float64
	switch r.Type {
	case core.CandidateTypeCategory:
		best = prefs[core.PreferenceCategory][r.ID]
	case core.CandidateTypeBrand:
		best = prefs[core.PreferenceBrand][r.ID]
	default:
		for _, cid := range r.CategoryIDs {
			best = math.Max(best, prefs[core.PreferenceCategory][cid])
		}
		if r.BrandID != "" {
			best = math.Max(best, prefs[core.PreferenceBrand][r.BrandID])
		}
	}
	return math.Min(best, 1)
}

// historySimilarity 取历史搜索词与标题文本匹配的最大值。
func historySimilarity(r *Result, history []string) float64 {
	var best float64
	for _, q := range history {
		best = math.Max(best, fieldMatch(r.Title, Tokenize(q)))
	}
	return best
}

func locationAffinity(r *Result, location string) float64 {
	if location == "" || r.Location == "" {
		return 0
	}
	if strings.EqualFold(location, r.Location) {
		return 1
	}
	return 0
}

func ratio(v, full float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Min(v/full, 1)
}

// FromProduct 把商品转为排序结果。
func FromProduct(p *core.Product, base float64) *Result {
	return &Result{
		ID:            p.ID,
		Type:          core.CandidateTypeProduct,
		BaseRelevance: base,
		Title:         p.Name,
		SalesCount:    p.SalesCount,
		ReviewCount:   p.ReviewCount,
		AvgRating:     p.AvgRating,
		Featured:      p.Featured,
		CategoryIDs:   p.CategoryIDs,
		BrandID:       p.BrandID,
	}
}

package core

import "github.com/rushteam/catalogrec/pkg/utils"

// 候选类型，Ranking 打分时用于平局排序。
const (
	CandidateTypeProduct        = "product"
	CandidateTypeCategory       = "category"
	CandidateTypeBrand          = "brand"
	CandidateTypeCollection     = "collection"
	CandidateTypeAttribute      = "attribute"
	CandidateTypeAttributeValue = "attribute_value"
)

// Candidate 是推荐链路中的统一承载结构（ScoredCandidate）：
// 由 Strategy 生成，经过合并、去重、质量过滤后进入缓存，最终返回给调用方。
// Score 即 relevance_score；Name/Price/Visible/Slug 是展示与质量过滤需要的属性。
type Candidate struct {
	ID      string  `json:"id"`
	Type    string  `json:"type"`
	Score   float64 `json:"relevance_score"`
	Name    string  `json:"name"`
	Slug    string  `json:"slug,omitempty"`
	Price   float64 `json:"price"`
	Visible bool    `json:"visible"`

	// Attributes 任意展示属性（图片、品牌名等），引擎不解释
	Attributes map[string]any `json:"attributes,omitempty"`

	// Labels 用于解释来源（哪个算法召回、打分方式等）
	Labels map[string]utils.Label `json:"labels,omitempty"`
}

// NewCandidate 创建一个商品类型的候选。
func NewCandidate(id string) *Candidate {
	return &Candidate{
		ID:         id,
		Type:       CandidateTypeProduct,
		Attributes: make(map[string]any),
		Labels:     make(map[string]utils.Label),
	}
}

// CandidateFromProduct 用商品属性填充候选，score 为该算法给出的相关度。
func CandidateFromProduct(p *Product, score float64) *Candidate {
	c := NewCandidate(p.ID)
	c.Score = score
	c.Name = p.Name
	c.Slug = p.Slug
	c.Price = p.Price
	c.Visible = p.Visible && p.Published
	if p.BrandID != "" {
		c.Attributes["brand_id"] = p.BrandID
	}
	if len(p.CategoryIDs) > 0 {
		c.Attributes["category_ids"] = append([]string(nil), p.CategoryIDs...)
	}
	return c
}

// Clone 复制候选及其 Attributes/Labels map；Attributes 中的值按只读共享。
func (c *Candidate) Clone() *Candidate {
	if c == nil {
		return nil
	}
	out := *c
	if c.Attributes != nil {
		out.Attributes = make(map[string]any, len(c.Attributes))
		for k, v := range c.Attributes {
			out.Attributes[k] = v
		}
	}
	if c.Labels != nil {
		out.Labels = make(map[string]utils.Label, len(c.Labels))
		for k, v := range c.Labels {
			out.Labels[k] = v
		}
	}
	return &out
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (c *Candidate) PutLabel(key string, lbl utils.Label) {
	if c.Labels == nil {
		c.Labels = make(map[string]utils.Label)
	}
	if old, ok := c.Labels[key]; ok {
		c.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	c.Labels[key] = lbl
}

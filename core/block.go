package core

import (
	"context"
	"time"
)

// AlgorithmType 是 Strategy 变体的标签，用于分发表查找。
type AlgorithmType string

const (
	AlgorithmContentBased  AlgorithmType = "content_based"
	AlgorithmCollaborative AlgorithmType = "collaborative"
	AlgorithmHybrid        AlgorithmType = "hybrid"
	AlgorithmPopularity    AlgorithmType = "popularity"
	AlgorithmTrending      AlgorithmType = "trending"
	AlgorithmCrossSell     AlgorithmType = "cross_sell"
	AlgorithmUpSell        AlgorithmType = "up_sell"
)

// AlgorithmTypes 返回所有已知的算法类型（顺序固定）。
func AlgorithmTypes() []AlgorithmType {
	return []AlgorithmType{
		AlgorithmContentBased,
		AlgorithmCollaborative,
		AlgorithmHybrid,
		AlgorithmPopularity,
		AlgorithmTrending,
		AlgorithmCrossSell,
		AlgorithmUpSell,
	}
}

// AlgorithmConfig 是 Block 中的一条算法配置。
// (Type, Parameters) 的结构化哈希是 Registry 的 memo key。
type AlgorithmConfig struct {
	Type       AlgorithmType  `yaml:"type" json:"type" validate:"required"`
	Parameters map[string]any `yaml:"parameters" json:"parameters"`
}

// Block 是一个命名的推荐位配置，由管理员维护，引擎只读。
type Block struct {
	Name       string            `yaml:"name" json:"name" validate:"required"`
	Active     bool              `yaml:"active" json:"active"`
	Algorithms []AlgorithmConfig `yaml:"algorithms" json:"algorithms" validate:"dive"`
	MaxResults int               `yaml:"max_results" json:"max_results" validate:"gte=0"`

	// CacheDuration 缓存秒数；0 表示不缓存
	CacheDuration int `yaml:"cache_duration" json:"cache_duration" validate:"gte=0"`

	// FilterExpr 可选的 CEL 表达式，去重后对候选做额外筛选，例如 `item.price < 200.0`
	FilterExpr string `yaml:"filter_expr" json:"filter_expr"`
}

// CacheTTL 返回缓存时长。
func (b *Block) CacheTTL() time.Duration {
	return time.Duration(b.CacheDuration) * time.Second
}

// BlockRepository 按名称解析 Block。
// 不存在时返回 NOT_FOUND 的 DomainError。
type BlockRepository interface {
	GetBlock(ctx context.Context, name string) (*Block, error)
}

// Package catalogrec 是电商目录的推荐生成引擎。
//
// 设计要点：
//   - Block-first: 推荐位（Block）声明算法列表、结果数量与缓存时长，引擎按名称解析
//   - Never-fail: 任何错误或 panic 都降级为热门商品（Fallback），调用方永远拿到列表
//   - Deadline-bounded: 算法按顺序执行，超过时间预算后不再启动新的算法
//   - Feedback: 用户交互按类型增量更新类目/品牌/价格区间偏好
package catalogrec

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rushteam/catalogrec/config"
	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/engine"
)

// 轻量 facade：便于直接 import "catalogrec" 使用核心抽象。
type (
	Engine         = engine.Engine
	Deps           = engine.Deps
	RequestContext = engine.RequestContext
	Candidate      = core.Candidate
	Block          = core.Block
	Config         = config.Config
)

// Open 按配置组装 Engine，见 engine.Open。
func Open(ctx context.Context, cfg *Config, reg prometheus.Registerer, opts ...engine.Option) (*Engine, error) {
	return engine.Open(ctx, cfg, reg, opts...)
}

// LoadConfig 加载配置文件与 RECO_ 环境变量，见 config.Load。
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

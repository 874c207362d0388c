package strategy

import (
	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/pkg/utils"
)

// Registry 在一次生成调用内按 (type, parameters) 缓存 Strategy 实例。
// 它不是并发安全的：每个调用持有自己的 Registry，不跨请求共享。
type Registry struct {
	factory *Factory
	deps    Deps
	memo    map[string]Strategy
}

// NewRegistry 创建调用级 Registry。
func NewRegistry(factory *Factory, deps Deps) *Registry {
	if factory == nil {
		factory = NewFactory()
	}
	return &Registry{
		factory: factory,
		deps:    deps,
		memo:    make(map[string]Strategy),
	}
}

// Key 返回 AlgorithmConfig 的规范编码：参数 key 顺序与数值类型不影响结果，
// 结构不同的配置一定得到不同的 Key。
func Key(cfg core.AlgorithmConfig) string {
	return utils.StructuralKey(string(cfg.Type), cfg.Parameters)
}

// Get 查找或构建 cfg 对应的 Strategy。
func (r *Registry) Get(cfg core.AlgorithmConfig) (Strategy, error) {
	k := Key(cfg)
	if s, ok := r.memo[k]; ok {
		return s, nil
	}
	s, err := r.factory.Build(cfg, r.deps)
	if err != nil {
		return nil, err
	}
	r.memo[k] = s
	return s, nil
}

// Len 返回已构建的实例数。
func (r *Registry) Len() int { return len(r.memo) }

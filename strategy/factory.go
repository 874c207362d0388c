package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rushteam/catalogrec/core"
)

// Builder 根据 Block 中的参数构建 Strategy。
type Builder func(params map[string]any, deps Deps) (Strategy, error)

// Factory 是按 AlgorithmType 分发的构建表。
type Factory struct {
	mu       sync.RWMutex
	builders map[core.AlgorithmType]Builder
}

// NewFactory 返回注册了全部内置算法的 Factory。
func NewFactory() *Factory {
	return &Factory{
		builders: map[core.AlgorithmType]Builder{
			core.AlgorithmContentBased:  buildContentBased,
			core.AlgorithmCollaborative: buildCollaborative,
			core.AlgorithmHybrid:        buildHybrid,
			core.AlgorithmPopularity:    buildPopularity,
			core.AlgorithmTrending:      buildTrending,
			core.AlgorithmCrossSell:     buildCrossSell,
			core.AlgorithmUpSell:        buildUpSell,
		},
	}
}

// Register 注册或覆盖一种算法的构建逻辑。
func (f *Factory) Register(typ core.AlgorithmType, builder Builder) {
	if typ == "" || builder == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[typ] = builder
}

// SupportedTypes 返回已注册的算法类型（排序），用于错误提示与配置校验。
func (f *Factory) SupportedTypes() []core.AlgorithmType {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]core.AlgorithmType, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Supports 报告 typ 是否已注册。
func (f *Factory) Supports(typ core.AlgorithmType) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.builders[typ]
	return ok
}

// Build 构建一个 Strategy；未知类型返回 ALGORITHM_FAILURE。
func (f *Factory) Build(cfg core.AlgorithmConfig, deps Deps) (Strategy, error) {
	f.mu.RLock()
	builder, ok := f.builders[cfg.Type]
	f.mu.RUnlock()
	if !ok {
		return nil, core.NewDomainError(core.ModuleStrategy, core.ErrorCodeAlgorithmFailure,
			fmt.Sprintf("unknown algorithm type %q (supported: %v)", cfg.Type, f.SupportedTypes()))
	}
	if deps.Catalog == nil {
		return nil, core.NewDomainError(core.ModuleStrategy, core.ErrorCodeConfigurationMissing, "strategy: catalog not configured")
	}
	s, err := builder(cfg.Parameters, deps)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleStrategy, core.ErrorCodeAlgorithmFailure,
			fmt.Sprintf("build %s", cfg.Type), err)
	}
	return s, nil
}

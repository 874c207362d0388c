package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/pkg/dsl"
	"github.com/rushteam/catalogrec/strategy"
)

// BlocksFile 是 Block 定义文件的结构。
//
//	blocks:
//	  - name: homepage_featured
//	    active: true
//	    max_results: 12
//	    cache_duration: 300
//	    algorithms:
//	      - type: popularity
//	        parameters:
//	          limit: 20
type BlocksFile struct {
	Blocks []core.Block `yaml:"blocks" validate:"dive"`
}

// LoadBlocks 从 YAML 文件加载并校验 Block 定义。
func LoadBlocks(path string) ([]core.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blocks file %s: %w", path, err)
	}
	return ParseBlocks(data)
}

// ParseBlocks 解析并校验 YAML 格式的 Block 定义。
func ParseBlocks(data []byte) ([]core.Block, error) {
	var f BlocksFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse blocks: %w", err)
	}
	if err := ValidateBlocks(f.Blocks, strategy.NewFactory()); err != nil {
		return nil, err
	}
	return f.Blocks, nil
}

// ValidateBlocks 校验 Block：字段约束、名称唯一、算法类型已注册、filter_expr 可编译。
func ValidateBlocks(blocks []core.Block, factory *strategy.Factory) error {
	seen := make(map[string]struct{}, len(blocks))
	for i := range blocks {
		b := &blocks[i]
		if err := validate.Struct(b); err != nil {
			return invalidBlock(b.Name, err)
		}
		if _, dup := seen[b.Name]; dup {
			return invalidBlock(b.Name, fmt.Errorf("duplicate block name"))
		}
		seen[b.Name] = struct{}{}

		for _, algo := range b.Algorithms {
			if factory != nil && !factory.Supports(algo.Type) {
				return invalidBlock(b.Name, fmt.Errorf("unknown algorithm type %q", algo.Type))
			}
		}
		if _, err := dsl.Compile(b.FilterExpr); err != nil {
			return invalidBlock(b.Name, err)
		}
	}
	return nil
}

func invalidBlock(name string, err error) error {
	return core.WrapDomainError(core.ModuleBlock, core.ErrorCodeInvalidInput,
		fmt.Sprintf("invalid block %q", name), err)
}

// MemoryBlockRepository 是内存实现的 core.BlockRepository，可在运行时替换全部定义。
type MemoryBlockRepository struct {
	mu     sync.RWMutex
	blocks map[string]core.Block
}

// NewMemoryBlockRepository 创建 MemoryBlockRepository。
func NewMemoryBlockRepository(blocks ...core.Block) *MemoryBlockRepository {
	r := &MemoryBlockRepository{}
	r.Replace(blocks)
	return r
}

// Replace 用 blocks 替换当前全部定义。
func (r *MemoryBlockRepository) Replace(blocks []core.Block) {
	m := make(map[string]core.Block, len(blocks))
	for _, b := range blocks {
		m[b.Name] = b
	}
	r.mu.Lock()
	r.blocks = m
	r.mu.Unlock()
}

// Put 新增或覆盖一个 Block。
func (r *MemoryBlockRepository) Put(b core.Block) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks[b.Name] = b
}

// GetBlock 实现 core.BlockRepository；返回副本。
func (r *MemoryBlockRepository) GetBlock(ctx context.Context, name string) (*core.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	b, ok := r.blocks[name]
	r.mu.RUnlock()
	if !ok {
		return nil, core.NewDomainError(core.ModuleBlock, core.ErrorCodeNotFound, fmt.Sprintf("block %q not found", name))
	}
	b.Algorithms = append([]core.AlgorithmConfig(nil), b.Algorithms...)
	return &b, nil
}

// Names 返回所有 Block 名称（排序）。
func (r *MemoryBlockRepository) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.blocks))
	for n := range r.blocks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var _ core.BlockRepository = (*MemoryBlockRepository)(nil)

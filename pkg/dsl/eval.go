// Package dsl 提供基于 CEL (Common Expression Language) 的候选筛选表达式。
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/catalogrec/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.DynType),
			cel.Variable("label", cel.DynType),
			cel.Variable("rctx", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Program 是编译后的表达式，可在多个 goroutine 中复用。
//
// 表达式语法（CEL 标准语法）：
//   - 数值：item.price < 200.0 / item.relevance_score >= 0.5
//   - 属性：item.attributes.brand_id == "b1"
//   - 标签：label.strategy == "popularity"
//   - 上下文：rctx.type == "homepage" && item.type == "product"
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式；空表达式返回 (nil, nil)，Match 对 nil Program 恒为 true。
func Compile(expr string) (*Program, error) {
	if expr == "" {
		return nil, nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("compile %q: expression must return bool, got %s", expr, t)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

// String 返回原始表达式。
func (p *Program) String() string {
	if p == nil {
		return ""
	}
	return p.expr
}

// Match 对单个候选求值。
// 访问不存在的 key 会报错，表达式应使用 has(item.attributes.x) 检查存在性。
func (p *Program) Match(c *core.Candidate, rctx *core.RecommendContext) (bool, error) {
	if p == nil {
		return true, nil
	}
	out, _, err := p.prg.Eval(buildInput(c, rctx))
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", p.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("eval %q: expression must return bool, got %T", p.expr, out.Value())
	}
	return result, nil
}

// Eval 编译并执行一次表达式，适合一次性判断。
func Eval(expr string, c *core.Candidate, rctx *core.RecommendContext) (bool, error) {
	p, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return p.Match(c, rctx)
}

func buildInput(c *core.Candidate, rctx *core.RecommendContext) map[string]any {
	labels := make(map[string]any, len(c.Labels))
	labelAccessor := make(map[string]any, len(c.Labels))
	for k, v := range c.Labels {
		labels[k] = map[string]any{"value": v.Value, "source": v.Source}
		labelAccessor[k] = v.Value
	}

	attrs := c.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	item := map[string]any{
		"id":              c.ID,
		"type":            c.Type,
		"relevance_score": c.Score,
		"name":            c.Name,
		"slug":            c.Slug,
		"price":           c.Price,
		"visible":         c.Visible,
		"attributes":      attrs,
		"labels":          labels,
	}

	params := map[string]any{}
	var blockName, ctxType string
	if rctx != nil {
		blockName, ctxType = rctx.BlockName, rctx.Type
		if rctx.Params != nil {
			params = rctx.Params
		}
	}
	ctxMap := map[string]any{
		"block":      blockName,
		"user_id":    rctx.UserID(),
		"product_id": rctx.ProductID(),
		"type":       ctxType,
		"params":     params,
	}

	return map[string]any{
		"item":  item,
		"label": labelAccessor,
		"rctx":  ctxMap,
	}
}

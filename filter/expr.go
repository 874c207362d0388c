package filter

import (
	"context"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/pkg/dsl"
)

// ExprFilter 保留满足 CEL 表达式的候选（Block.FilterExpr）。
// 表达式求值出错的候选被过滤。
type ExprFilter struct {
	prg *dsl.Program
}

// NewExprFilter 编译表达式；空表达式返回 (nil, nil)。
func NewExprFilter(expr string) (*ExprFilter, error) {
	prg, err := dsl.Compile(expr)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleBlock, core.ErrorCodeInvalidInput, "filter: invalid filter_expr", err)
	}
	if prg == nil {
		return nil, nil
	}
	return &ExprFilter{prg: prg}, nil
}

func (f *ExprFilter) Name() string { return "filter.expr" }

// Expr 返回原始表达式。
func (f *ExprFilter) Expr() string { return f.prg.String() }

func (f *ExprFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Candidate) (bool, error) {
	ok, err := f.prg.Match(item, rctx)
	if err != nil {
		return true, err
	}
	return !ok, nil
}

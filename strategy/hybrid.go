package strategy

import (
	"context"

	"github.com/rushteam/catalogrec/core"
)

// Hybrid 线性组合内容分数与协同分数：
// score = ContentWeight·content + CollaborativeWeight·collaborative，两路分数先各自按最大值归一化。
//
// 参数：content_weight（默认 0.5）、collaborative_weight（默认 0.5），
// 其余参数（limit、window_hours 等）透传给两个子算法。
type Hybrid struct {
	Content       *ContentBased
	Collaborative *Collaborative

	Limit               int
	ContentWeight       float64
	CollaborativeWeight float64
}

func buildHybrid(params map[string]any, deps Deps) (Strategy, error) {
	content, err := buildContentBased(params, deps)
	if err != nil {
		return nil, err
	}
	collab, err := buildCollaborative(params, deps)
	if err != nil {
		return nil, err
	}
	h := &Hybrid{
		Content:             content.(*ContentBased),
		Collaborative:       collab.(*Collaborative),
		Limit:               limitParam(params, defaultLimit),
		ContentWeight:       floatParam(params, "content_weight", 0.5),
		CollaborativeWeight: floatParam(params, "collaborative_weight", 0.5),
	}
	if h.ContentWeight < 0 || h.CollaborativeWeight < 0 {
		return nil, core.NewDomainError(core.ModuleStrategy, core.ErrorCodeInvalidInput, "hybrid: weights must be non-negative")
	}
	return h, nil
}

func (h *Hybrid) Name() string { return string(core.AlgorithmHybrid) }

func (h *Hybrid) Generate(ctx context.Context, rctx *core.RecommendContext) ([]*core.Candidate, error) {
	content, index, err := h.Content.scores(ctx, rctx)
	if err != nil {
		return nil, err
	}
	collab, err := h.Collaborative.scores(ctx, rctx)
	if err != nil {
		return nil, err
	}
	if len(content) == 0 && len(collab) == 0 {
		return nil, nil
	}

	raw := make(map[string]float64, len(content)+len(collab))
	addNormalized(raw, content, h.ContentWeight)
	addNormalized(raw, collab, h.CollaborativeWeight)

	// 协同分数可能来自不在可见商品索引中的 ID（index 为空时尤其如此）
	missing := make([]string, 0)
	for id := range raw {
		if _, ok := index[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		extra, err := h.Collaborative.Catalog.GetProducts(ctx, missing)
		if err != nil {
			return nil, err
		}
		if index == nil {
			index = make(map[string]*core.Product, len(extra))
		}
		for id, p := range extra {
			index[id] = p
		}
	}
	return rank(raw, index, h.Limit, h.Name(), false), nil
}

func addNormalized(dst, src map[string]float64, weight float64) {
	maxScore := 0.0
	for _, s := range src {
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore == 0 || weight == 0 {
		return
	}
	for id, s := range src {
		dst[id] += weight * s / maxScore
	}
}

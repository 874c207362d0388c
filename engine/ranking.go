package engine

import (
	"context"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/pkg/conv"
	"github.com/rushteam/catalogrec/ranking"
)

// RankResults 用综合分数为 results 排序（原地，返回同一切片）。
// 未提供 Preferences 且有 user 时从 PreferenceStore 读取；读取失败按无偏好处理。
func (e *Engine) RankResults(ctx context.Context, user *core.User, results []*ranking.Result, rc ranking.Context) []*ranking.Result {
	if rc.Preferences == nil && user != nil && user.ID != "" && e.deps.Preferences != nil {
		recs, err := e.deps.Preferences.GetPreferences(ctx, user.ID)
		if err != nil {
			e.logger.Warn().Err(err).Str("user_id", user.ID).Msg("load preferences failed")
		} else {
			rc.Preferences = core.PreferenceWeights(recs)
		}
	}
	return ranking.Scorer{}.Rank(results, rc)
}

// RankingContext 从请求参数构建排序上下文：query、search_history、location。
func RankingContext(req RequestContext) ranking.Context {
	rc := ranking.Context{}
	if v, ok := req.Params["query"]; ok {
		rc.Query, _ = conv.ToString(v)
	}
	rc.SearchHistory = conv.SliceAnyToString(req.Params["search_history"])
	if v, ok := req.Params["location"]; ok {
		rc.Location, _ = conv.ToString(v)
	}
	return rc
}

// Package feedback 记录用户交互并累积类目/品牌/价格区间偏好。
//
// 偏好分数上限为 core.MaxPreferenceScore；写入使用 PreferenceStore 的 compare-and-set，
// 并发交互产生版本冲突时重读后重试。任何失败只记录日志，不影响调用方的主流程。
package feedback

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/logging"
)

// 各交互类型的偏好增量
var increments = map[core.InteractionType]float64{
	core.InteractionView:     0.1,
	core.InteractionClick:    0.2,
	core.InteractionWishlist: 0.6,
	core.InteractionCart:     0.4,
	core.InteractionReview:   0.7,
	core.InteractionPurchase: 0.8,
}

// DefaultIncrement 是未知交互类型的增量。
const DefaultIncrement = 0.1

// DefaultMaxRetries 是 CAS 冲突时的最大重试次数。
const DefaultMaxRetries = 5

// Increment 返回交互类型对应的固定偏好增量。
func Increment(t core.InteractionType) float64 {
	if inc, ok := increments[t]; ok {
		return inc
	}
	return DefaultIncrement
}

// ScaledIncrement 与 Increment 相同，但带评分的 review 按 rating/5 缩放（rating <= 0 时不缩放）。
func ScaledIncrement(t core.InteractionType, rating float64) float64 {
	inc := Increment(t)
	if t == core.InteractionReview && rating > 0 {
		inc *= math.Min(rating, 5) / 5
	}
	return inc
}

// Loop 是 Preference Feedback Loop。
type Loop struct {
	prefs    core.PreferenceStore
	recorder core.InteractionRecorder // 可选
	clock    core.Clock
	logger   zerolog.Logger

	maxRetries   int
	scaleReviews bool
}

// Option 配置 Loop。
type Option func(*Loop)

// WithRecorder 同时把交互写入交互日志。
func WithRecorder(r core.InteractionRecorder) Option {
	return func(l *Loop) { l.recorder = r }
}

// WithClock 替换时间源。
func WithClock(c core.Clock) Option {
	return func(l *Loop) { l.clock = c }
}

// WithLogger 设置 Logger。
//
//nolint:gocritic // zerolog.Logger 按值传递
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loop) { l.logger = logging.Component(logger, "feedback") }
}

// WithMaxRetries 设置 CAS 冲突的最大重试次数。
func WithMaxRetries(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxRetries = n
		}
	}
}

// WithReviewRatingScale 开启后 review 增量按评分缩放，默认使用固定增量。
func WithReviewRatingScale(enabled bool) Option {
	return func(l *Loop) { l.scaleReviews = enabled }
}

// New 创建 Loop。
func New(prefs core.PreferenceStore, opts ...Option) *Loop {
	l := &Loop{
		prefs:      prefs,
		clock:      core.SystemClock{},
		logger:     logging.Component(logging.Nop(), "feedback"),
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecordInteraction 记录一次交互并更新偏好。从不返回错误，也不会 panic。
// user 或 product 为空时什么都不做；rating 仅对 review 有意义，传 0 表示无评分。
func (l *Loop) RecordInteraction(ctx context.Context, user *core.User, product *core.Product, t core.InteractionType, rating float64) {
	if user == nil || user.ID == "" || product == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().
				Str("user_id", user.ID).
				Str("product_id", product.ID).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("record interaction panicked")
		}
	}()

	now := l.clock.Now()
	if l.recorder != nil {
		err := l.recorder.RecordInteraction(ctx, core.Interaction{
			UserID:    user.ID,
			ProductID: product.ID,
			Type:      t,
			Rating:    rating,
			CreatedAt: now,
		})
		if err != nil {
			l.logger.Error().Err(err).
				Str("user_id", user.ID).
				Str("product_id", product.ID).
				Str("interaction", string(t)).
				Msg("failed to record interaction")
		}
	}

	if l.prefs == nil {
		return
	}
	inc := Increment(t)
	if l.scaleReviews {
		inc = ScaledIncrement(t, rating)
	}
	for _, target := range Targets(product) {
		if err := l.bump(ctx, user.ID, target.Type, target.Key, inc); err != nil {
			l.logger.Error().
				Err(core.WrapDomainError(core.ModuleFeedback, core.ErrorCodeFeedbackFailure, "update preference", err)).
				Str("user_id", user.ID).
				Str("product_id", product.ID).
				Str("preference_type", string(target.Type)).
				Str("preference_key", target.Key).
				Msg("failed to update preference")
		}
	}
}

// Target 是一次交互影响的偏好维度。
type Target struct {
	Type core.PreferenceType
	Key  string
}

// Targets 返回商品影响的偏好：每个类目、品牌、价格区间。
func Targets(p *core.Product) []Target {
	out := make([]Target, 0, len(p.CategoryIDs)+2)
	seen := make(map[string]struct{}, len(p.CategoryIDs))
	for _, cid := range p.CategoryIDs {
		if cid == "" {
			continue
		}
		if _, dup := seen[cid]; dup {
			continue
		}
		seen[cid] = struct{}{}
		out = append(out, Target{Type: core.PreferenceCategory, Key: cid})
	}
	if p.BrandID != "" {
		out = append(out, Target{Type: core.PreferenceBrand, Key: p.BrandID})
	}
	out = append(out, Target{Type: core.PreferencePriceRange, Key: core.PriceBracket(p.Price)})
	return out
}

// bump 以 CAS 把 (user, typ, key) 的分数加 inc，上限 MaxPreferenceScore。
func (l *Loop) bump(ctx context.Context, userID string, typ core.PreferenceType, key string, inc float64) error {
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		var (
			score    float64
			expected int64
		)
		cur, err := l.prefs.GetPreference(ctx, userID, typ, key)
		switch {
		case err == nil:
			score, expected = cur.Score, cur.Version
		case core.IsNotFound(err):
		default:
			return err
		}

		next := math.Min(score+inc, core.MaxPreferenceScore)
		if expected != 0 && next == score {
			return nil
		}
		err = l.prefs.CompareAndSwapPreference(ctx, core.PreferenceRecord{
			UserID:      userID,
			Type:        typ,
			Key:         key,
			Score:       next,
			LastUpdated: l.clock.Now(),
		}, expected)
		if err == nil {
			return nil
		}
		if !core.IsConflict(err) {
			return err
		}
		l.logger.Debug().
			Str("user_id", userID).
			Str("preference_key", key).
			Int("attempt", attempt+1).
			Msg("preference version conflict, retrying")
	}
	return fmt.Errorf("preference %s/%s: %w", typ, key, core.ErrPreferenceConflict)
}

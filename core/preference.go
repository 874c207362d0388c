package core

import (
	"context"
	"time"
)

// PreferenceType 是偏好维度。
type PreferenceType string

const (
	PreferenceCategory   PreferenceType = "category"
	PreferenceBrand      PreferenceType = "brand"
	PreferencePriceRange PreferenceType = "price_range"
)

// MaxPreferenceScore 是偏好分数上限（归一化尺度）。
const MaxPreferenceScore = 1.0

// PreferenceRecord 是 (UserID, Type, Key) 三元组上的累积偏好分数。
// Version 用于乐观并发控制，每次成功写入加 1；新记录的 Version 为 0。
type PreferenceRecord struct {
	UserID      string
	Type        PreferenceType
	Key         string
	Score       float64
	LastUpdated time.Time
	Version     int64
}

// PreferenceStore 是偏好存储的领域接口。
//
// 写入采用 compare-and-set：只有当存储中的 Version 等于 expectedVersion 时才写入，
// 否则返回 CONFLICT 错误，由调用方重读后重试，避免并发交互造成的更新丢失。
type PreferenceStore interface {
	// GetPreferences 返回用户的全部偏好
	GetPreferences(ctx context.Context, userID string) ([]PreferenceRecord, error)

	// GetPreference 读取单条偏好，不存在返回 NOT_FOUND
	GetPreference(ctx context.Context, userID string, typ PreferenceType, key string) (*PreferenceRecord, error)

	// CompareAndSwapPreference 写入 rec；expectedVersion 为 0 表示仅在记录不存在时插入
	CompareAndSwapPreference(ctx context.Context, rec PreferenceRecord, expectedVersion int64) error
}

// ErrPreferenceConflict 表示 CAS 写入时版本不匹配
var ErrPreferenceConflict = NewDomainError(ModuleFeedback, ErrorCodeConflict, "preference: version conflict")

// ErrPreferenceNotFound 表示偏好记录不存在
var ErrPreferenceNotFound = NewDomainError(ModuleFeedback, ErrorCodeNotFound, "preference: not found")

// PreferenceWeights 把偏好列表按维度整理为 map[type]map[key]score。
func PreferenceWeights(recs []PreferenceRecord) map[PreferenceType]map[string]float64 {
	out := make(map[PreferenceType]map[string]float64, 3)
	for _, r := range recs {
		m := out[r.Type]
		if m == nil {
			m = make(map[string]float64)
			out[r.Type] = m
		}
		m[r.Key] = r.Score
	}
	return out
}

// PerformanceSample 是一次生成调用的耗时与结果数（只写遥测）。
type PerformanceSample struct {
	BlockName     string
	ExecutionTime time.Duration
	ResultCount   int
	CacheHit      bool
	Fallback      bool
}

// PriceBracket 把价格映射到价格区间偏好 key。
func PriceBracket(price float64) string {
	switch {
	case price < 10:
		return "budget"
	case price < 50:
		return "low"
	case price < 100:
		return "medium"
	case price < 500:
		return "high"
	default:
		return "premium"
	}
}

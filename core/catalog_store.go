package core

import (
	"context"
	"time"
)

// CatalogStore 是 Strategy 读取商品/交互数据的领域接口（只读）。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（catalog）实现
//   - 统一各个 Strategy 的数据访问，避免每个算法各自定义存储接口
//
// 使用场景：
//   - 热门/趋势：全部可见商品 + 近期交互
//   - 内容推荐：商品属性
//   - 协同过滤/交叉销售：用户-商品交互
//
// 实现：
//   - catalog.MemoryCatalog（测试/开发）
//   - catalog.SQLiteCatalog（modernc.org/sqlite）
type CatalogStore interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// VisibleProducts 返回所有可见且已发布的商品
	VisibleProducts(ctx context.Context) ([]*Product, error)

	// GetProducts 批量读取商品，不存在的 ID 不出现在结果中
	GetProducts(ctx context.Context, ids []string) (map[string]*Product, error)

	// InteractionsSince 返回 since 之后的所有交互（按时间升序）
	InteractionsSince(ctx context.Context, since time.Time) ([]Interaction, error)

	// UserInteractions 返回用户的交互历史（按时间降序），limit <= 0 表示不限制
	UserInteractions(ctx context.Context, userID string, limit int) ([]Interaction, error)

	// ProductInteractions 返回与商品发生过指定类型交互的记录；types 为空表示全部类型
	ProductInteractions(ctx context.Context, productID string, types ...InteractionType) ([]Interaction, error)
}

// InteractionRecorder 是 CatalogStore 的可选扩展：写入交互日志。
// Feedback Loop 通过类型断言检测后端是否支持。
type InteractionRecorder interface {
	RecordInteraction(ctx context.Context, in Interaction) error
}

// ProductSignals 是外部特征服务提供的商品热度信号。
type ProductSignals struct {
	Views   float64
	Sales   float64
	Reviews float64
	Rating  float64
}

// SignalSource 提供商品热度信号（例如 Feast 在线特征）。
// 返回的 map 中缺失的商品使用 CatalogStore 中的计数。
type SignalSource interface {
	Name() string
	ProductSignals(ctx context.Context, productIDs []string) (map[string]ProductSignals, error)
}

// Clock 提供当前时间，Aggregator 用它计算截止时间。
type Clock interface {
	Now() time.Time
}

// SystemClock 使用 time.Now。
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

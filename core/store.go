package core

import "context"

// Store 是推荐结果缓存使用的 KV 存储。
// 实现：store.MemoryStore（TTL + 周期清理）、store.RedisStore（原生 TTL）。
type Store interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// Get 读取单个 key 的值；不存在或已过期返回 ErrStoreNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入单个 key-value，ttl 单位为秒
	Set(ctx context.Context, key string, value []byte, ttl ...int) error

	// Delete 删除单个 key
	Delete(ctx context.Context, key string) error

	// BatchGet 批量读取，不存在的 key 不出现在结果中
	BatchGet(ctx context.Context, keys []string) (map[string][]byte, error)

	// BatchSet 批量写入，所有 key 使用同一个 ttl
	BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error

	// Close 关闭连接/释放资源
	Close() error
}

// KeyValueStore 是 Store 的扩展接口，支持计数器。
type KeyValueStore interface {
	Store

	// IncrBy 对已存在的整数 key 原子加 delta，保留原有 TTL。
	// key 不存在（或已过期）时返回 ErrStoreNotFound，不会创建新 key。
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
}

// ErrStoreNotFound 表示 key 不存在或已过期。
var ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

// IsStoreNotFound 检查错误是否为 store 模块的 NOT_FOUND。
func IsStoreNotFound(err error) bool {
	domainErr := GetDomainError(err)
	return domainErr != nil && domainErr.Module == ModuleStore && domainErr.Code == ErrorCodeNotFound
}

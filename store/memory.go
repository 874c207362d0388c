package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rushteam/catalogrec/core"
)

// DefaultSweepInterval 是 MemoryStore 清理过期 key 的默认周期。
const DefaultSweepInterval = 10 * time.Second

// MemoryStore 是内存实现的 KeyValueStore，用于测试/开发/单机部署。
// 支持 TTL：读路径上过期的 key 视为不存在，真正的删除由周期性 sweep 完成。
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*entry
	now  func() time.Time

	clean *time.Ticker
	stop  chan struct{}
	once  sync.Once
}

type entry struct {
	value  []byte
	expire time.Time // 零值表示永不过期
}

func (e *entry) expired(now time.Time) bool {
	return !e.expire.IsZero() && !now.Before(e.expire)
}

// MemoryStoreOption 配置 MemoryStore。
type MemoryStoreOption func(*MemoryStore)

// WithNow 替换时间源（测试使用）。
func WithNow(now func() time.Time) MemoryStoreOption {
	return func(m *MemoryStore) { m.now = now }
}

// NewMemoryStore 创建 MemoryStore 并启动后台 sweep；sweepInterval <= 0 时使用默认值。
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	return NewMemoryStoreWithSweep(DefaultSweepInterval, opts...)
}

// NewMemoryStoreWithSweep 创建指定 sweep 周期的 MemoryStore。
func NewMemoryStoreWithSweep(sweepInterval time.Duration, opts ...MemoryStoreOption) *MemoryStore {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	ms := &MemoryStore{
		data:  make(map[string]*entry),
		now:   time.Now,
		clean: time.NewTicker(sweepInterval),
		stop:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ms)
	}
	go ms.cleanup()
	return ms
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.data[key]
	if !ok || e.expired(m.now()) {
		return nil, ErrNotFound
	}
	return e.value, nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = &entry{value: value, expire: m.expireAt(ttl)}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

func (m *MemoryStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]byte, len(keys))
	now := m.now()
	for _, k := range keys {
		e, ok := m.data[k]
		if !ok || e.expired(now) {
			continue
		}
		result[k] = e.value
	}
	return result, nil
}

func (m *MemoryStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	expire := m.expireAt(ttl)
	for k, v := range kvs {
		m.data[k] = &entry{value: v, expire: expire}
	}
	return nil
}

// IncrBy 实现 core.KeyValueStore；保留 key 原有的过期时间。
func (m *MemoryStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.data[key]
	if !ok || e.expired(m.now()) {
		return 0, ErrNotFound
	}
	cur, err := strconv.ParseInt(string(e.value), 10, 64)
	if err != nil {
		return 0, core.WrapDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "store: value is not an integer", err)
	}
	cur += delta
	e.value = []byte(strconv.FormatInt(cur, 10))
	return cur, nil
}

// Len 返回当前持有的 key 数量（包含尚未被 sweep 的过期 key）。
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *MemoryStore) Close() error {
	m.once.Do(func() {
		m.clean.Stop()
		close(m.stop)
	})
	return nil
}

func (m *MemoryStore) expireAt(ttl []int) time.Time {
	if len(ttl) > 0 && ttl[0] > 0 {
		return m.now().Add(time.Duration(ttl[0]) * time.Second)
	}
	return time.Time{}
}

func (m *MemoryStore) cleanup() {
	for {
		select {
		case <-m.clean.C:
			m.Sweep()
		case <-m.stop:
			return
		}
	}
}

// Sweep 删除所有已过期的 key，返回删除数量。后台协程周期性调用，也可手动触发。
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for k, e := range m.data {
		if e.expired(now) {
			delete(m.data, k)
			removed++
		}
	}
	return removed
}

var _ core.KeyValueStore = (*MemoryStore)(nil)

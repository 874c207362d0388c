// Package cache 把生成的推荐结果缓存在 core.KeyValueStore 中，并记录命中次数。
//
// 每个条目占用两个 key：
//   - {key}        JSON 编码的候选列表与过期时间
//   - {key}:hits   命中计数（整数文本），与条目同时写入、同 TTL
package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/catalogrec/core"
)

// Entry 是一个缓存条目。
type Entry struct {
	Candidates []*core.Candidate
	ExpiresAt  time.Time
	HitCount   int64
}

type payload struct {
	Candidates []*core.Candidate `json:"candidates"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// Cache 是推荐结果缓存层。
type Cache struct {
	store   core.KeyValueStore
	breaker *gobreaker.CircuitBreaker[any]
	now     func() time.Time
}

// Option 配置 Cache。
type Option func(*Cache)

// WithBreaker 为所有存储调用加上熔断器。
func WithBreaker(b *gobreaker.CircuitBreaker[any]) Option {
	return func(c *Cache) { c.breaker = b }
}

// WithNow 替换时间源（测试使用）。
func WithNow(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New 创建 Cache。
func New(store core.KeyValueStore, opts ...Option) *Cache {
	c := &Cache{store: store, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store 返回底层存储。
func (c *Cache) Store() core.KeyValueStore { return c.store }

func hitsKey(key string) string { return key + ":hits" }

// Get 读取条目。未命中（不存在或已过期）返回 found=false 且 err 为 nil；
// 存储错误包装为 CACHE_FAILURE。
func (c *Cache) Get(ctx context.Context, key string) (*Entry, bool, error) {
	v, err := c.do(func() (any, error) {
		return c.store.BatchGet(ctx, []string{key, hitsKey(key)})
	})
	if err != nil {
		return nil, false, failure("get", err)
	}
	vals := v.(map[string][]byte)

	raw, ok := vals[key]
	if !ok {
		return nil, false, nil
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false, failure("decode", err)
	}
	if !p.ExpiresAt.IsZero() && !c.now().Before(p.ExpiresAt) {
		return nil, false, nil
	}

	entry := &Entry{Candidates: p.Candidates, ExpiresAt: p.ExpiresAt}
	if h, ok := vals[hitsKey(key)]; ok {
		entry.HitCount, _ = strconv.ParseInt(string(h), 10, 64)
	}
	return entry, true, nil
}

// Put 写入条目，命中计数初始化为 0。ttl <= 0 时不缓存。
func (c *Cache) Put(ctx context.Context, key string, candidates []*core.Candidate, ttl time.Duration) error {
	secs := int(ttl / time.Second)
	if secs <= 0 {
		return nil
	}
	raw, err := json.Marshal(payload{Candidates: candidates, ExpiresAt: c.now().Add(ttl)})
	if err != nil {
		return failure("encode", err)
	}
	_, err = c.do(func() (any, error) {
		return nil, c.store.BatchSet(ctx, map[string][]byte{
			key:          raw,
			hitsKey(key): []byte("0"),
		}, secs)
	})
	if err != nil {
		return failure("put", err)
	}
	return nil
}

// IncrementHitCount 命中计数加 1 并返回新值。条目已过期时返回 NOT_FOUND，不创建计数器。
func (c *Cache) IncrementHitCount(ctx context.Context, key string) (int64, error) {
	v, err := c.do(func() (any, error) {
		return c.store.IncrBy(ctx, hitsKey(key), 1)
	})
	if err != nil {
		if core.IsStoreNotFound(err) {
			return 0, err
		}
		return 0, failure("incr", err)
	}
	return v.(int64), nil
}

// Invalidate 删除条目。
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	_, err := c.do(func() (any, error) {
		if err := c.store.Delete(ctx, key); err != nil {
			return nil, err
		}
		return nil, c.store.Delete(ctx, hitsKey(key))
	})
	if err != nil {
		return failure("invalidate", err)
	}
	return nil
}

func (c *Cache) do(fn func() (any, error)) (any, error) {
	if c.breaker == nil {
		return fn()
	}
	return c.breaker.Execute(fn)
}

// IsOpen 报告错误是否来自熔断器拒绝。
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func failure(op string, err error) error {
	return core.WrapDomainError(core.ModuleCache, core.ErrorCodeCacheFailure, "cache: "+op, err)
}

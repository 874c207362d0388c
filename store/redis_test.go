package store

import (
	"context"
	"os"
	"testing"

	"github.com/rushteam/catalogrec/core"
)

// 需要 Redis：REDIS_ADDR=localhost:6379 go test ./store/
func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("未设置 REDIS_ADDR，跳过 Redis 测试")
	}
	rs, err := NewRedisStore(context.Background(), addr, "", 15)
	if err != nil {
		t.Skipf("Redis 不可用: %v", err)
	}
	t.Cleanup(func() { _ = rs.Close() })
	return rs
}

func TestRedisStore_GetSetIncr(t *testing.T) {
	ctx := context.Background()
	rs := newRedisStore(t)

	key := "catalogrec:test:" + t.Name()
	t.Cleanup(func() { _ = rs.Delete(ctx, key); _ = rs.Delete(ctx, key+":hits") })

	if _, err := rs.Get(ctx, key); !core.IsStoreNotFound(err) {
		t.Fatalf("期望 NotFound，实际 %v", err)
	}
	if _, err := rs.IncrBy(ctx, key+":hits", 1); !core.IsStoreNotFound(err) {
		t.Fatalf("不存在的计数器期望 NotFound，实际 %v", err)
	}

	err := rs.BatchSet(ctx, map[string][]byte{key: []byte("payload"), key + ":hits": []byte("0")}, 60)
	if err != nil {
		t.Fatalf("BatchSet 失败: %v", err)
	}
	got, err := rs.BatchGet(ctx, []string{key, key + ":hits", key + ":missing"})
	if err != nil {
		t.Fatalf("BatchGet 失败: %v", err)
	}
	if string(got[key]) != "payload" || string(got[key+":hits"]) != "0" || len(got) != 2 {
		t.Fatalf("BatchGet = %v", got)
	}
	n, err := rs.IncrBy(ctx, key+":hits", 1)
	if err != nil || n != 1 {
		t.Fatalf("IncrBy = %d, %v", n, err)
	}
	ttl, err := rs.Client().TTL(ctx, key+":hits").Result()
	if err != nil || ttl <= 0 {
		t.Fatalf("计数器应保留 TTL，实际 %v, %v", ttl, err)
	}
}

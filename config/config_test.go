package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.GenerationDeadline != 30*time.Second {
		t.Errorf("deadline = %v", cfg.Engine.GenerationDeadline)
	}
	if cfg.Engine.MinQualityScore != 0.3 {
		t.Errorf("min quality = %v", cfg.Engine.MinQualityScore)
	}
	if cfg.Cache.Backend != "memory" || cfg.Catalog.Driver != "memory" {
		t.Errorf("backend = %s, driver = %s", cfg.Cache.Backend, cfg.Catalog.Driver)
	}
	if cfg.Cache.Breaker.ConsecutiveFailures != 5 {
		t.Errorf("breaker failures = %d", cfg.Cache.Breaker.ConsecutiveFailures)
	}
	if cfg.Feast.Features.Views != "product_stats:view_count" {
		t.Errorf("feast views = %q", cfg.Feast.Features.Views)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeFile(t, "reco.yaml", `
engine:
  generation_deadline: 5s
  min_quality_score: 0.5
cache:
  backend: memory
  redis:
    addr: redis:6379
catalog:
  driver: sqlite
  path: /tmp/catalog.db
blocks_path: blocks.yaml
`)
	t.Setenv("RECO_CACHE__BACKEND", "redis")
	t.Setenv("RECO_LOGGING__LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.GenerationDeadline != 5*time.Second {
		t.Errorf("deadline = %v", cfg.Engine.GenerationDeadline)
	}
	if cfg.Engine.MinQualityScore != 0.5 {
		t.Errorf("min quality = %v", cfg.Engine.MinQualityScore)
	}
	if cfg.Cache.Backend != "redis" || !cfg.Cache.Redis.Enabled {
		t.Errorf("环境变量应覆盖文件: backend = %s", cfg.Cache.Backend)
	}
	if cfg.Cache.Redis.Addr != "redis:6379" {
		t.Errorf("redis addr = %s", cfg.Cache.Redis.Addr)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %s", cfg.Logging.Level)
	}
	if cfg.Catalog.Path != "/tmp/catalog.db" || cfg.BlocksPath != "blocks.yaml" {
		t.Errorf("catalog path = %s, blocks = %s", cfg.Catalog.Path, cfg.BlocksPath)
	}
	// 文件未设置的字段保留默认值
	if !cfg.Engine.Singleflight {
		t.Error("singleflight 默认应开启")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown backend", "cache:\n  backend: memcached\n"},
		{"zero deadline", "engine:\n  generation_deadline: 0s\n"},
		{"quality out of range", "engine:\n  min_quality_score: 1.5\n"},
		{"sqlite without path", "catalog:\n  driver: sqlite\n"},
		{"feast without endpoint", "feast:\n  enabled: true\n  project: catalog\n"},
		{"bad log level", "logging:\n  level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeFile(t, "reco.yaml", tt.yaml)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"RECO_CACHE__REDIS__ADDR":        "cache.redis.addr",
		"RECO_ENGINE__MIN_QUALITY_SCORE": "engine.min_quality_score",
		"RECO_BLOCKS_PATH":               "blocks_path",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

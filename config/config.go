// Package config 加载引擎配置（koanf：默认值 -> YAML 文件 -> RECO_ 环境变量）
// 与推荐位 Block 定义（YAML），并用 validator 校验。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/catalogrec/cache"
	"github.com/rushteam/catalogrec/feast"
	"github.com/rushteam/catalogrec/logging"
)

// EnvPrefix 是环境变量前缀；层级用双下划线分隔，例如 RECO_CACHE__REDIS__ADDR -> cache.redis.addr。
const EnvPrefix = "RECO_"

// Config 是引擎的完整配置。
type Config struct {
	Logging   logging.Config  `koanf:"logging"`
	Engine    EngineConfig    `koanf:"engine"`
	Cache     CacheConfig     `koanf:"cache"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Feast     FeastConfig     `koanf:"feast"`
	Telemetry TelemetryConfig `koanf:"telemetry"`

	// BlocksPath 是 Block 定义文件路径
	BlocksPath string `koanf:"blocks_path"`
}

// EngineConfig 是生成流程的参数。
type EngineConfig struct {
	// GenerationDeadline 一次生成的时间预算
	GenerationDeadline time.Duration `koanf:"generation_deadline" validate:"gt=0"`

	// MinQualityScore 质量过滤阈值
	MinQualityScore float64 `koanf:"min_quality_score" validate:"gte=0,lte=1"`

	// Singleflight 是否合并同一缓存 key 的并发未命中
	Singleflight bool `koanf:"singleflight"`

	// ScaleReviewByRating 为 true 时 review 的偏好增量按 rating/5 缩放
	ScaleReviewByRating bool `koanf:"scale_review_by_rating"`
}

// CacheConfig 是结果缓存配置。
type CacheConfig struct {
	// Backend: memory / redis
	Backend string `koanf:"backend" validate:"oneof=memory redis"`

	// SweepInterval 内存缓存清理过期 key 的周期
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"gte=0"`

	Redis   RedisConfig         `koanf:"redis"`
	Breaker cache.BreakerConfig `koanf:"breaker"`

	// BreakerEnabled 是否启用熔断器
	BreakerEnabled bool `koanf:"breaker_enabled"`
}

// RedisConfig 是 Redis 连接配置。
type RedisConfig struct {
	Addr     string `koanf:"addr" validate:"required_if=Enabled true"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`

	// Enabled 由 Backend 推导，不需要配置
	Enabled bool `koanf:"-"`
}

// CatalogConfig 是商品/交互/偏好存储配置。
type CatalogConfig struct {
	// Driver: memory / sqlite
	Driver string `koanf:"driver" validate:"oneof=memory sqlite"`

	// Path 是 SQLite 文件路径，":memory:" 表示内存库
	Path string `koanf:"path" validate:"required_if=Driver sqlite"`
}

// FeastConfig 是 Feast 在线特征配置。
type FeastConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Endpoint string `koanf:"endpoint" validate:"required_if=Enabled true"`
	Project  string `koanf:"project" validate:"required_if=Enabled true"`
	Token    string `koanf:"token"`
	TLS      bool   `koanf:"tls"`

	// Timeout 单次请求超时
	Timeout time.Duration `koanf:"timeout" validate:"gte=0"`

	Features feast.FeatureNames `koanf:"features"`
}

// TelemetryConfig 是性能样本导出配置。
type TelemetryConfig struct {
	Enabled    bool `koanf:"enabled"`
	BufferSize int  `koanf:"buffer_size" validate:"gte=0"`
}

// Default 返回默认配置。
func Default() Config {
	return Config{
		Logging: logging.Config{Level: "info", Format: "json"},
		Engine: EngineConfig{
			GenerationDeadline: 30 * time.Second,
			MinQualityScore:    0.3,
			Singleflight:       true,
		},
		Cache: CacheConfig{
			Backend:        "memory",
			SweepInterval:  10 * time.Second,
			Redis:          RedisConfig{Addr: "localhost:6379"},
			BreakerEnabled: true,
			Breaker: cache.BreakerConfig{
				Name:                "recommendation-cache",
				ConsecutiveFailures: 5,
				OpenTimeout:         30 * time.Second,
				HalfOpenRequests:    1,
			},
		},
		Catalog: CatalogConfig{Driver: "memory"},
		Feast: FeastConfig{
			Timeout:  time.Second,
			Features: feast.DefaultFeatureNames(),
		},
		Telemetry: TelemetryConfig{Enabled: true, BufferSize: 1024},
	}
}

// Load 按 默认值 -> path 指向的 YAML 文件（可为空）-> 环境变量 的顺序加载配置并校验。
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey: RECO_CACHE__REDIS__ADDR -> cache.redis.addr
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate 校验配置。
func (c *Config) Validate() error {
	c.Cache.Redis.Enabled = c.Cache.Backend == "redis"
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

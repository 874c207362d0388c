package cache

import (
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/catalogrec/core"
)

// BreakerConfig 配置缓存熔断器。
type BreakerConfig struct {
	Name string `koanf:"name"`

	// ConsecutiveFailures 连续失败多少次后打开，默认 5
	ConsecutiveFailures uint32 `koanf:"consecutive_failures"`

	// OpenTimeout 打开后多久进入半开，默认 30s
	OpenTimeout time.Duration `koanf:"open_timeout"`

	// HalfOpenRequests 半开状态允许的并发探测数，默认 1
	HalfOpenRequests uint32 `koanf:"half_open_requests"`

	// OnStateChange 状态变化回调（例如导出指标），state 为 closed/half-open/open
	OnStateChange func(name, from, to string) `koanf:"-"`
}

// NewBreaker 创建缓存熔断器。key 不存在不计为失败。
//
//nolint:gocritic // zerolog.Logger 按值传递
func NewBreaker(cfg BreakerConfig, logger zerolog.Logger) *gobreaker.CircuitBreaker[any] {
	if cfg.Name == "" {
		cfg.Name = "recommendation-cache"
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}

	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || core.IsStoreNotFound(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("cache circuit breaker state changed")
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from.String(), to.String())
			}
		},
	})
}

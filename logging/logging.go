// Package logging 统一构建引擎使用的 zerolog Logger。
//
// 生产环境使用 JSON 输出，开发环境可切换为 console：
//
//	logger := logging.New(logging.Config{Level: "info", Format: "json"})
//	eng := engine.New(deps, engine.WithLogger(logger))
//
// 各组件通过 Component 派生带 component 字段的子 Logger。
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config 是日志配置。
type Config struct {
	// Level: trace/debug/info/warn/error/disabled，默认 info
	Level string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic disabled"`

	// Format: json/console，默认 json
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`

	// Caller 是否输出调用位置
	Caller bool `koanf:"caller"`

	// Output 默认 os.Stderr
	Output io.Writer `koanf:"-"`
}

// DefaultConfig 返回默认日志配置。
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		Output: os.Stderr,
	}
}

// New 根据配置构建 Logger。
func New(cfg Config) zerolog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	output := cfg.Output
	if strings.EqualFold(cfg.Format, "console") {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.TimeOnly}
	}

	ctx := zerolog.New(output).Level(ParseLevel(cfg.Level)).With().Timestamp()
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// Nop 返回丢弃所有输出的 Logger，测试与未注入 Logger 时使用。
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// Component 派生带 component 字段的子 Logger。
//
//nolint:gocritic // zerolog.Logger 按值传递
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// ParseLevel 把字符串级别转为 zerolog.Level，无法识别时为 info。
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// WithRequestID 把带 request_id 字段的 Logger 放入 ctx，下游用 Ctx 取出。
//
//nolint:gocritic // zerolog.Logger 按值传递
func WithRequestID(ctx context.Context, l zerolog.Logger, requestID string) context.Context {
	return l.With().Str("request_id", requestID).Logger().WithContext(ctx)
}

// Ctx 返回 ctx 中的 Logger；没有时返回 fallback。
//
//nolint:gocritic // zerolog.Logger 按值传递
func Ctx(ctx context.Context, fallback zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &fallback
}

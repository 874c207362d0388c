package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"disabled", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Format: "json", Output: &buf})

	l.Info().Msg("hidden")
	cl := Component(l, "cache")
	cl.Warn().Msg("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info 级别不应输出: %s", out)
	}
	if !strings.Contains(out, `"component":"cache"`) || !strings.Contains(out, "visible") {
		t.Errorf("缺少 component 字段: %s", out)
	}
}

func TestCtx(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: "debug", Output: &buf})

	ctx := WithRequestID(context.Background(), base, "req-1")
	Ctx(ctx, Nop()).Info().Msg("hello")
	if !strings.Contains(buf.String(), `"request_id":"req-1"`) {
		t.Errorf("缺少 request_id: %s", buf.String())
	}

	buf.Reset()
	Ctx(context.Background(), base).Info().Msg("fallback")
	if !strings.Contains(buf.String(), "fallback") || strings.Contains(buf.String(), "request_id") {
		t.Errorf("无 Logger 的 ctx 应使用 fallback: %s", buf.String())
	}
}

// Package telemetry 记录推荐生成的性能样本（只写）。
package telemetry

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/logging"
)

// Recorder 接收 PerformanceSample。实现必须是非阻塞、尽力而为的。
type Recorder interface {
	Record(sample core.PerformanceSample)
}

// Nop 丢弃所有样本。
type Nop struct{}

func (Nop) Record(core.PerformanceSample) {}

// RecorderFunc 把函数适配为 Recorder。
type RecorderFunc func(core.PerformanceSample)

func (f RecorderFunc) Record(s core.PerformanceSample) { f(s) }

// Multi 依次转发给多个 Recorder。
type Multi []Recorder

func (m Multi) Record(s core.PerformanceSample) {
	for _, r := range m {
		if r != nil {
			r.Record(s)
		}
	}
}

// DefaultBufferSize 是 Async 的默认缓冲区大小。
const DefaultBufferSize = 1024

// Async 在后台 goroutine 中转发样本；缓冲区满时丢弃样本并计数，从不阻塞调用方。
type Async struct {
	next    Recorder
	ch      chan core.PerformanceSample
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	closed  bool
	dropped uint64
	logger  zerolog.Logger
}

// NewAsync 创建 Async；bufferSize <= 0 时使用 DefaultBufferSize。
//
//nolint:gocritic // zerolog.Logger 按值传递
func NewAsync(next Recorder, bufferSize int, logger zerolog.Logger) *Async {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	a := &Async{
		next:   next,
		ch:     make(chan core.PerformanceSample, bufferSize),
		done:   make(chan struct{}),
		logger: logging.Component(logger, "telemetry"),
	}
	go a.loop()
	return a
}

func (a *Async) loop() {
	defer close(a.done)
	for s := range a.ch {
		a.forward(s)
	}
}

func (a *Async) forward(s core.PerformanceSample) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().Interface("panic", r).Msg("telemetry recorder panicked")
		}
	}()
	a.next.Record(s)
}

func (a *Async) Record(s core.PerformanceSample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	select {
	case a.ch <- s:
	default:
		a.dropped++
	}
}

// Dropped 返回因缓冲区满被丢弃的样本数。
func (a *Async) Dropped() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Close 停止接收样本，等待已缓冲的样本处理完毕。
func (a *Async) Close() error {
	a.once.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.ch)
		a.mu.Unlock()
		<-a.done
	})
	return nil
}

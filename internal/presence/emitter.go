package presence

import (
	"context"
	"errors"
	log "log/slog"
	"sync"
	"time"
)

var ErrEmitterStarted = errors.New("presence emitter already started")

// StatusWriter 一次在线状态上报，实现方需保证幂等
type StatusWriter func(ctx context.Context, online bool) error

type EmitterOption func(*Emitter)

// WithInterval 覆盖心跳周期
func WithInterval(d time.Duration) EmitterOption {
	return func(e *Emitter) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithKeepOnline Stop 时若 guard 返回 true 则跳过最后一次离线上报（同一用户仍有其他会话）
func WithKeepOnline(guard func(ctx context.Context) bool) EmitterOption {
	return func(e *Emitter) {
		e.keepOnline = guard
	}
}

// WithLogAttrs 日志附加字段
func WithLogAttrs(args ...any) EmitterOption {
	return func(e *Emitter) {
		e.logArgs = args
	}
}

// Emitter 单个客户端会话的心跳发射器。
// Start 之后周期性上报在线；Hidden/Visible 对应页面切到后台与回到前台；
// Stop 注销定时器并做最后一次离线上报。上报失败只记录日志，由下一次心跳自愈。
type Emitter struct {
	write      StatusWriter
	interval   time.Duration
	keepOnline func(ctx context.Context) bool
	logArgs    []any

	mu      sync.Mutex
	started bool
	stopped bool
	visible bool
	stop    chan struct{}
	done    chan struct{}
}

func NewEmitter(write StatusWriter, opts ...EmitterOption) *Emitter {
	e := &Emitter{
		write:    write,
		interval: HeartbeatInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start 立即上报在线并启动心跳，ctx 结束时心跳循环随之退出
func (e *Emitter) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return ErrEmitterStarted
	}
	e.started = true
	e.visible = true
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	e.assert(ctx, true)
	e.mu.Unlock()

	go e.loop(ctx)
	return nil
}

// Hidden 页面不可见：同步上报离线，期间跳过心跳
func (e *Emitter) Hidden(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started || e.stopped {
		return
	}
	e.visible = false
	e.assert(ctx, false)
}

// Visible 页面重新可见：重新上报在线
func (e *Emitter) Visible(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started || e.stopped {
		return
	}
	e.visible = true
	e.assert(ctx, true)
}

// Stop 会话结束，可重复调用
func (e *Emitter) Stop(ctx context.Context) {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.stop)
	e.mu.Unlock()

	<-e.done

	if e.keepOnline != nil && e.keepOnline(ctx) {
		log.DebugContext(ctx, "presence: other sessions alive, skip final offline", e.logArgs...)
		return
	}
	e.assert(ctx, false)
}

func (e *Emitter) loop(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.tick(ctx)
		case <-e.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (e *Emitter) tick(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped || !e.visible {
		return
	}
	e.assert(ctx, true)
}

func (e *Emitter) assert(ctx context.Context, online bool) {
	if err := e.write(ctx, online); err != nil {
		args := append([]any{"online", online, "err", err}, e.logArgs...)
		log.WarnContext(ctx, "presence: status write dropped", args...)
	}
}

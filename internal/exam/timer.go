package exam

import (
	"context"
	"sync"
	"time"
)

const DefaultLowTimeWarning = 60

type TimerOption func(*Timer)

// WithLowTimeWarning 设置低剩余时间提醒点（秒），<=0 关闭提醒
func WithLowTimeWarning(seconds int) TimerOption {
	return func(t *Timer) { t.warnAt = seconds }
}

func OnTick(fn func(remaining int)) TimerOption {
	return func(t *Timer) { t.onTick = fn }
}

func OnLowTime(fn func(remaining int)) TimerOption {
	return func(t *Timer) { t.onLowTime = fn }
}

func OnExpired(fn func()) TimerOption {
	return func(t *Timer) { t.onExpired = fn }
}

// Timer 以秒为单位倒计时，低时提醒与到时回调各只触发一次
type Timer struct {
	mu        sync.Mutex
	remaining int
	warnAt    int
	warned    bool
	expired   bool
	stopped   bool

	onTick    func(int)
	onLowTime func(int)
	onExpired func()
}

func NewTimer(initialSeconds int, opts ...TimerOption) *Timer {
	if initialSeconds < 0 {
		initialSeconds = 0
	}
	t := &Timer{remaining: initialSeconds, warnAt: DefaultLowTimeWarning}
	for _, opt := range opts {
		opt(t)
	}
	// 起始时间已不高于提醒点时不再补发提醒
	if t.warnAt > 0 && initialSeconds <= t.warnAt {
		t.warned = true
	}
	return t
}

// NewTimerUntil 根据持久化的截止时间恢复倒计时
func NewTimerUntil(deadline, now time.Time, opts ...TimerOption) *Timer {
	return NewTimer(RemainingSeconds(deadline, now), opts...)
}

// RemainingSeconds 截止时间前的剩余整秒数，不为负
func RemainingSeconds(deadline, now time.Time) int {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

func (t *Timer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

// Stop 停止后 Tick 不再有任何效果
func (t *Timer) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

// Tick 推进一秒
func (t *Timer) Tick() {
	t.mu.Lock()
	if t.stopped || t.expired {
		t.mu.Unlock()
		return
	}
	if t.remaining > 0 {
		t.remaining--
	}
	remaining := t.remaining

	fireWarn := false
	if !t.warned && t.warnAt > 0 && remaining <= t.warnAt && remaining > 0 {
		t.warned = true
		fireWarn = true
	}
	fireExpire := false
	if remaining == 0 {
		t.expired = true
		fireExpire = true
	}
	onTick, onLowTime, onExpired := t.onTick, t.onLowTime, t.onExpired
	t.mu.Unlock()

	// 回调在锁外执行，允许回调内再读取计时器
	if onTick != nil {
		onTick(remaining)
	}
	if fireWarn && onLowTime != nil {
		onLowTime(remaining)
	}
	if fireExpire && onExpired != nil {
		onExpired()
	}
}

// Run 按 interval 驱动 Tick，直到到时、Stop 或 ctx 取消
func (t *Timer) Run(ctx context.Context, interval time.Duration) {
	if t.Remaining() == 0 {
		t.Tick()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Tick()
			t.mu.Lock()
			done := t.expired || t.stopped
			t.mu.Unlock()
			if done {
				return
			}
		}
	}
}

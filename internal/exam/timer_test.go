package exam

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerExpiresExactlyOnce(t *testing.T) {
	expired := 0
	warnings := 0
	var warnedAt int
	timer := NewTimer(900,
		OnLowTime(func(r int) { warnings++; warnedAt = r }),
		OnExpired(func() { expired++ }),
	)

	for i := 0; i < 900; i++ {
		timer.Tick()
	}
	assert.Equal(t, 1, expired)
	assert.Equal(t, 0, timer.Remaining())
	assert.True(t, timer.Expired())

	// 继续推进不会变成负数，也不会重复回调
	for i := 0; i < 5; i++ {
		timer.Tick()
	}
	assert.Equal(t, 1, expired)
	assert.Equal(t, 0, timer.Remaining())

	assert.Equal(t, 1, warnings)
	assert.Equal(t, 60, warnedAt)
}

func TestTimerNoWarningWhenStartingBelowMark(t *testing.T) {
	warnings := 0
	timer := NewTimer(30, OnLowTime(func(int) { warnings++ }))
	for i := 0; i < 30; i++ {
		timer.Tick()
	}
	assert.Equal(t, 0, warnings)
	assert.True(t, timer.Expired())
}

func TestTimerStop(t *testing.T) {
	timer := NewTimer(10)
	timer.Tick()
	timer.Stop()
	timer.Tick()
	assert.Equal(t, 9, timer.Remaining())
}

func TestTimerUntilDeadline(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, 120, NewTimerUntil(now.Add(2*time.Minute), now).Remaining())
	assert.Equal(t, 2, RemainingSeconds(now.Add(1500*time.Millisecond), now))
	assert.Equal(t, 0, RemainingSeconds(now.Add(-time.Second), now))
}

func TestTimerRun(t *testing.T) {
	done := make(chan struct{})
	timer := NewTimer(3, OnExpired(func() { close(done) }))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go timer.Run(ctx, time.Millisecond)

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("timer did not expire")
	}
	assert.Equal(t, 0, timer.Remaining())
}

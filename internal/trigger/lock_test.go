package trigger_test

import (
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"

	"github.com/airenas/rt-caption-assistant/internal/trigger"
)

func TestReplyLock_TryAcquire(t *testing.T) {
	tests := []struct {
		name   string
		first  string
		after  time.Duration
		finish bool
		second string
		want   trigger.AcquireResult
	}{
		{name: "empty", second: "  ", want: trigger.AcquireResult{Reason: trigger.ReasonEmpty}},
		{name: "free", second: "hello", want: trigger.AcquireResult{OK: true}},
		{name: "in flight", first: "hello", second: "other", want: trigger.AcquireResult{Reason: trigger.ReasonInFlight}},
		{name: "dedupe", first: "hello", finish: true, second: "Hello ", want: trigger.AcquireResult{Reason: trigger.ReasonDedupe}},
		{name: "dedupe over", first: "hello", finish: true, after: 1800 * time.Millisecond, second: "hello",
			want: trigger.AcquireResult{OK: true}},
		{name: "released", first: "hello", finish: true, second: "other", want: trigger.AcquireResult{OK: true}},
		{name: "deadman", first: "hello", after: 2500 * time.Millisecond, second: "other", want: trigger.AcquireResult{OK: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := clock.NewMock()
			l := trigger.NewReplyLock(clk, trigger.DefaultLockConfig())
			if tt.first != "" {
				assert.True(t, l.TryAcquire(tt.first).OK)
			}
			if tt.finish {
				l.Finish()
			}
			clk.Add(tt.after)
			assert.Equal(t, tt.want, l.TryAcquire(tt.second))
		})
	}
}

func TestReplyLock_Bump(t *testing.T) {
	clk := clock.NewMock()
	l := trigger.NewReplyLock(clk, trigger.DefaultLockConfig())
	assert.True(t, l.TryAcquire("hello").OK)
	for i := 0; i < 5; i++ {
		clk.Add(time.Second)
		l.Bump(0)
		assert.True(t, l.InFlight())
	}
	assert.Equal(t, clk.Now().Add(1200*time.Millisecond), l.Expiry())

	l.Bump(10 * time.Millisecond)
	assert.Equal(t, clk.Now().Add(1200*time.Millisecond), l.Expiry(), "never shortens")

	clk.Add(1200 * time.Millisecond)
	assert.False(t, l.InFlight())
	assert.True(t, l.Expiry().IsZero())
	l.Bump(0)
	assert.False(t, l.InFlight(), "bump does not take a free lock")
}

func TestReplyLock_MinBump(t *testing.T) {
	clk := clock.NewMock()
	l := trigger.NewReplyLock(clk, trigger.LockConfig{Dedupe: time.Second, Hold: 100 * time.Millisecond})
	assert.True(t, l.TryAcquire("hello").OK)
	l.Bump(10 * time.Millisecond)
	assert.Equal(t, clk.Now().Add(250*time.Millisecond), l.Expiry())
}

func TestReplyLock_Remember(t *testing.T) {
	clk := clock.NewMock()
	l := trigger.NewReplyLock(clk, trigger.DefaultLockConfig())
	l.Remember("hello")
	assert.Equal(t, trigger.AcquireResult{Reason: trigger.ReasonDedupe}, l.TryAcquire("hello"))
	assert.False(t, l.InFlight())
}

package trigger

import (
	"strings"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/facebookgo/clock"

	"github.com/airenas/rt-caption-assistant/internal/norm"
)

// Acquire refusal reasons
const (
	ReasonEmpty    = "empty"
	ReasonDedupe   = "dedupe"
	ReasonInFlight = "in_flight"
)

// AcquireResult tells if the lock was taken
type AcquireResult struct {
	OK     bool
	Reason string
}

// LockConfig for ReplyLock
type LockConfig struct {
	// Dedupe rejects the same payload inside the window
	Dedupe time.Duration
	// Hold is the deadman expiry of a fresh lock
	Hold time.Duration
	// Bump is the extension given on stream activity
	Bump    time.Duration
	MinBump time.Duration
}

// DefaultLockConfig returns lock defaults
func DefaultLockConfig() LockConfig {
	return LockConfig{Dedupe: 1800 * time.Millisecond, Hold: 2500 * time.Millisecond,
		Bump: 1200 * time.Millisecond, MinBump: 250 * time.Millisecond}
}

// ReplyLock allows one reply generation at a time.
// The lock expires by itself, so a stalled call never blocks the next one.
type ReplyLock struct {
	clock clock.Clock
	cfg   LockConfig

	mu       sync.Mutex
	lastHash string
	lastAt   time.Time
	until    time.Time
}

// NewReplyLock creates lock
func NewReplyLock(clk clock.Clock, cfg LockConfig) *ReplyLock {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.MinBump <= 0 {
		cfg.MinBump = 250 * time.Millisecond
	}
	goapp.Log.Info().Dur("dedupe", cfg.Dedupe).Dur("hold", cfg.Hold).Dur("bump", cfg.Bump).Msg("Reply lock")
	return &ReplyLock{clock: clk, cfg: cfg}
}

// TryAcquire takes the lock for the payload
func (l *ReplyLock) TryAcquire(payload string) AcquireResult {
	if strings.TrimSpace(payload) == "" {
		return AcquireResult{Reason: ReasonEmpty}
	}
	h := norm.Hash(norm.Key(payload))
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	if h == l.lastHash && now.Sub(l.lastAt) < l.cfg.Dedupe {
		return AcquireResult{Reason: ReasonDedupe}
	}
	if l.inFlight(now) {
		return AcquireResult{Reason: ReasonInFlight}
	}
	l.lastHash, l.lastAt = h, now
	l.until = now.Add(l.cfg.Hold)
	return AcquireResult{OK: true}
}

// Bump extends a held lock by d, or by the configured bump if d <= 0
func (l *ReplyLock) Bump(d time.Duration) {
	if d <= 0 {
		d = l.cfg.Bump
	}
	if d < l.cfg.MinBump {
		d = l.cfg.MinBump
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	if !l.inFlight(now) {
		return
	}
	if u := now.Add(d); u.After(l.until) {
		l.until = u
	}
}

// Finish releases the lock
func (l *ReplyLock) Finish() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.until = time.Time{}
}

// InFlight reports if the lock is held and not expired
func (l *ReplyLock) InFlight() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight(l.clock.Now())
}

// Expiry returns the deadman time, zero if not held
func (l *ReplyLock) Expiry() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.inFlight(l.clock.Now()) {
		return time.Time{}
	}
	return l.until
}

// Remember records the payload as the last one without taking the lock
func (l *ReplyLock) Remember(payload string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastHash, l.lastAt = norm.Hash(norm.Key(payload)), l.clock.Now()
}

func (l *ReplyLock) inFlight(now time.Time) bool {
	if l.until.IsZero() {
		return false
	}
	if !now.Before(l.until) {
		l.until = time.Time{}
		return false
	}
	return true
}

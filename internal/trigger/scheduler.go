// Package trigger decides when suggestions are generated automatically
package trigger

import (
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/facebookgo/clock"
)

//go:generate stringer -type=State

// State of the auto trigger
type State int

const (
	// Idle - waiting for activity
	Idle State = iota
	// Armed - the idle timer is running
	Armed
	// Firing - fire callback is running
	Firing
	// Cooldown - short rest after a fire
	Cooldown
)

// Config for Scheduler
type Config struct {
	Idle     time.Duration
	Cooldown time.Duration
	Enabled  bool
}

// DefaultConfig returns scheduler defaults
func DefaultConfig() Config {
	return Config{Idle: time.Second, Cooldown: 350 * time.Millisecond, Enabled: true}
}

// Scheduler is a debounced single shot trigger.
// Every activity restarts the idle timer, fire is called when the timer expires
// unless the scheduler is paused or busy reports true.
type Scheduler struct {
	clock clock.Clock
	cfg   Config
	busy  func() bool
	fire  func()

	mu          sync.Mutex
	state       State
	enabled     bool
	gen         uint64
	timer       *clock.Timer
	pausedUntil time.Time
}

// NewScheduler creates scheduler
func NewScheduler(clk clock.Clock, cfg Config, busy func() bool, fire func()) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	if busy == nil {
		busy = func() bool { return false }
	}
	goapp.Log.Info().Dur("idle", cfg.Idle).Dur("cooldown", cfg.Cooldown).Bool("enabled", cfg.Enabled).Msg("Auto trigger")
	return &Scheduler{clock: clk, cfg: cfg, busy: busy, fire: fire, enabled: cfg.Enabled}
}

// Activity arms the idle timer, a running timer is restarted
func (s *Scheduler) Activity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return
	}
	s.stopTimer()
	s.gen++
	gen := s.gen
	s.state = Armed
	s.timer = s.clock.AfterFunc(s.cfg.Idle, func() { s.onIdle(gen) })
}

// Pause suppresses firing for d, an armed timer is dropped
func (s *Scheduler) Pause(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pausedUntil = s.clock.Now().Add(d)
	s.reset()
}

// SetEnabled switches the scheduler on or off
func (s *Scheduler) SetEnabled(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = v
	if !v {
		s.reset()
	}
	goapp.Log.Info().Bool("enabled", v).Msg("Auto trigger")
}

// Enabled reports the switch value
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// State returns current state
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stop disables the scheduler
func (s *Scheduler) Stop() {
	s.SetEnabled(false)
}

func (s *Scheduler) onIdle(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	if s.clock.Now().Before(s.pausedUntil) {
		s.state = Idle
		s.mu.Unlock()
		goapp.Log.Debug().Msg("auto trigger paused")
		return
	}
	if s.busy() {
		s.state = Idle
		s.mu.Unlock()
		goapp.Log.Debug().Msg("auto trigger skipped, busy")
		return
	}
	s.state = Firing
	s.mu.Unlock()

	s.fire()

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.state = Cooldown
	s.timer = s.clock.AfterFunc(s.cfg.Cooldown, func() { s.onCooldown(gen) })
}

func (s *Scheduler) onCooldown(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.timer = nil
	s.state = Idle
}

func (s *Scheduler) reset() {
	s.stopTimer()
	s.gen++
	s.state = Idle
}

func (s *Scheduler) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

package reconcile

import (
	"time"

	"github.com/facebookgo/clock"

	"github.com/airenas/rt-caption-assistant/internal/norm"
)

// Config keeps engine tunables
type Config struct {
	MergeWindow      time.Duration
	ShortDelta       int
	OpenDelta        int
	DedupeTTL        time.Duration
	DedupeMaxEntries int
	InferenceWindow  time.Duration
	DefaultOrigin    string
	UnknownSpeaker   string
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		MergeWindow:      1800 * time.Millisecond,
		ShortDelta:       48,
		OpenDelta:        64,
		DedupeTTL:        3200 * time.Millisecond,
		DedupeMaxEntries: 512,
		InferenceWindow:  2 * time.Minute,
		DefaultOrigin:    "Captions",
		UnknownSpeaker:   "Unknown",
	}
}

// Option configures Engine
type Option func(*Engine)

// WithClock sets the engine time source
func WithClock(clk clock.Clock) Option {
	return func(e *Engine) {
		e.clock = clk
	}
}

// WithPolicy sets locale policy
func WithPolicy(p *norm.Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithMiddleware sets the text preprocessing chain
func WithMiddleware(h TextHandler) Option {
	return func(e *Engine) {
		e.middleware = h
	}
}

// WithListener registers transcript event listener
func WithListener(l Listener) Option {
	return func(e *Engine) {
		e.listeners = append(e.listeners, l)
	}
}

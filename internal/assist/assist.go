// Package assist turns the live transcript into reply suggestions and corrected lines
package assist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/facebookgo/clock"
	"golang.org/x/sync/singleflight"

	"github.com/airenas/rt-caption-assistant/internal/api"
	"github.com/airenas/rt-caption-assistant/internal/domain"
	"github.com/airenas/rt-caption-assistant/internal/llm"
	"github.com/airenas/rt-caption-assistant/internal/norm"
	"github.com/airenas/rt-caption-assistant/internal/trigger"
)

var (
	// ErrNothing - no transcript lines to work with
	ErrNothing = errors.New("nothing to reply to")
	// ErrNotFound - line is not in the transcript
	ErrNotFound = errors.New("line not found")
	// ErrNoRewriter - corrections are not configured
	ErrNoRewriter = errors.New("no rewriter")
)

// Transcript is the part of the engine the assistant works on
type Transcript interface {
	TailLines(n int) []domain.Line
	Lines() []domain.Line
	ReplaceSegment(old, updated []domain.Line) ([]domain.Line, error)
	IsFixed(l domain.Line) bool
	MarkFixed(l domain.Line)
}

// Publisher sends events to UI clients
type Publisher interface {
	Publish(ev api.Event)
}

// Config for Assistant
type Config struct {
	TailLines        int
	RewriteOrigins   []string
	FinalOnlyOrigins []string
	ManualPause      time.Duration
	CorrectTimeout   time.Duration
	CorrectMax       int
	SegmentMaxLines  int
	Trigger          trigger.Config
	Lock             trigger.LockConfig
	AutoCorrect      bool
}

// DefaultConfig returns assistant defaults
func DefaultConfig() Config {
	return Config{
		TailLines:        10,
		RewriteOrigins:   []string{"Teams"},
		FinalOnlyOrigins: []string{"Teams"},
		ManualPause:      3 * time.Second,
		CorrectTimeout:   time.Minute,
		CorrectMax:       8,
		SegmentMaxLines:  8,
		Trigger:          trigger.DefaultConfig(),
		Lock:             trigger.DefaultLockConfig(),
	}
}

// Deps are the collaborators of Assistant
type Deps struct {
	Transcript Transcript
	Rewriter   llm.Rewriter
	Replier    llm.Replier
	Publisher  Publisher
	Policy     *norm.Policy
	Clock      clock.Clock
}

// Ticket describes a reply request
type Ticket struct {
	RequestID string `json:"requestId,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Assistant drives suggestion generation and transcript corrections
type Assistant struct {
	cfg       Config
	tr        Transcript
	rewriter  llm.Rewriter
	replier   llm.Replier
	publisher Publisher
	policy    *norm.Policy
	clock     clock.Clock
	lock      *trigger.ReplyLock
	sched     *trigger.Scheduler

	rewriteOrigins map[string]bool
	finalOnly      map[string]bool
	autoCorrect    atomic.Bool
	group          singleflight.Group

	ctx      context.Context
	stop     context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	current  string
	running  string
	cancel   context.CancelFunc
	sent     map[string]llm.Chunk
	lastSeed string
}

// NewAssistant creates Assistant, Close must be called to stop background work
func NewAssistant(deps Deps, cfg Config) (*Assistant, error) {
	if deps.Transcript == nil {
		return nil, fmt.Errorf("no transcript")
	}
	if deps.Replier == nil {
		return nil, fmt.Errorf("no replier")
	}
	if cfg.TailLines <= 0 {
		cfg.TailLines = 10
	}
	if cfg.SegmentMaxLines <= 0 {
		cfg.SegmentMaxLines = 8
	}
	if cfg.CorrectTimeout <= 0 {
		cfg.CorrectTimeout = time.Minute
	}
	res := &Assistant{cfg: cfg, tr: deps.Transcript, rewriter: deps.Rewriter, replier: deps.Replier,
		publisher: deps.Publisher, policy: deps.Policy, clock: deps.Clock}
	if res.policy == nil {
		res.policy = norm.DefaultPolicy()
	}
	if res.clock == nil {
		res.clock = clock.New()
	}
	if res.publisher == nil {
		res.publisher = nopPublisher{}
	}
	res.rewriteOrigins = toSet(cfg.RewriteOrigins)
	res.finalOnly = toSet(cfg.FinalOnlyOrigins)
	res.autoCorrect.Store(cfg.AutoCorrect)
	res.ctx, res.stop = context.WithCancel(context.Background())
	res.lock = trigger.NewReplyLock(res.clock, cfg.Lock)
	res.sched = trigger.NewScheduler(res.clock, cfg.Trigger, res.lock.InFlight, res.onAuto)
	goapp.Log.Info().Int("tail", cfg.TailLines).Strs("rewriteOrigins", cfg.RewriteOrigins).
		Strs("finalOnly", cfg.FinalOnlyOrigins).Bool("rewriter", res.rewriter != nil).Msg("Assistant")
	return res, nil
}

// Settings returns current switches
func (a *Assistant) Settings() domain.Settings {
	return domain.Settings{AutoReply: a.sched.Enabled(), AutoCorrect: a.autoCorrect.Load()}
}

// ApplySettings sets switches
func (a *Assistant) ApplySettings(s domain.Settings) {
	a.sched.SetEnabled(s.AutoReply)
	a.autoCorrect.Store(s.AutoCorrect)
	goapp.Log.Info().Bool("autoReply", s.AutoReply).Bool("autoCorrect", s.AutoCorrect).Msg("settings")
}

// TriggerState returns the auto trigger state
func (a *Assistant) TriggerState() trigger.State {
	return a.sched.State()
}

// Wait blocks until background work ends
func (a *Assistant) Wait() {
	a.wg.Wait()
}

// Close cancels running requests and waits for them
func (a *Assistant) Close() {
	a.sched.Stop()
	a.stop()
	a.wg.Wait()
}

func (a *Assistant) onAuto() {
	a.goBackground(func() {
		if _, err := a.StartFromTail(a.ctx, true); err != nil && !errors.Is(err, ErrNothing) {
			goapp.Log.Error().Err(err).Msg("auto reply")
		}
	})
}

func (a *Assistant) goBackground(f func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		f()
	}()
}

func (a *Assistant) publish(ev api.Event) {
	a.publisher.Publish(ev)
}

func (a *Assistant) setLastSeed(s string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastSeed = s
}

func (a *Assistant) getLastSeed() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSeed
}

// rewritable reports if the line may be sent for correction
func (a *Assistant) rewritable(l domain.Line) bool {
	return a.rewriteOrigins[l.Origin] && !a.policy.IsInternal(l.Text) && !a.policy.IsNoise(l.Text)
}

func toSet(items []string) map[string]bool {
	res := make(map[string]bool, len(items))
	for _, s := range items {
		res[s] = true
	}
	return res
}

type nopPublisher struct{}

func (nopPublisher) Publish(api.Event) {}

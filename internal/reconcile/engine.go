package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/facebookgo/clock"

	"github.com/airenas/rt-caption-assistant/internal/domain"
	"github.com/airenas/rt-caption-assistant/internal/norm"
	"github.com/airenas/rt-caption-assistant/internal/transcript"
)

// TextHandler preprocesses raw caption text
type TextHandler interface {
	Process(context.Context, string) (string, error)
}

// EventKind is transcript change kind
type EventKind int

const (
	EventAppend EventKind = iota + 1
	EventUpdate
	EventSegment
	EventClear
)

// Event describes a transcript change
type Event struct {
	Kind     EventKind
	Line     domain.Line
	Old      domain.Line
	Lines    []domain.Line
	OldLines []domain.Line
}

// Listener gets transcript events after the change is applied
type Listener interface {
	OnTranscriptEvent(Event)
}

// Outcome is the result of one caption tick
type Outcome struct {
	Action string       `json:"action"`
	Reason string       `json:"reason"`
	Line   *domain.Line `json:"line,omitempty"`
}

// Outcome actions
const (
	OutcomeSkipped  = "skipped"
	OutcomeAppended = "appended"
	OutcomeMerged   = "merged"
	OutcomeReplaced = "replaced"
)

// Engine turns noisy caption ticks into an ordered transcript.
// All state changes are serialized by one mutex.
type Engine struct {
	cfg        Config
	clock      clock.Clock
	policy     *norm.Policy
	middleware TextHandler
	listeners  []Listener

	mu       sync.Mutex
	store    *transcript.Store
	flags    *transcript.Ledger
	merger   *Merger
	arbiter  *Arbiter
	speakers *speakerTracker
}

// NewEngine creates reconciliation engine
func NewEngine(cfg Config, store *transcript.Store, flags *transcript.Ledger, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("no store")
	}
	if flags == nil {
		return nil, fmt.Errorf("no flags ledger")
	}
	res := &Engine{cfg: cfg, store: store, flags: flags}
	for _, o := range opts {
		o(res)
	}
	if res.clock == nil {
		res.clock = clock.New()
	}
	if res.policy == nil {
		res.policy = norm.DefaultPolicy()
	}
	if res.middleware == nil {
		res.middleware = plainText{}
	}
	res.merger = NewMerger(cfg.MergeWindow, cfg.ShortDelta, cfg.OpenDelta)
	res.arbiter = NewArbiter(cfg.DedupeTTL, cfg.DedupeMaxEntries, res.policy)
	res.speakers = newSpeakerTracker(cfg.InferenceWindow)
	goapp.Log.Info().Dur("mergeWindow", cfg.MergeWindow).Dur("dedupeTTL", cfg.DedupeTTL).
		Dur("inferenceWindow", cfg.InferenceWindow).Msg("Reconcile engine")
	return res, nil
}

// AddListener registers listener, call before the engine is used
func (e *Engine) AddListener(l Listener) {
	e.listeners = append(e.listeners, l)
}

// ReportCaption processes one scraped caption. Delivery may be redundant, processing is idempotent
func (e *Engine) ReportCaption(ctx context.Context, speaker, rawText, origin string) (Outcome, error) {
	origin = norm.Whitespace(origin)
	if origin == "" {
		origin = e.cfg.DefaultOrigin
	}
	speaker = norm.Speaker(speaker)
	if speaker == "" {
		speaker = e.cfg.UnknownSpeaker
	}
	text, err := e.middleware.Process(ctx, rawText)
	if err != nil {
		return Outcome{}, fmt.Errorf("process text: %w", err)
	}
	var res Outcome
	var events []Event
	if text == "" {
		res = skipped(ReasonNoise)
	} else {
		e.mu.Lock()
		res, events = e.report(speaker, text, origin)
		e.mu.Unlock()
	}
	captionCounter.WithLabelValues(res.Action, res.Reason).Inc()
	goapp.Log.Debug().Str("origin", origin).Str("speaker", speaker).Str("text", text).
		Str("action", res.Action).Str("reason", res.Reason).Msg("caption")
	e.dispatch(events)
	return res, nil
}

func (e *Engine) report(reported, text, origin string) (Outcome, []Event) {
	now := e.clock.Now()
	speaker, source := reported, ""
	if e.policy.IsUnknownSpeaker(reported) {
		if name, ok := e.speakers.Infer(origin, now); ok {
			speaker, source = name, reported
		}
	} else {
		e.speakers.Seen(origin, reported, now)
	}
	inferred := source != ""
	key := domain.SpeakerKey{Origin: origin, Speaker: reported}

	in := MergeInput{Text: text, PrevRaw: e.store.LastRaw(key)}
	prev, hasPrev := e.store.LastLine(key)
	if hasPrev {
		in.PrevLine = &prev
		in.Since = now.Sub(e.store.LastAppend(key))
	}
	d := e.merger.Decide(in)

	switch d.Action {
	case ActionNone:
		e.store.SetLastRaw(key, d.Raw)
		return skipped(d.Reason), nil
	case ActionGlue:
		v, id := e.arbiter.Judge(origin, speaker, inferred, d.Delta, now)
		if v != VerdictAppend {
			return e.arbitrated(v, id, key, domain.Line{Origin: origin, Speaker: speaker, Source: source, Text: d.Delta}, d.Raw, now)
		}
		upd := prev
		upd.Text = d.Text
		upd.UpdatedAt = now
		got, ok := e.store.ReplaceInPlace(prev, upd)
		if !ok {
			goapp.Log.Warn().Str("key", key.String()).Msg("previous line is gone")
			return skipped(ReasonNoPrevLine), nil
		}
		e.store.SetLastRaw(key, d.Raw)
		e.arbiter.Remember(origin, speaker, inferred, got.Text, got.ID, now)
		return Outcome{Action: OutcomeMerged, Reason: d.Reason, Line: &got},
			[]Event{{Kind: EventUpdate, Line: got, Old: prev}}
	}

	if e.policy.IsNoise(d.Delta) {
		return skipped(ReasonNoise), nil
	}
	v, id := e.arbiter.Judge(origin, speaker, inferred, d.Delta, now)
	line := domain.Line{Origin: origin, Speaker: speaker, Source: source, Text: d.Delta, InsertedAt: now, UpdatedAt: now}
	if v != VerdictAppend {
		return e.arbitrated(v, id, key, line, d.Raw, now)
	}
	got := e.store.Append(line)
	e.store.SetLastRaw(key, d.Raw)
	e.arbiter.Remember(origin, speaker, inferred, got.Text, got.ID, now)
	return Outcome{Action: OutcomeAppended, Reason: d.Reason, Line: &got}, []Event{{Kind: EventAppend, Line: got}}
}

func (e *Engine) arbitrated(v Verdict, id uint64, key domain.SpeakerKey, line domain.Line, raw string, now time.Time) (Outcome, []Event) {
	switch v {
	case VerdictDuplicate:
		e.store.SetLastRaw(key, raw)
		return skipped(ReasonDedupe), nil
	case VerdictDrop:
		e.store.SetLastRaw(key, raw)
		return skipped(ReasonUnknownDup), nil
	}
	line.InsertedAt, line.UpdatedAt = time.Time{}, now
	old, ok := e.store.Line(id)
	var got domain.Line
	if ok {
		got, ok = e.store.ReplaceInPlace(old, line)
	}
	if !ok {
		line.InsertedAt = now
		got = e.store.Append(line)
		e.store.SetLastRaw(key, raw)
		e.arbiter.Remember(line.Origin, line.Speaker, line.Inferred(), got.Text, got.ID, now)
		return Outcome{Action: OutcomeAppended, Reason: ReasonNew, Line: &got}, []Event{{Kind: EventAppend, Line: got}}
	}
	e.store.SetLastRaw(key, raw)
	e.arbiter.Remember(line.Origin, line.Speaker, line.Inferred(), got.Text, got.ID, now)
	goapp.Log.Debug().Str("from", old.Speaker).Str("to", got.Speaker).Msg("speaker resolved")
	return Outcome{Action: OutcomeReplaced, Reason: ReasonReplaced, Line: &got},
		[]Event{{Kind: EventUpdate, Line: got, Old: old}}
}

// TailLines returns last n visible lines
func (e *Engine) TailLines(n int) []domain.Line {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.TailLines(n)
}

// Lines returns the whole transcript
func (e *Engine) Lines() []domain.Line {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Lines()
}

// ReplaceSegment applies rewritten lines, see transcript.Store.ReplaceSegment
func (e *Engine) ReplaceSegment(old, updated []domain.Line) ([]domain.Line, error) {
	e.mu.Lock()
	now := e.clock.Now()
	for i := range updated {
		if updated[i].InsertedAt.IsZero() {
			updated[i].UpdatedAt = now
		}
	}
	res, err := e.store.ReplaceSegment(old, updated)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	e.dispatch([]Event{{Kind: EventSegment, Lines: res, OldLines: old}})
	return res, nil
}

// Snapshot returns serializable state
func (e *Engine) Snapshot() domain.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Snapshot()
}

// Restore loads state
func (e *Engine) Restore(snap domain.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.Restore(snap)
	e.arbiter.Reset()
	e.speakers.Reset()
	goapp.Log.Info().Int("lines", len(snap.Lines)).Int("flags", len(snap.Flags)).Msg("transcript restored")
}

// Clear drops the transcript, fixed flags are kept
func (e *Engine) Clear() {
	e.mu.Lock()
	e.store.Clear()
	e.arbiter.Reset()
	e.speakers.Reset()
	e.mu.Unlock()
	e.dispatch([]Event{{Kind: EventClear}})
}

// IsFixed checks if the line was already corrected
func (e *Engine) IsFixed(l domain.Line) bool {
	return e.flags.IsFixed(l)
}

// MarkFixed flags the line as corrected
func (e *Engine) MarkFixed(l domain.Line) {
	e.flags.MarkFixed(l)
}

func (e *Engine) dispatch(events []Event) {
	for _, ev := range events {
		for _, l := range e.listeners {
			l.OnTranscriptEvent(ev)
		}
	}
}

func skipped(reason string) Outcome {
	return Outcome{Action: OutcomeSkipped, Reason: reason}
}

type plainText struct{}

func (plainText) Process(_ context.Context, s string) (string, error) {
	return norm.Whitespace(s), nil
}

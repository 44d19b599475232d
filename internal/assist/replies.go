package assist

import (
	"context"
	"strings"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/oklog/ulid/v2"

	"github.com/airenas/rt-caption-assistant/internal/api"
	"github.com/airenas/rt-caption-assistant/internal/llm"
	"github.com/airenas/rt-caption-assistant/internal/trigger"
	"github.com/airenas/rt-caption-assistant/internal/utils"
)

const (
	labelAuto   = "auto"
	labelManual = "manual"
	labelLine   = "line"
	labelText   = "text"
)

// StartFromTail seeds suggestions from the transcript tail. The last finished
// segment is corrected first when a rewriter is configured.
// Auto runs skip a seed equal to the previous one
func (a *Assistant) StartFromTail(ctx context.Context, auto bool) (Ticket, error) {
	tail := a.tr.TailLines(a.cfg.TailLines)
	if len(tail) == 0 {
		return Ticket{}, ErrNothing
	}
	seed := Seed(tail)
	if auto && seed == a.getLastSeed() {
		goapp.Log.Debug().Msg("same seed, skip")
		return Ticket{Reason: trigger.ReasonDedupe}, nil
	}
	label := labelManual
	if auto {
		label = labelAuto
	}
	if a.rewriter != nil {
		if text, ok := a.correctTail(ctx); ok {
			seed = Seed(a.tr.TailLines(a.cfg.TailLines))
			a.setLastSeed(seed)
			if text != "" {
				seed = text
			}
			return a.RequestReplies(seed, label), nil
		}
	}
	a.setLastSeed(seed)
	return a.RequestReplies(seed, label), nil
}

// ManualReply is the user asking for suggestions now
func (a *Assistant) ManualReply(ctx context.Context) (Ticket, error) {
	a.sched.Pause(a.cfg.ManualPause)
	return a.StartFromTail(ctx, false)
}

// ReplyToLine generates suggestions for one transcript line
func (a *Assistant) ReplyToLine(id uint64) (Ticket, error) {
	for _, l := range a.tr.Lines() {
		if l.ID == id {
			a.holdAuto()
			return a.RequestReplies(l.Speaker+": "+l.Text, labelLine), nil
		}
	}
	return Ticket{}, ErrNotFound
}

// ReplyToText generates suggestions for user provided text
func (a *Assistant) ReplyToText(text string) Ticket {
	a.holdAuto()
	return a.RequestReplies(text, labelText)
}

// holdAuto pauses the trigger and keeps it from firing on the current tail
func (a *Assistant) holdAuto() {
	a.sched.Pause(a.cfg.ManualPause)
	if tail := a.tr.TailLines(a.cfg.TailLines); len(tail) > 0 {
		a.setLastSeed(Seed(tail))
	}
}

// RequestReplies starts a suggestion stream for the seed. A running stream of an
// older request is cancelled, its late chunks are dropped
func (a *Assistant) RequestReplies(seed, label string) Ticket {
	acq := a.lock.TryAcquire(seed)
	if !acq.OK {
		goapp.Log.Debug().Str("reason", acq.Reason).Str("label", label).Msg("reply skipped")
		replyCounter.WithLabelValues(label, acq.Reason).Inc()
		if acq.Reason == trigger.ReasonInFlight {
			a.publish(api.Event{Type: api.EventStatus, Status: api.StatusAlreadyGenerating})
		}
		return Ticket{Reason: acq.Reason}
	}
	replyCounter.WithLabelValues(label, "started").Inc()
	id := ulid.Make().String()
	ctx, cancel := context.WithCancel(a.ctx)
	ctx, data := utils.CustomContext(ctx)
	data.RequestID, data.Label, data.Question = id, label, a.isQuestion(seed)

	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	a.current, a.running, a.cancel = id, id, cancel
	a.sent = map[string]llm.Chunk{}
	a.mu.Unlock()

	goapp.Log.Info().Str("request", id).Str("label", label).Bool("question", data.Question).
		Int("len", len(seed)).Msg("generate replies")
	a.publish(api.Event{Type: api.EventStatus, Status: api.StatusBusy, RequestID: id})
	for _, r := range llm.Routes {
		a.publish(api.Event{Type: api.EventSuggestion, RequestID: id, Slot: r, Reset: true})
	}
	a.watch(id)
	a.goBackground(func() { a.generate(ctx, cancel, id, seed) })
	return Ticket{RequestID: id}
}

// HandleChunk forwards a chunk if it belongs to the current request
func (a *Assistant) HandleChunk(id string, ch llm.Chunk) bool {
	a.mu.Lock()
	current := id != "" && id == a.current
	if current {
		a.sent[ch.Route] = ch
	}
	a.mu.Unlock()
	if !current {
		staleCounter.Inc()
		goapp.Log.Debug().Str("request", id).Msg("stale chunk")
		return false
	}
	a.lock.Bump(0)
	a.publish(api.Event{Type: api.EventSuggestion, RequestID: id, Slot: ch.Route, Text: ch.Text, Done: ch.Done})
	return true
}

func (a *Assistant) generate(ctx context.Context, cancel context.CancelFunc, id, seed string) {
	defer cancel()
	res, err := a.replier.GenerateReplies(ctx, seed, func(ch llm.Chunk) { a.HandleChunk(id, ch) })

	a.mu.Lock()
	current := a.current == id
	if a.running == id {
		a.running = ""
	}
	sent := a.sent
	a.mu.Unlock()
	if !current {
		goapp.Log.Debug().Str("request", id).Msg("superseded")
		return
	}
	a.lock.Finish()
	if err != nil {
		goapp.Log.Error().Err(err).Str("request", id).Msg("generate replies")
		a.publish(api.Event{Type: api.EventStatus, Status: api.StatusError, RequestID: id, Message: err.Error()})
		return
	}
	if res != nil {
		for _, r := range llm.Routes {
			text := res.Get(r)
			if text == "" || (sent[r].Done && sent[r].Text == text) {
				continue
			}
			a.publish(api.Event{Type: api.EventSuggestion, RequestID: id, Slot: r, Text: text, Done: true})
		}
	}
	a.publish(api.Event{Type: api.EventStatus, Status: api.StatusOK, RequestID: id})
}

// isQuestion checks the last utterance of the seed, with or without the speaker label
func (a *Assistant) isQuestion(seed string) bool {
	last := strings.TrimSpace(seed)
	if i := strings.LastIndex(last, "\n"); i >= 0 {
		last = last[i+1:]
	}
	if a.policy.LooksLikeQuestion(last) {
		return true
	}
	if _, text, ok := strings.Cut(last, ": "); ok {
		return a.policy.LooksLikeQuestion(text)
	}
	return false
}

// watch releases the UI when the lock deadman expires before the stream ends
func (a *Assistant) watch(id string) {
	exp := a.lock.Expiry()
	if exp.IsZero() {
		return
	}
	a.clock.AfterFunc(exp.Sub(a.clock.Now()), func() {
		a.mu.Lock()
		active := a.current == id && a.running == id
		a.mu.Unlock()
		if !active {
			return
		}
		if a.lock.InFlight() {
			a.watch(id)
			return
		}
		goapp.Log.Warn().Str("request", id).Msg("reply lock expired")
		a.publish(api.Event{Type: api.EventStatus, Status: api.StatusOK, RequestID: id})
	})
}

package assist

import (
	"github.com/airenas/rt-caption-assistant/internal/api"
	"github.com/airenas/rt-caption-assistant/internal/domain"
	"github.com/airenas/rt-caption-assistant/internal/norm"
	"github.com/airenas/rt-caption-assistant/internal/reconcile"
)

// OnTranscriptEvent forwards transcript changes to clients and feeds the auto trigger
func (a *Assistant) OnTranscriptEvent(ev reconcile.Event) {
	switch ev.Kind {
	case reconcile.EventAppend:
		a.publish(api.Event{Type: api.EventLineAppend, Line: a.view(ev.Line)})
		a.activity(ev.Line)
	case reconcile.EventUpdate:
		a.publish(api.Event{Type: api.EventLineReplace, Line: a.view(ev.Line), OldID: ev.Old.ID})
		a.activity(ev.Line)
	case reconcile.EventSegment:
		res := api.Event{Type: api.EventSegmentReplace}
		for _, l := range ev.Lines {
			res.Lines = append(res.Lines, *a.view(l))
		}
		for _, l := range ev.OldLines {
			res.OldIDs = append(res.OldIDs, l.ID)
		}
		a.publish(res)
	case reconcile.EventClear:
		a.setLastSeed("")
		a.publish(api.Event{Type: api.EventClear})
	}
}

// activity arms the trigger for lines worth answering.
// Final only origins count a line only once it ends a sentence
func (a *Assistant) activity(l domain.Line) {
	if a.policy.IsInternal(l.Text) || a.policy.IsNoise(l.Text) {
		return
	}
	finished := norm.EndsTerminal(l.Text)
	if a.finalOnly[l.Origin] && !finished {
		return
	}
	a.sched.Activity()
	if finished && a.rewriter != nil && a.autoCorrect.Load() && a.rewritable(l) {
		a.goBackground(func() { _, _ = a.AutoCorrect(a.ctx) })
	}
}

func (a *Assistant) view(l domain.Line) *api.LineView {
	res := api.ToView(l, a.tr.IsFixed(l))
	return &res
}

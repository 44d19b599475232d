package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airenas/rt-caption-assistant/internal/domain"
	"github.com/airenas/rt-caption-assistant/internal/transcript"
)

type tick struct {
	origin, speaker, text string
	after                 time.Duration
}

type recorder struct {
	events []Event
}

func (r *recorder) OnTranscriptEvent(ev Event) {
	r.events = append(r.events, ev)
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *clock.Mock, *recorder) {
	t.Helper()
	clk := clock.NewMock()
	ledger, err := transcript.NewLedger(100, clk)
	require.NoError(t, err)
	rec := &recorder{}
	opts = append([]Option{WithClock(clk), WithListener(rec)}, opts...)
	e, err := NewEngine(DefaultConfig(), transcript.NewStore(0, ledger, nil), ledger, opts...)
	require.NoError(t, err)
	return e, clk, rec
}

func feed(t *testing.T, e *Engine, clk *clock.Mock, ticks []tick) []Outcome {
	t.Helper()
	var res []Outcome
	for _, tk := range ticks {
		clk.Add(tk.after)
		o, err := e.ReportCaption(context.Background(), tk.speaker, tk.text, tk.origin)
		require.NoError(t, err)
		res = append(res, o)
	}
	return res
}

func lineTexts(lines []domain.Line) []string {
	res := make([]string, 0, len(lines))
	for _, l := range lines {
		res = append(res, l.String())
	}
	return res
}

func TestEngine_ReportCaption(t *testing.T) {
	tests := []struct {
		name  string
		ticks []tick
		want  []string
	}{
		{name: "growing sentence", ticks: []tick{
			{origin: "Teams", speaker: "Bob", text: "Eu vou"},
			{origin: "Teams", speaker: "Bob", text: "Eu vou chegar"},
			{origin: "Teams", speaker: "Bob", text: "."},
		}, want: []string{"Teams: Bob: Eu vou chegar."}},
		{name: "redundant delivery", ticks: []tick{
			{origin: "Teams", speaker: "Bob", text: "Eu vou"},
			{origin: "Teams", speaker: "Bob", text: "Eu vou"},
			{origin: "Teams", speaker: "Bob", text: "Eu vou chegar"},
			{origin: "Teams", speaker: "Bob", text: "Eu vou chegar"},
		}, want: []string{"Teams: Bob: Eu vou chegar"}},
		{name: "pipoco", ticks: []tick{
			{origin: "Meet", speaker: "Ana", text: "Olá"},
			{origin: "Meet", speaker: "Ana", text: "co", after: 300 * time.Millisecond},
			{origin: "Meet", speaker: "Ana", text: "mo", after: 300 * time.Millisecond},
			{origin: "Meet", speaker: "Ana", text: "mo vai?", after: 300 * time.Millisecond},
		}, want: []string{"Meet: Ana: Olá como vai?"}},
		{name: "new utterance after pause", ticks: []tick{
			{origin: "Teams", speaker: "Bob", text: "First topic is done."},
			{origin: "Teams", speaker: "Bob", text: "Second topic now", after: 5 * time.Second},
		}, want: []string{"Teams: Bob: First topic is done.", "Teams: Bob: Second topic now"}},
		{name: "unknown replaced by speaker", ticks: []tick{
			{origin: "Teams", speaker: "Unknown", text: "Can everyone hear me"},
			{origin: "Teams", speaker: "Alice", text: "Can everyone hear me", after: 500 * time.Millisecond},
			{origin: "Teams", speaker: "Unknown", text: "Can everyone hear me", after: 500 * time.Millisecond},
		}, want: []string{"Teams: Alice: Can everyone hear me"}},
		{name: "two speakers same words", ticks: []tick{
			{origin: "Teams", speaker: "Alice", text: "Sounds good to me"},
			{origin: "Teams", speaker: "Bob", text: "Sounds good to me"},
		}, want: []string{"Teams: Alice: Sounds good to me", "Teams: Bob: Sounds good to me"}},
		{name: "origins are independent", ticks: []tick{
			{origin: "Meet", speaker: "Bob", text: "Good morning"},
			{origin: "Teams", speaker: "Bob", text: "Good morning"},
		}, want: []string{"Meet: Bob: Good morning", "Teams: Bob: Good morning"}},
		{name: "noise", ticks: []tick{
			{origin: "Teams", speaker: "Bob", text: "hm"},
			{origin: "Teams", speaker: "Bob", text: "..."},
			{origin: "Teams", speaker: "Bob", text: "   "},
		}, want: []string{}},
		{name: "default origin", ticks: []tick{
			{speaker: "Bob", text: "Hello"},
		}, want: []string{"Captions: Bob: Hello"}},
		{name: "no speaker", ticks: []tick{
			{origin: "Slack", text: "Hello"},
		}, want: []string{"Slack: Unknown: Hello"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, clk, _ := newTestEngine(t)
			feed(t, e, clk, tt.ticks)
			assert.Equal(t, tt.want, lineTexts(e.Lines()))
		})
	}
}

func TestEngine_Outcomes(t *testing.T) {
	e, clk, rec := newTestEngine(t)
	got := feed(t, e, clk, []tick{
		{origin: "Teams", speaker: "Bob", text: "Eu vou"},
		{origin: "Teams", speaker: "Bob", text: "Eu vou"},
		{origin: "Teams", speaker: "Bob", text: "Eu vou chegar"},
		{origin: "Teams", speaker: "Bob", text: "."},
		{origin: "Teams", speaker: "Bob", text: "."},
	})
	require.Len(t, got, 5)
	assert.Equal(t, OutcomeAppended, got[0].Action)
	assert.Equal(t, Outcome{Action: OutcomeSkipped, Reason: ReasonSame}, got[1])
	assert.Equal(t, OutcomeMerged, got[2].Action)
	assert.Equal(t, ReasonPipoco, got[2].Reason)
	assert.Equal(t, OutcomeMerged, got[3].Action)
	assert.Equal(t, ReasonPunct, got[3].Reason)
	assert.Equal(t, OutcomeSkipped, got[4].Action)
	require.NotNil(t, got[3].Line)
	assert.Equal(t, got[0].Line.ID, got[3].Line.ID, "merged line keeps ID")

	require.Len(t, rec.events, 3)
	assert.Equal(t, EventAppend, rec.events[0].Kind)
	assert.Equal(t, EventUpdate, rec.events[1].Kind)
	assert.Equal(t, "Eu vou", rec.events[1].Old.Text)
	assert.Equal(t, "Eu vou chegar", rec.events[1].Line.Text)
	assert.Equal(t, "Eu vou chegar.", rec.events[2].Line.Text)
}

func TestEngine_TextOnlyGrows(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	ticks := []string{"we need", "we need to", "we need to ship", "we need to ship it", "we need to ship it"}
	prev := ""
	for _, s := range ticks {
		clk.Add(200 * time.Millisecond)
		_, err := e.ReportCaption(context.Background(), "Bob", s, "Teams")
		require.NoError(t, err)
		lines := e.Lines()
		require.Len(t, lines, 1)
		assert.GreaterOrEqual(t, len(lines[0].Text), len(prev))
		prev = lines[0].Text
	}
	assert.Equal(t, "we need to ship it", prev)
}

func TestEngine_UnknownAfterKnownIsDropped(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	got := feed(t, e, clk, []tick{
		{origin: "Teams", speaker: "Bob", text: "Morning all"},
		{origin: "Teams", speaker: "Alice", text: "Let us start with the numbers", after: 3 * time.Second},
		{origin: "Teams", speaker: "Unknown", text: "Let us start with the numbers", after: 200 * time.Millisecond},
	})
	assert.Equal(t, Outcome{Action: OutcomeSkipped, Reason: ReasonUnknownDup}, got[2])
	assert.Equal(t, []string{"Teams: Bob: Morning all", "Teams: Alice: Let us start with the numbers"}, lineTexts(e.Lines()))
}

func TestEngine_InfersSingleSpeaker(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	feed(t, e, clk, []tick{
		{origin: "Teams", speaker: "Alice", text: "I have a question."},
		{origin: "Teams", speaker: "Unknown", text: "About the budget", after: 5 * time.Second},
		{origin: "Teams", speaker: "Unknown", text: "About the budget for May", after: 300 * time.Millisecond},
	})
	lines := e.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "Teams: Alice: About the budget for May", lines[1].String())
	assert.True(t, lines[1].Inferred())
	assert.Equal(t, "Unknown", lines[1].Source)

	// the real label arrives and takes the inferred line
	feed(t, e, clk, []tick{{origin: "Teams", speaker: "Alice", text: "About the budget for May", after: 300 * time.Millisecond}})
	lines = e.Lines()
	require.Len(t, lines, 2)
	assert.False(t, lines[1].Inferred())
}

func TestEngine_NoInferenceWithManySpeakers(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	feed(t, e, clk, []tick{
		{origin: "Teams", speaker: "Alice", text: "Hello"},
		{origin: "Teams", speaker: "Bob", text: "Hi Alice"},
		{origin: "Teams", speaker: "Unknown", text: "Who joined", after: 5 * time.Second},
	})
	lines := e.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "Teams: Unknown: Who joined", lines[2].String())
}

func TestEngine_FixedFlagFollowsMerge(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	got := feed(t, e, clk, []tick{{origin: "Teams", speaker: "Bob", text: "Eu vou chegar"}})
	e.flags.MarkFixed(*got[0].Line)
	require.True(t, e.IsFixed(*got[0].Line))

	old := *got[0].Line

	got = feed(t, e, clk, []tick{{origin: "Teams", speaker: "Bob", text: "Eu vou chegar."}})
	require.NotNil(t, got[0].Line)
	assert.True(t, e.IsFixed(*got[0].Line))
	assert.False(t, e.IsFixed(old))
	assert.Equal(t, 1, e.flags.Len())
}

func TestEngine_RepeatedCaptionIsNotGlued(t *testing.T) {
	e, clk, rec := newTestEngine(t)
	got := feed(t, e, clk, []tick{
		{origin: "Teams", speaker: "Bob", text: "hello there everyone"},
		{origin: "Teams", speaker: "Bob", text: "how are you doing today", after: 2 * time.Second},
		{origin: "Teams", speaker: "Bob", text: "hello there everyone", after: time.Second},
	})
	assert.Equal(t, OutcomeAppended, got[0].Action)
	assert.Equal(t, OutcomeAppended, got[1].Action)
	assert.Equal(t, Outcome{Action: OutcomeSkipped, Reason: ReasonDedupe}, got[2])
	assert.Equal(t, []string{"Teams: Bob: hello there everyone", "Teams: Bob: how are you doing today"},
		lineTexts(e.Lines()))
	assert.Len(t, rec.events, 2)
}

func TestEngine_ReplaceSegment(t *testing.T) {
	e, clk, rec := newTestEngine(t)
	feed(t, e, clk, []tick{
		{origin: "Teams", speaker: "Bob", text: "eu vou"},
		{origin: "Teams", speaker: "Bob", text: "chegar tarde", after: 5 * time.Second},
	})
	old := e.Lines()
	res, err := e.ReplaceSegment(old, []domain.Line{{Origin: "Teams", Speaker: "Bob", Text: "Eu vou chegar tarde."}})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, []string{"Teams: Bob: Eu vou chegar tarde."}, lineTexts(e.Lines()))
	assert.Equal(t, old[0].InsertedAt, res[0].InsertedAt)
	last := rec.events[len(rec.events)-1]
	assert.Equal(t, EventSegment, last.Kind)
	assert.Equal(t, old, last.OldLines)

	_, err = e.ReplaceSegment(old, []domain.Line{{Origin: "Teams", Speaker: "Bob", Text: "x"}})
	assert.ErrorIs(t, err, transcript.ErrStaleSegment)
}

func TestEngine_Clear(t *testing.T) {
	e, clk, rec := newTestEngine(t)
	feed(t, e, clk, []tick{{origin: "Teams", speaker: "Unknown", text: "Hello there"}})
	e.Clear()
	assert.Empty(t, e.Lines())
	assert.Equal(t, EventClear, rec.events[len(rec.events)-1].Kind)

	feed(t, e, clk, []tick{{origin: "Teams", speaker: "Alice", text: "Hello there"}})
	assert.Equal(t, []string{"Teams: Alice: Hello there"}, lineTexts(e.Lines()))
}

func TestEngine_SnapshotRestore(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	feed(t, e, clk, []tick{{origin: "Teams", speaker: "Bob", text: "Eu vou"}})
	snap := e.Snapshot()

	e2, clk2, _ := newTestEngine(t)
	e2.Restore(snap)
	feed(t, e2, clk2, []tick{{origin: "Teams", speaker: "Bob", text: "Eu vou chegar"}})
	assert.Equal(t, []string{"Teams: Bob: Eu vou chegar"}, lineTexts(e2.Lines()))
}

type failingHandler struct{}

func (failingHandler) Process(context.Context, string) (string, error) {
	return "", errors.New("olia")
}

func TestEngine_MiddlewareError(t *testing.T) {
	e, _, _ := newTestEngine(t, WithMiddleware(failingHandler{}))
	_, err := e.ReportCaption(context.Background(), "Bob", "Hello", "Teams")
	assert.Error(t, err)
	assert.Empty(t, e.Lines())
}

func TestNewEngine_Fails(t *testing.T) {
	_, err := NewEngine(DefaultConfig(), nil, nil)
	assert.Error(t, err)
}

package reconcile

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/airenas/rt-caption-assistant/internal/domain"
	"github.com/airenas/rt-caption-assistant/internal/norm"
	"github.com/airenas/rt-caption-assistant/internal/repeats"
)

// Action tells what to do with a caption tick
type Action int

const (
	// ActionNone - nothing to emit
	ActionNone Action = iota
	// ActionGlue - mutate the previous line of the speaker
	ActionGlue
	// ActionNew - a new utterance
	ActionNew
)

// Decision reasons
const (
	ReasonSame       = "same"
	ReasonEmptyDelta = "empty_delta"
	ReasonEcho       = "echo"
	ReasonNoPrevLine = "no_prev_line"
	ReasonDupPunct   = "dup_punct"
	ReasonPunct      = "punct"
	ReasonPipoco     = "pipoco"
	ReasonNew        = "new"
	ReasonNoise      = "noise"
	ReasonDedupe     = "dedupe"
	ReasonUnknownDup = "unknown_dup"
	ReasonReplaced   = "replaced"
)

// MergeInput is the per speaker state the merger needs
type MergeInput struct {
	Text     string
	PrevRaw  string
	PrevLine *domain.Line
	// Since is the time from the last update of PrevLine
	Since time.Duration
}

// Decision is the merger result
type Decision struct {
	Action Action
	Reason string
	Delta  string
	// Text is the new PrevLine text for ActionGlue
	Text string
	// Raw is the value to keep as the last raw text
	Raw string
}

// Merger decides how a caption fragment relates to the previous one of the same speaker
type Merger struct {
	window     time.Duration
	shortDelta int
	openDelta  int
}

// NewMerger creates merger
func NewMerger(window time.Duration, shortDelta, openDelta int) *Merger {
	return &Merger{window: window, shortDelta: shortDelta, openDelta: openDelta}
}

// Decide applies, in order: growing text delta, echo guard, punctuation glue, pipoco glue, new utterance
func (m *Merger) Decide(in MergeInput) Decision {
	text := in.Text
	delta := text
	inWord := false
	if in.PrevRaw != "" {
		if text == in.PrevRaw {
			return Decision{Action: ActionNone, Reason: ReasonSame, Raw: text}
		}
		if strings.HasPrefix(text, in.PrevRaw) {
			rest := text[len(in.PrevRaw):]
			inWord = endsWithWordRune(in.PrevRaw) && startsWithWordRune(rest)
			delta = rest
		}
	}
	delta = repeats.Collapse(delta)
	if delta == "" {
		return Decision{Action: ActionNone, Reason: ReasonEmptyDelta, Raw: text}
	}
	if in.PrevRaw != "" && isEcho(delta, in.PrevRaw) {
		raw := in.PrevRaw
		if len(text) > len(raw) {
			raw = text
		}
		return Decision{Action: ActionNone, Reason: ReasonEcho, Raw: raw}
	}
	if norm.IsPunctOnly(delta) {
		raw := text
		if !strings.HasPrefix(text, in.PrevRaw) {
			raw = in.PrevRaw + delta
		}
		if in.PrevLine == nil {
			return Decision{Action: ActionNone, Reason: ReasonNoPrevLine, Raw: raw}
		}
		if norm.EndsTerminal(in.PrevLine.Text) {
			return Decision{Action: ActionNone, Reason: ReasonDupPunct, Raw: raw}
		}
		return Decision{Action: ActionGlue, Reason: ReasonPunct, Delta: delta, Raw: raw,
			Text: repeats.Collapse(in.PrevLine.Text + delta)}
	}
	if in.PrevLine != nil && in.Since <= m.window {
		n := utf8.RuneCountInString(delta)
		if n <= m.shortDelta || (!norm.EndsTerminal(in.PrevLine.Text) && n <= m.openDelta) {
			return Decision{Action: ActionGlue, Reason: ReasonPipoco, Delta: delta, Raw: text,
				Text: repeats.Collapse(norm.JoinFragment(in.PrevLine.Text, delta, inWord))}
		}
	}
	return Decision{Action: ActionNew, Reason: ReasonNew, Delta: delta, Raw: text}
}

// isEcho is true when one text starts with the other
func isEcho(delta, prevRaw string) bool {
	a, b := norm.Key(delta), norm.Key(prevRaw)
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func endsWithWordRune(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r != utf8.RuneError && isWordRune(r)
}

func startsWithWordRune(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r != utf8.RuneError && isWordRune(r)
}

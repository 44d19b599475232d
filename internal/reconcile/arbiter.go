package reconcile

import (
	"time"

	"github.com/airenas/rt-caption-assistant/internal/norm"
)

// Verdict is the cross speaker arbitration result
type Verdict int

const (
	// VerdictAppend - no conflict
	VerdictAppend Verdict = iota
	// VerdictDuplicate - the same speaker already said it
	VerdictDuplicate
	// VerdictReplace - a placeholder line gets the real speaker
	VerdictReplace
	// VerdictDrop - a known speaker already owns the text
	VerdictDrop
)

type windowEntry struct {
	at       time.Time
	speaker  string
	inferred bool
	lineID   uint64
}

// Arbiter resolves races between speakers emitting the same text in one origin
type Arbiter struct {
	ttl        time.Duration
	maxEntries int
	policy     *norm.Policy
	entries    map[string]*windowEntry
}

// NewArbiter creates arbiter with TTL bounded window
func NewArbiter(ttl time.Duration, maxEntries int, policy *norm.Policy) *Arbiter {
	if maxEntries <= 0 {
		maxEntries = 512
	}
	return &Arbiter{ttl: ttl, maxEntries: maxEntries, policy: policy, entries: map[string]*windowEntry{}}
}

func windowKey(origin, text string) string {
	return origin + "||" + norm.Key(text)
}

// Judge checks the text against recent emissions, returns verdict and the conflicting line ID
func (a *Arbiter) Judge(origin, speaker string, inferred bool, text string, now time.Time) (Verdict, uint64) {
	a.purge(now)
	e, ok := a.entries[windowKey(origin, text)]
	if !ok {
		return VerdictAppend, 0
	}
	prevUnknown := e.inferred || a.policy.IsUnknownSpeaker(e.speaker)
	curUnknown := inferred || a.policy.IsUnknownSpeaker(speaker)
	switch {
	case prevUnknown && !curUnknown:
		return VerdictReplace, e.lineID
	case norm.Name(e.speaker) == norm.Name(speaker):
		e.at = now
		return VerdictDuplicate, e.lineID
	case !prevUnknown && curUnknown:
		e.at = now
		return VerdictDrop, e.lineID
	case prevUnknown && curUnknown:
		e.at = now
		return VerdictDuplicate, e.lineID
	}
	return VerdictAppend, 0
}

// Remember records an emission
func (a *Arbiter) Remember(origin, speaker string, inferred bool, text string, lineID uint64, now time.Time) {
	a.entries[windowKey(origin, text)] = &windowEntry{at: now, speaker: speaker, inferred: inferred, lineID: lineID}
	if len(a.entries) > a.maxEntries {
		a.purge(now)
	}
	for len(a.entries) > a.maxEntries {
		a.dropOldest()
	}
}

// Reset drops all entries
func (a *Arbiter) Reset() {
	a.entries = map[string]*windowEntry{}
}

func (a *Arbiter) purge(now time.Time) {
	for k, e := range a.entries {
		if now.Sub(e.at) > a.ttl {
			delete(a.entries, k)
		}
	}
}

func (a *Arbiter) dropOldest() {
	var key string
	var at time.Time
	for k, e := range a.entries {
		if key == "" || e.at.Before(at) {
			key, at = k, e.at
		}
	}
	delete(a.entries, key)
}

package reconcile

import (
	"time"

	"github.com/airenas/rt-caption-assistant/internal/norm"
)

type seenSpeaker struct {
	name string
	at   time.Time
}

// speakerTracker remembers who spoke recently per origin
type speakerTracker struct {
	window time.Duration
	seen   map[string]map[string]seenSpeaker
}

func newSpeakerTracker(window time.Duration) *speakerTracker {
	return &speakerTracker{window: window, seen: map[string]map[string]seenSpeaker{}}
}

func (t *speakerTracker) Seen(origin, name string, now time.Time) {
	m, ok := t.seen[origin]
	if !ok {
		m = map[string]seenSpeaker{}
		t.seen[origin] = m
	}
	m[norm.Name(name)] = seenSpeaker{name: name, at: now}
}

// Infer returns the only known speaker active in the window
func (t *speakerTracker) Infer(origin string, now time.Time) (string, bool) {
	var res string
	count := 0
	for k, s := range t.seen[origin] {
		if now.Sub(s.at) > t.window {
			delete(t.seen[origin], k)
			continue
		}
		res = s.name
		count++
	}
	return res, count == 1
}

func (t *speakerTracker) Reset() {
	t.seen = map[string]map[string]seenSpeaker{}
}

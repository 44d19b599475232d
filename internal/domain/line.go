package domain

import (
	"strings"
	"time"

	"github.com/airenas/rt-caption-assistant/internal/norm"
)

// SpeakerKey is per speaker state key, origin and speaker together
type SpeakerKey struct {
	Origin  string
	Speaker string
}

func (k SpeakerKey) String() string {
	return k.Origin + "::" + k.Speaker
}

// ParseSpeakerKey is the reverse of SpeakerKey.String
func ParseSpeakerKey(s string) SpeakerKey {
	if i := strings.Index(s, "::"); i >= 0 {
		return SpeakerKey{Origin: s[:i], Speaker: s[i+2:]}
	}
	return SpeakerKey{Speaker: s}
}

// Line is one transcript line
type Line struct {
	ID         uint64    `json:"id"`
	Origin     string    `json:"origin"`
	Speaker    string    `json:"speaker"`
	Text       string    `json:"text"`
	Source     string    `json:"source,omitempty"`
	InsertedAt time.Time `json:"insertedAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Key returns speaker key of the caption stream the line came from.
// For inferred speakers it is the reported placeholder, not the displayed name
func (l Line) Key() SpeakerKey {
	if l.Source != "" {
		return SpeakerKey{Origin: l.Origin, Speaker: l.Source}
	}
	return SpeakerKey{Origin: l.Origin, Speaker: l.Speaker}
}

// Inferred reports whether the speaker was guessed
func (l Line) Inferred() bool {
	return l.Source != ""
}

// String renders line as "Origin: Speaker: Text"
func (l Line) String() string {
	return l.Origin + ": " + l.Speaker + ": " + l.Text
}

// Hash is the content identity used for dedupe and fixed flags
func (l Line) Hash() string {
	return norm.Hash(norm.Key(l.String()))
}

// SameContent compares rendered content ignoring ids and times
func (l Line) SameContent(o Line) bool {
	return l.Origin == o.Origin && l.Speaker == o.Speaker && l.Text == o.Text
}

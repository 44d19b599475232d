package api

import (
	"time"

	"github.com/airenas/rt-caption-assistant/internal/domain"
)

// CaptionTick is one scraped caption observation
type CaptionTick struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	Origin  string `json:"origin,omitempty"`
}

type TickResult struct {
	Action string    `json:"action"`
	Reason string    `json:"reason,omitempty"`
	Line   *LineView `json:"line,omitempty"`
}

type LineView struct {
	ID        uint64    `json:"id"`
	Origin    string    `json:"origin"`
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Inferred  bool      `json:"inferred,omitempty"`
	Fixed     bool      `json:"fixed,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type TranscriptResponse struct {
	Lines []LineView `json:"lines"`
}

type ReplyRequest struct {
	LineID uint64 `json:"lineId,omitempty"`
	Text   string `json:"text,omitempty"`
}

type ReplyResponse struct {
	RequestID string `json:"requestId,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type CorrectResponse struct {
	Attempted int  `json:"attempted"`
	Fixed     int  `json:"fixed"`
	Failed    int  `json:"failed"`
	TimedOut  bool `json:"timedOut,omitempty"`
}

type SettingsRequest struct {
	AutoReply   *bool `json:"autoReply,omitempty"`
	AutoCorrect *bool `json:"autoCorrect,omitempty"`
}

// Event is pushed to UI clients
type Event struct {
	Type      string     `json:"type"`
	Line      *LineView  `json:"line,omitempty"`
	OldID     uint64     `json:"oldId,omitempty"`
	Lines     []LineView `json:"lines,omitempty"`
	OldIDs    []uint64   `json:"oldIds,omitempty"`
	RequestID string     `json:"requestId,omitempty"`
	Slot      string     `json:"slot,omitempty"`
	Text      string     `json:"text,omitempty"`
	Done      bool       `json:"done,omitempty"`
	Reset     bool       `json:"reset,omitempty"`
	Status    string     `json:"status,omitempty"`
	Message   string     `json:"message,omitempty"`
}

const (
	EventLineAppend     = "line_append"
	EventLineReplace    = "line_replace"
	EventSegmentReplace = "segment_replace"
	EventClear          = "clear"
	EventSuggestion     = "suggestion"
	EventStatus         = "status"
)

const (
	StatusBusy              = "busy"
	StatusOK                = "ok"
	StatusError             = "error"
	StatusAlreadyGenerating = "already_generating"
)

// ToView converts a line for clients
func ToView(l domain.Line, fixed bool) LineView {
	return LineView{ID: l.ID, Origin: l.Origin, Speaker: l.Speaker, Text: l.Text, Inferred: l.Inferred(),
		Fixed: fixed, UpdatedAt: l.UpdatedAt}
}

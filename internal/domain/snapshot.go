package domain

import "time"

// FlagRecord is a persisted fixed flag
type FlagRecord struct {
	Hash string    `json:"hash"`
	At   time.Time `json:"at"`
}

// Snapshot is serializable engine state
type Snapshot struct {
	Lines      []Line               `json:"lines"`
	Flags      []FlagRecord         `json:"flags,omitempty"`
	LastRaw    map[string]string    `json:"lastRaw,omitempty"`
	LastLine   map[string]uint64    `json:"lastLine,omitempty"`
	LastAppend map[string]time.Time `json:"lastAppend,omitempty"`
	NextID     uint64               `json:"nextId"`
}

// Settings keeps per session switches
type Settings struct {
	ID          string `json:"id"`
	AutoReply   bool   `json:"autoReply"`
	AutoCorrect bool   `json:"autoCorrect"`
}

package transcript

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/airenas/rt-caption-assistant/internal/domain"
	"github.com/airenas/rt-caption-assistant/internal/norm"
)

// DefaultMaxChars is the default transcript size budget
const DefaultMaxChars = 120000

// ErrStaleSegment is returned when the segment to replace is not in the store anymore
var ErrStaleSegment = errors.New("stale segment")

// Store keeps ordered transcript lines and per speaker indexes.
// It is not safe for concurrent use, the owner serializes access.
type Store struct {
	maxChars int
	chars    int
	nextID   uint64
	lines    []domain.Line

	lastRaw    map[domain.SpeakerKey]string
	lastLine   map[domain.SpeakerKey]uint64
	lastAppend map[domain.SpeakerKey]time.Time

	flags  *Ledger
	policy *norm.Policy
}

// NewStore creates transcript store
func NewStore(maxChars int, flags *Ledger, policy *norm.Policy) *Store {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if policy == nil {
		policy = norm.DefaultPolicy()
	}
	goapp.Log.Info().Int("maxChars", maxChars).Msg("Transcript store")
	return &Store{
		maxChars:   maxChars,
		lastRaw:    map[domain.SpeakerKey]string{},
		lastLine:   map[domain.SpeakerKey]uint64{},
		lastAppend: map[domain.SpeakerKey]time.Time{},
		flags:      flags,
		policy:     policy,
	}
}

// Append adds the line to the tail and returns it with the assigned ID
func (s *Store) Append(l domain.Line) domain.Line {
	s.nextID++
	l.ID = s.nextID
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = l.InsertedAt
	}
	s.lines = append(s.lines, l)
	s.chars += size(l)
	k := l.Key()
	s.lastLine[k] = l.ID
	s.lastAppend[k] = l.UpdatedAt
	s.trim()
	return l
}

// ReplaceInPlace substitutes the last occurrence of old. The line keeps its position and ID,
// a fixed flag moves to the new content
func (s *Store) ReplaceInPlace(old, updated domain.Line) (domain.Line, bool) {
	i := s.lastIndexOf(old)
	if i < 0 {
		return domain.Line{}, false
	}
	cur := s.lines[i]
	updated.ID = cur.ID
	if updated.InsertedAt.IsZero() {
		updated.InsertedAt = cur.InsertedAt
	}
	if updated.UpdatedAt.IsZero() {
		updated.UpdatedAt = cur.UpdatedAt
	}
	s.chars += size(updated) - size(cur)
	s.lines[i] = updated
	if s.flags != nil {
		s.flags.Transfer(cur, updated)
	}
	ok, nk := cur.Key(), updated.Key()
	if ok != nk && s.lastLine[ok] == cur.ID {
		delete(s.lastLine, ok)
	}
	if id, has := s.lastLine[nk]; !has || id <= cur.ID {
		s.lastLine[nk] = cur.ID
		s.lastAppend[nk] = updated.UpdatedAt
	}
	s.trim()
	return updated, true
}

// ReplaceSegment replaces the most recent contiguous run equal to old with updated lines.
// Returns ErrStaleSegment and leaves the store untouched if old is not found
func (s *Store) ReplaceSegment(old, updated []domain.Line) ([]domain.Line, error) {
	if len(old) == 0 {
		return nil, fmt.Errorf("empty segment: %w", ErrStaleSegment)
	}
	start := -1
	for i := len(s.lines) - len(old); i >= 0; i-- {
		if s.matchAt(i, old) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, ErrStaleSegment
	}
	end := start + len(old)
	at := s.lines[start].InsertedAt
	fresh := make([]domain.Line, len(updated))
	for i, l := range updated {
		s.nextID++
		l.ID = s.nextID
		if l.InsertedAt.IsZero() {
			l.InsertedAt = at
		}
		if l.UpdatedAt.IsZero() {
			l.UpdatedAt = l.InsertedAt
		}
		fresh[i] = l
		s.chars += size(l)
	}
	removed := map[uint64]bool{}
	for _, l := range s.lines[start:end] {
		removed[l.ID] = true
		s.chars -= size(l)
		if s.flags != nil {
			s.flags.Forget(l)
		}
	}
	lines := make([]domain.Line, 0, len(s.lines)-len(old)+len(fresh))
	lines = append(lines, s.lines[:start]...)
	lines = append(lines, fresh...)
	lines = append(lines, s.lines[end:]...)
	s.lines = lines

	orphans := map[domain.SpeakerKey]bool{}
	for k, id := range s.lastLine {
		if removed[id] {
			delete(s.lastLine, k)
			orphans[k] = true
		}
	}
	for _, l := range fresh {
		if _, has := s.lastLine[l.Key()]; !has || orphans[l.Key()] {
			s.lastLine[l.Key()] = l.ID
		}
	}
	s.trim()
	res := make([]domain.Line, len(fresh))
	copy(res, fresh)
	return res, nil
}

// TailLines returns up to n last lines skipping noise and internal lines
func (s *Store) TailLines(n int) []domain.Line {
	if n <= 0 {
		return nil
	}
	res := make([]domain.Line, 0, n)
	for i := len(s.lines) - 1; i >= 0 && len(res) < n; i-- {
		l := s.lines[i]
		if s.policy.IsNoise(l.Text) || s.policy.IsInternal(l.Text) || s.policy.IsInternal(l.Origin) {
			continue
		}
		res = append(res, l)
	}
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res
}

// Lines returns a copy of all lines
func (s *Store) Lines() []domain.Line {
	res := make([]domain.Line, len(s.lines))
	copy(res, s.lines)
	return res
}

// Line finds line by ID
func (s *Store) Line(id uint64) (domain.Line, bool) {
	for i := len(s.lines) - 1; i >= 0; i-- {
		if s.lines[i].ID == id {
			return s.lines[i], true
		}
	}
	return domain.Line{}, false
}

// Len returns line count
func (s *Store) Len() int {
	return len(s.lines)
}

// Chars returns the current size in runes
func (s *Store) Chars() int {
	return s.chars
}

func (s *Store) LastRaw(k domain.SpeakerKey) string {
	return s.lastRaw[k]
}

func (s *Store) SetLastRaw(k domain.SpeakerKey, raw string) {
	s.lastRaw[k] = raw
}

func (s *Store) LastLine(k domain.SpeakerKey) (domain.Line, bool) {
	id, ok := s.lastLine[k]
	if !ok {
		return domain.Line{}, false
	}
	return s.Line(id)
}

func (s *Store) LastAppend(k domain.SpeakerKey) time.Time {
	return s.lastAppend[k]
}

// Clear drops lines and indexes, IDs are never reused
func (s *Store) Clear() {
	s.lines = nil
	s.chars = 0
	s.lastRaw = map[domain.SpeakerKey]string{}
	s.lastLine = map[domain.SpeakerKey]uint64{}
	s.lastAppend = map[domain.SpeakerKey]time.Time{}
}

// Snapshot returns serializable state
func (s *Store) Snapshot() domain.Snapshot {
	res := domain.Snapshot{
		Lines:      s.Lines(),
		LastRaw:    make(map[string]string, len(s.lastRaw)),
		LastLine:   make(map[string]uint64, len(s.lastLine)),
		LastAppend: make(map[string]time.Time, len(s.lastAppend)),
		NextID:     s.nextID,
	}
	for k, v := range s.lastRaw {
		res.LastRaw[k.String()] = v
	}
	for k, v := range s.lastLine {
		res.LastLine[k.String()] = v
	}
	for k, v := range s.lastAppend {
		res.LastAppend[k.String()] = v
	}
	if s.flags != nil {
		res.Flags = s.flags.Snapshot()
	}
	return res
}

// Restore loads state from the snapshot
func (s *Store) Restore(snap domain.Snapshot) {
	s.Clear()
	s.lines = make([]domain.Line, len(snap.Lines))
	copy(s.lines, snap.Lines)
	s.nextID = snap.NextID
	for _, l := range s.lines {
		s.chars += size(l)
		if l.ID > s.nextID {
			s.nextID = l.ID
		}
	}
	for k, v := range snap.LastRaw {
		s.lastRaw[domain.ParseSpeakerKey(k)] = v
	}
	for k, v := range snap.LastLine {
		s.lastLine[domain.ParseSpeakerKey(k)] = v
	}
	for k, v := range snap.LastAppend {
		s.lastAppend[domain.ParseSpeakerKey(k)] = v
	}
	if s.flags != nil && snap.Flags != nil {
		s.flags.Restore(snap.Flags)
	}
	s.trim()
}

func (s *Store) trim() {
	drop := 0
	for s.chars > s.maxChars && len(s.lines)-drop > 1 {
		s.chars -= size(s.lines[drop])
		drop++
	}
	if drop == 0 {
		return
	}
	removed := map[uint64]bool{}
	for _, l := range s.lines[:drop] {
		removed[l.ID] = true
	}
	s.lines = append([]domain.Line(nil), s.lines[drop:]...)
	for k, id := range s.lastLine {
		if removed[id] {
			delete(s.lastLine, k)
		}
	}
	goapp.Log.Debug().Int("lines", drop).Int("chars", s.chars).Msg("trimmed transcript head")
}

func (s *Store) lastIndexOf(l domain.Line) int {
	for i := len(s.lines) - 1; i >= 0; i-- {
		if s.lines[i].SameContent(l) {
			return i
		}
	}
	return -1
}

func (s *Store) matchAt(i int, old []domain.Line) bool {
	for j, l := range old {
		if !s.lines[i+j].SameContent(l) {
			return false
		}
	}
	return true
}

func size(l domain.Line) int {
	return utf8.RuneCountInString(l.String()) + 1
}

package transcript

import (
	"fmt"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/facebookgo/clock"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/airenas/rt-caption-assistant/internal/domain"
)

// DefaultFlagCapacity is the max number of remembered fixed lines
const DefaultFlagCapacity = 2500

// Ledger marks lines already corrected by LLM
type Ledger struct {
	cache *lru.Cache[string, time.Time]
	clock clock.Clock
}

// NewLedger creates a bounded ledger, the oldest marks are evicted first
func NewLedger(capacity int, clk clock.Clock) (*Ledger, error) {
	if capacity <= 0 {
		capacity = DefaultFlagCapacity
	}
	if clk == nil {
		clk = clock.New()
	}
	cache, err := lru.New[string, time.Time](capacity)
	if err != nil {
		return nil, fmt.Errorf("init lru: %w", err)
	}
	goapp.Log.Info().Int("capacity", capacity).Msg("Fixed line ledger")
	return &Ledger{cache: cache, clock: clk}, nil
}

// MarkFixed flags the line content, re-marking refreshes the entry
func (l *Ledger) MarkFixed(line domain.Line) {
	l.cache.Add(line.Hash(), l.clock.Now())
}

// IsFixed checks flag
func (l *Ledger) IsFixed(line domain.Line) bool {
	return l.cache.Contains(line.Hash())
}

// Transfer moves the flag from old content to the new one
func (l *Ledger) Transfer(old, updated domain.Line) bool {
	oh, nh := old.Hash(), updated.Hash()
	if oh == nh {
		return l.cache.Contains(oh)
	}
	if !l.cache.Remove(oh) {
		return false
	}
	l.cache.Add(nh, l.clock.Now())
	return true
}

// Forget drops the flag of the line
func (l *Ledger) Forget(line domain.Line) {
	l.cache.Remove(line.Hash())
}

// Len returns count of flags
func (l *Ledger) Len() int {
	return l.cache.Len()
}

// Snapshot returns flags from the oldest to the newest
func (l *Ledger) Snapshot() []domain.FlagRecord {
	keys := l.cache.Keys()
	res := make([]domain.FlagRecord, 0, len(keys))
	for _, k := range keys {
		if at, ok := l.cache.Peek(k); ok {
			res = append(res, domain.FlagRecord{Hash: k, At: at})
		}
	}
	return res
}

// Restore replaces flags with the snapshot
func (l *Ledger) Restore(flags []domain.FlagRecord) {
	l.cache.Purge()
	for _, f := range flags {
		l.cache.Add(f.Hash, f.At)
	}
}

package reconcile

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/airenas/rt-caption-assistant/internal/norm"
)

func TestArbiter_Judge(t *testing.T) {
	now := time.Unix(1000, 0)
	type emission struct {
		speaker  string
		inferred bool
	}
	tests := []struct {
		name    string
		prev    emission
		cur     emission
		after   time.Duration
		want    Verdict
		wantID  uint64
		text    string
		curText string
	}{
		{name: "same speaker", prev: emission{speaker: "Alice"}, cur: emission{speaker: "alice"}, want: VerdictDuplicate, wantID: 7},
		{name: "unknown replaced", prev: emission{speaker: "Unknown"}, cur: emission{speaker: "Alice"}, want: VerdictReplace, wantID: 7},
		{name: "inferred replaced", prev: emission{speaker: "Bob", inferred: true}, cur: emission{speaker: "Alice"}, want: VerdictReplace, wantID: 7},
		{name: "unknown dropped", prev: emission{speaker: "Alice"}, cur: emission{speaker: "Desconhecido"}, want: VerdictDrop, wantID: 7},
		{name: "both unknown", prev: emission{speaker: "Unknown"}, cur: emission{speaker: "Speaker"}, want: VerdictDuplicate, wantID: 7},
		{name: "two known speakers", prev: emission{speaker: "Alice"}, cur: emission{speaker: "Bob"}, want: VerdictAppend},
		{name: "expired", prev: emission{speaker: "Unknown"}, cur: emission{speaker: "Alice"}, after: 4 * time.Second, want: VerdictAppend},
		{name: "case and spaces", prev: emission{speaker: "Unknown"}, cur: emission{speaker: "Alice"}, want: VerdictReplace, wantID: 7,
			text: "See  you Tomorrow", curText: "see you tomorrow"},
		{name: "other text", prev: emission{speaker: "Unknown"}, cur: emission{speaker: "Alice"}, want: VerdictAppend,
			curText: "see you later"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewArbiter(3200*time.Millisecond, 0, norm.DefaultPolicy())
			text, curText := "see you tomorrow", "see you tomorrow"
			if tt.text != "" {
				text = tt.text
			}
			if tt.curText != "" {
				curText = tt.curText
			}
			a.Remember("Teams", tt.prev.speaker, tt.prev.inferred, text, 7, now)
			got, id := a.Judge("Teams", tt.cur.speaker, tt.cur.inferred, curText, now.Add(tt.after))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestArbiter_OriginsAreIndependent(t *testing.T) {
	now := time.Unix(1000, 0)
	a := NewArbiter(time.Second, 0, norm.DefaultPolicy())
	a.Remember("Meet", "Unknown", false, "hello", 1, now)
	got, _ := a.Judge("Teams", "Alice", false, "hello", now)
	assert.Equal(t, VerdictAppend, got)
}

func TestArbiter_Bounded(t *testing.T) {
	now := time.Unix(1000, 0)
	a := NewArbiter(time.Hour, 3, norm.DefaultPolicy())
	for i := 0; i < 5; i++ {
		a.Remember("Teams", "Unknown", false, fmt.Sprintf("text %d", i), uint64(i), now.Add(time.Duration(i)*time.Second))
	}
	assert.Len(t, a.entries, 3)
	got, _ := a.Judge("Teams", "Alice", false, "text 0", now.Add(5*time.Second))
	assert.Equal(t, VerdictAppend, got, "oldest is evicted")
	got, id := a.Judge("Teams", "Alice", false, "text 4", now.Add(5*time.Second))
	assert.Equal(t, VerdictReplace, got)
	assert.Equal(t, uint64(4), id)
}

func TestArbiter_Reset(t *testing.T) {
	now := time.Unix(1000, 0)
	a := NewArbiter(time.Hour, 0, norm.DefaultPolicy())
	a.Remember("Teams", "Unknown", false, "hello", 1, now)
	a.Reset()
	got, _ := a.Judge("Teams", "Alice", false, "hello", now)
	assert.Equal(t, VerdictAppend, got)
}

package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airenas/rt-caption-assistant/internal/domain"
)

func testLines() []domain.Line {
	return []domain.Line{
		{ID: 3, Origin: "Teams", Speaker: "Bob", Text: "eu vou"},
		{ID: 4, Origin: "Teams", Speaker: "Ana", Text: "chegar tarde", Source: "Unknown"},
	}
}

func TestFormatTagged(t *testing.T) {
	assert.Equal(t, []string{"[L1] Teams: Bob: eu vou", "[L2] Teams: Ana: chegar tarde"}, FormatTagged(testLines()))
}

func TestNormalizeRewrite(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantKind  RewriteKind
		wantText  string
		wantLines []string
		wantErr   error
	}{
		{name: "json lines", body: `{"lines":["Eu vou","chegar tarde."]}`, wantKind: KindLines,
			wantLines: []string{"Eu vou", "chegar tarde."}},
		{name: "json line objects", body: `{"lines":[{"text":"Eu vou"},{"text":"chegar tarde."}]}`, wantKind: KindLines,
			wantLines: []string{"Eu vou", "chegar tarde."}},
		{name: "tagged plain", body: "[L1] Teams: Bob: Eu vou\n[L2] Teams: Ana: chegar tarde.", wantKind: KindLines,
			wantLines: []string{"Eu vou", "chegar tarde."}},
		{name: "tagged reordered", body: "[L2] chegar tarde.\n[L1] Eu vou", wantKind: KindLines,
			wantLines: []string{"Eu vou", "chegar tarde."}},
		{name: "json text tagged", body: `{"text":"[L1] Eu vou\n[L2] Ana: chegar tarde."}`, wantKind: KindLines,
			wantLines: []string{"Eu vou", "chegar tarde."}},
		{name: "untagged plain", body: "Eu vou\n\nchegar tarde.\n", wantKind: KindLines,
			wantLines: []string{"Eu vou", "chegar tarde."}},
		{name: "json text", body: `{"text":"Eu vou chegar tarde."}`, wantKind: KindText, wantText: "Eu vou chegar tarde."},
		{name: "plain text", body: "Teams: Bob: Eu vou chegar tarde.", wantKind: KindText, wantText: "Eu vou chegar tarde."},
		{name: "meta preamble", body: "Notes: fixed two words\n[L1] Eu vou\n[L2] chegar tarde.", wantKind: KindLines,
			wantLines: []string{"Eu vou", "chegar tarde."}},
		{name: "empty", body: "  ", wantErr: ErrEmpty},
		{name: "empty json text", body: `{"text":""}`, wantErr: ErrEmpty},
		{name: "no fields", body: `{"result":"x"}`, wantErr: ErrStructure},
		{name: "count mismatch", body: `{"lines":["Eu vou chegar tarde."]}`, wantErr: ErrStructure},
		{name: "too many lines", body: "a\nb\nc", wantErr: ErrStructure},
		{name: "duplicate marker", body: "[L1] Eu vou\n[L1] chegar", wantErr: ErrStructure},
		{name: "marker out of range", body: "[L1] Eu vou\n[L3] chegar", wantErr: ErrStructure},
		{name: "partly tagged", body: "[L1] Eu vou\nchegar", wantErr: ErrStructure},
		{name: "leaked marker", body: `{"lines":["Eu vou [L2]","chegar"]}`, wantErr: ErrStructure},
		{name: "leaked newline", body: `{"lines":["Eu\nvou","chegar"]}`, wantErr: ErrStructure},
		{name: "double prefix", body: "[L1] Teams: Bob: Teams: Bob: Eu vou\n[L2] chegar", wantErr: ErrStructure},
		{name: "empty line", body: `{"lines":["Eu vou",""]}`, wantErr: ErrStructure},
		{name: "merged tagged", body: "[L1] Eu vou [L2] chegar", wantErr: ErrStructure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeRewrite([]byte(tt.body), testLines())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantText, got.Text)
			if tt.wantKind == KindLines {
				require.Len(t, got.Lines, 2)
				assert.Equal(t, tt.wantLines, []string{got.Lines[0].Text, got.Lines[1].Text})
				assert.Equal(t, "Bob", got.Lines[0].Speaker)
				assert.Equal(t, "Unknown", got.Lines[1].Source)
				assert.Zero(t, got.Lines[0].ID)
			}
		})
	}
}

func TestNormalizeRewrite_SingleLine(t *testing.T) {
	got, err := NormalizeRewrite([]byte("Eu vou."), testLines()[:1])
	require.NoError(t, err)
	assert.Equal(t, KindLines, got.Kind)
	assert.Equal(t, "Eu vou.", got.Lines[0].Text)
}

func TestStripMeta(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "Sure, see you there.", want: "Sure, see you there."},
		{name: "analysis", in: "Analysis: the user asks about time.\n\nSure, at five.", want: "Sure, at five."},
		{name: "bold notes", in: "**Notes:** keep it short\nOk", want: "Ok"},
		{name: "portuguese", in: "Observação: curto\nClaro, pode ser.", want: "Claro, pode ser."},
		{name: "think", in: "<think>long\nreasoning</think>\nYes.", want: "Yes."},
		{name: "open think", in: "Yes.<think>still going", want: "Yes."},
		{name: "quotes", in: `"Sure."`, want: "Sure."},
		{name: "inner quotes kept", in: `"a" and "b"`, want: `"a" and "b"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripMeta(tt.in))
		})
	}
}

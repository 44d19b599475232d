package assist

import (
	"strings"

	"github.com/airenas/rt-caption-assistant/internal/domain"
	"github.com/airenas/rt-caption-assistant/internal/norm"
)

// MergeFragments joins neighbour lines of the same origin and speaker.
// The merged line keeps the id and times of its first fragment
func MergeFragments(lines []domain.Line) []domain.Line {
	res := make([]domain.Line, 0, len(lines))
	for _, l := range lines {
		if n := len(res); n > 0 && res[n-1].Origin == l.Origin && res[n-1].Speaker == l.Speaker {
			res[n-1].Text = norm.Join(res[n-1].Text, l.Text)
			if l.UpdatedAt.After(res[n-1].UpdatedAt) {
				res[n-1].UpdatedAt = l.UpdatedAt
			}
			continue
		}
		res = append(res, l)
	}
	return res
}

// Seed renders lines as the reply prompt, one "Speaker: Text" per merged line
func Seed(lines []domain.Line) string {
	var sb strings.Builder
	for i, l := range MergeFragments(lines) {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(l.Speaker)
		sb.WriteString(": ")
		sb.WriteString(l.Text)
	}
	return sb.String()
}

func segmentKey(lines []domain.Line) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.String()
	}
	return norm.Hash(strings.Join(parts, "\n"))
}

func cloneLines(lines []domain.Line) []domain.Line {
	res := make([]domain.Line, len(lines))
	copy(res, lines)
	return res
}

// Package repeats removes pathological repetition that caption providers produce
// when they re-send or echo the same phrase inside one caption string.
package repeats

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/airenas/rt-caption-assistant/internal/norm"
)

const (
	// MinLength is the rune count a text must exceed to be collapsed
	MinLength = 64
	maxChunks = 6
	maxRun    = 2
)

// Collapse removes whole phrase repeats, repeated sentences and long word runs.
// It is idempotent: Collapse(Collapse(s)) == Collapse(s).
func Collapse(s string) string {
	s = norm.Whitespace(s)
	for {
		if utf8.RuneCountInString(s) <= MinLength {
			return s
		}
		next := collapseOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func collapseOnce(s string) string {
	if res, ok := wholePhrase(s); ok {
		return res
	}
	if res, ok := sentenceRuns(s); ok {
		return res
	}
	return wordRuns(s)
}

func wholePhrase(s string) (string, bool) {
	words := strings.Fields(s)
	for k := maxChunks; k >= 2; k-- {
		if len(words) < k || len(words)%k != 0 {
			continue
		}
		size := len(words) / k
		if chunksEqual(words, size) {
			return strings.Join(words[:size], " "), true
		}
	}
	return "", false
}

func chunksEqual(words []string, size int) bool {
	for i := size; i < len(words); i++ {
		if !strings.EqualFold(words[i], words[i%size]) {
			return false
		}
	}
	return true
}

var sentenceRegexp = regexp.MustCompile(`[^.!?…]+[.!?…]*|[.!?…]+`)

type sentence struct {
	text  string
	canon string
}

func sentenceRuns(s string) (string, bool) {
	var parts []sentence
	for _, p := range sentenceRegexp.FindAllString(s, -1) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts = append(parts, sentence{text: p, canon: canonical(p)})
	}
	if len(parts) < 2 {
		return "", false
	}
	changed := false
	kept := make([]sentence, 0, len(parts))
	for _, p := range parts {
		if len(kept) > 0 && p.canon != "" && kept[len(kept)-1].canon == p.canon {
			changed = true
			continue
		}
		kept = append(kept, p)
	}
	if g := cycle(kept); g > 0 {
		kept = kept[:g]
		changed = true
	}
	if !changed {
		return "", false
	}
	res := make([]string, len(kept))
	for i, p := range kept {
		res[i] = p.text
	}
	return strings.Join(res, " "), true
}

// cycle returns the length of the shortest repeated cycle covering the whole sequence at least twice, or 0
func cycle(parts []sentence) int {
	for g := 1; g*2 <= len(parts); g++ {
		ok := true
		for i := g; i < len(parts); i++ {
			if parts[i].canon != parts[i%g].canon {
				ok = false
				break
			}
		}
		if ok {
			return g
		}
	}
	return 0
}

func canonical(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return ' '
		}
		return unicode.ToLower(r)
	}, s)
	return norm.Whitespace(s)
}

func wordRuns(s string) string {
	words := strings.Fields(s)
	res := make([]string, 0, len(words))
	run := 0
	for i, w := range words {
		if i > 0 && strings.EqualFold(w, words[i-1]) {
			run++
		} else {
			run = 1
		}
		if run <= maxRun {
			res = append(res, w)
		}
	}
	return strings.Join(res, " ")
}

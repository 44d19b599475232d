package llm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/airenas/rt-caption-assistant/internal/domain"
	"github.com/airenas/rt-caption-assistant/internal/norm"
)

var (
	markerRegexp    = regexp.MustCompile(`^\s*\[L(\d+)\]\s*`)
	anyMarkerRegexp = regexp.MustCompile(`\[L\d+\]`)
)

// Tag returns the positional marker of the i-th (0 based) line
func Tag(i int) string {
	return "[L" + strconv.Itoa(i+1) + "]"
}

// FormatTagged renders lines as "[L<n>] Origin: Speaker: Text"
func FormatTagged(lines []domain.Line) []string {
	res := make([]string, len(lines))
	for i, l := range lines {
		res[i] = Tag(i) + " " + l.String()
	}
	return res
}

// NormalizeRewrite maps a rewrite response back to the input lines.
// Accepted bodies: {"lines":[...]}, {"text":"..."} and plain text, lines may be marker tagged.
// Lines are returned in input order even if the response reordered tagged lines.
func NormalizeRewrite(body []byte, inputs []domain.Line) (*RewriteResult, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no input lines")
	}
	s := strings.TrimSpace(string(body))
	if s == "" {
		return nil, ErrEmpty
	}
	if strings.HasPrefix(s, "{") && gjson.Valid(s) {
		v := gjson.Parse(s)
		if l := v.Get("lines"); l.IsArray() {
			var items []string
			for _, it := range l.Array() {
				if it.IsObject() {
					items = append(items, it.Get("text").String())
				} else {
					items = append(items, it.String())
				}
			}
			return toLines(items, inputs)
		}
		t := v.Get("text")
		if !t.Exists() {
			return nil, fmt.Errorf("no text or lines field: %w", ErrStructure)
		}
		s = strings.TrimSpace(t.String())
		if s == "" {
			return nil, ErrEmpty
		}
	}
	s = StripMeta(s)
	items := nonEmptyLines(s)
	switch {
	case len(items) == 0:
		return nil, ErrEmpty
	case anyMarkerRegexp.MatchString(s), len(items) > 1, len(inputs) == 1:
		return toLines(items, inputs)
	}
	text, err := cleanText(items[0], inputs[0])
	if err != nil {
		return nil, err
	}
	return &RewriteResult{Kind: KindText, Text: text}, nil
}

func toLines(items []string, inputs []domain.Line) (*RewriteResult, error) {
	if len(items) != len(inputs) {
		return nil, fmt.Errorf("got %d lines, expected %d: %w", len(items), len(inputs), ErrStructure)
	}
	tagged := 0
	for _, it := range items {
		if markerRegexp.MatchString(it) {
			tagged++
		}
	}
	if tagged > 0 && tagged != len(items) {
		return nil, fmt.Errorf("%d of %d lines tagged: %w", tagged, len(items), ErrStructure)
	}
	res := make([]domain.Line, len(inputs))
	seen := make([]bool, len(inputs))
	for i, it := range items {
		pos := i
		if m := markerRegexp.FindStringSubmatch(it); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 1 || n > len(inputs) {
				return nil, fmt.Errorf("marker %q out of range: %w", m[1], ErrStructure)
			}
			pos = n - 1
			it = it[len(m[0]):]
		}
		if seen[pos] {
			return nil, fmt.Errorf("duplicate marker %s: %w", Tag(pos), ErrStructure)
		}
		seen[pos] = true
		text, err := cleanText(it, inputs[pos])
		if err != nil {
			return nil, err
		}
		in := inputs[pos]
		res[pos] = domain.Line{Origin: in.Origin, Speaker: in.Speaker, Source: in.Source, Text: text}
	}
	return &RewriteResult{Kind: KindLines, Lines: res}, nil
}

// cleanText drops an echoed "Origin: Speaker:" prefix and rejects structural leftovers
func cleanText(s string, in domain.Line) (string, error) {
	if strings.ContainsAny(s, "\r\n") {
		return "", fmt.Errorf("newline in text: %w", ErrStructure)
	}
	s = norm.Whitespace(s)
	if full := in.Origin + ": " + in.Speaker + ":"; hasPrefixFold(s, full) {
		s = strings.TrimSpace(s[len(full):])
	} else if in.Speaker != "" && hasPrefixFold(s, in.Speaker+":") {
		s = strings.TrimSpace(s[len(in.Speaker)+1:])
	}
	if anyMarkerRegexp.MatchString(s) {
		return "", fmt.Errorf("marker leaked into %q: %w", s, ErrStructure)
	}
	if hasPrefixFold(s, in.Origin+":") || (in.Speaker != "" && hasPrefixFold(s, in.Speaker+":")) {
		return "", fmt.Errorf("second prefix in %q: %w", s, ErrStructure)
	}
	if s == "" {
		return "", fmt.Errorf("empty line: %w", ErrStructure)
	}
	return s, nil
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func nonEmptyLines(s string) []string {
	var res []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			res = append(res, l)
		}
	}
	return res
}

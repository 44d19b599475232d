package norm

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var tinyRegexp = regexp.MustCompile(`^\p{L}{1,2}$`)

// IsTiny checks for one or two letter alphabetic token
func IsTiny(token string) bool {
	return tinyRegexp.MatchString(token)
}

// Join glues right onto left.
// Two tiny tokens at the seam are concatenated ("co" + "mo" = "como"),
// leading punctuation on the right is attached without a space.
func Join(left, right string) string {
	return join(left, right, false)
}

// JoinFragment is Join for the case the caller knows the seam is inside a word
func JoinFragment(left, right string, inWord bool) string {
	return join(left, right, inWord)
}

func join(left, right string, inWord bool) string {
	left, right = Whitespace(left), Whitespace(right)
	if left == "" {
		return right
	}
	if right == "" {
		return left
	}
	first, _ := utf8.DecodeRuneInString(right)
	if strings.ContainsRune(",.;:!?…", first) {
		return left + right
	}
	last, _ := utf8.DecodeLastRuneInString(left)
	if !unicode.IsLetter(last) || !unicode.IsLetter(first) {
		return left + " " + right
	}
	if inWord {
		return left + right
	}
	if IsTiny(lastWord(left)) && IsTiny(strings.TrimRightFunc(firstWord(right), unicode.IsPunct)) {
		return left + right
	}
	return left + " " + right
}

func lastWord(s string) string {
	return s[strings.LastIndexByte(s, ' ')+1:]
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

package norm

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Whitespace collapses all whitespace runs (newlines, NBSP included) into single spaces and trims
func Whitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Key is the canonical comparison form of a text
func Key(s string) string {
	return strings.ToLower(Whitespace(s))
}

// Hash returns stable, fast, non cryptographic hash of the string
func Hash(s string) string {
	return strconv.FormatUint(xxhash.Sum64String(s), 16)
}

var parenRegexp = regexp.MustCompile(`\([^)]*\)`)

// Name canonicalizes a speaker name: "Ana Souza (Convidado)" -> "anasouza"
func Name(s string) string {
	s = strings.ToLower(parenRegexp.ReplaceAllString(s, " "))
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Speaker cleans a scraped speaker label keeping its display form
func Speaker(s string) string {
	return strings.Trim(Whitespace(s), ":-–— ")
}

func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return false
}

// EndsTerminal checks if text ends with sentence terminal punctuation
func EndsTerminal(s string) bool {
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	if s == "" {
		return false
	}
	r := []rune(s)
	return isTerminal(r[len(r)-1])
}

// IsPunctOnly checks for a non empty string of .!?… only
func IsPunctOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isTerminal(r) {
			return false
		}
	}
	return true
}

// CleanCaption prepares scraped caption text: whitespace, leading dashes and bullets
func CleanCaption(s string) string {
	s = Whitespace(s)
	return strings.TrimLeft(s, "-–—•· ")
}

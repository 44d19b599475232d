package repeats_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/airenas/rt-caption-assistant/internal/repeats"
)

func TestCollapse(t *testing.T) {
	phrase := "we need to send the report to the client before friday"
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "short untouched", in: "ok ok ok ok", want: "ok ok ok ok"},
		{name: "whitespace", in: "  a \n b ", want: "a b"},
		{name: "no repeats", in: phrase + " and also the invoice", want: phrase + " and also the invoice"},
		{name: "phrase x2", in: phrase + " " + phrase, want: phrase},
		{name: "phrase x3", in: strings.Repeat(phrase+" ", 3), want: phrase},
		{name: "phrase x6", in: strings.Repeat(phrase+" ", 6), want: phrase},
		{name: "phrase case", in: phrase + " " + strings.ToUpper(phrase[:1]) + phrase[1:], want: phrase},
		{name: "sentence run",
			in:   "Vamos começar a reunião agora. Vamos começar a reunião agora! Quem vai apresentar primeiro hoje?",
			want: "Vamos começar a reunião agora. Quem vai apresentar primeiro hoje?"},
		{name: "sentence cycle",
			in:   "Bom dia a todos. Podemos começar? Bom dia a todos. Podemos começar? Bom dia a todos.",
			want: "Bom dia a todos. Podemos começar?"},
		{name: "word runs",
			in:   "the plan is is is is to ship the new version of the caption service next week",
			want: "the plan is is to ship the new version of the caption service next week"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := repeats.Collapse(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, repeats.Collapse(got))
		})
	}
}

func TestCollapse_Idempotent(t *testing.T) {
	inputs := []string{
		"a a a a a a a a a a a a a a a a a a a a a a a a a a a a a a a a a a a a a a a a",
		"Olá. Olá. Olá. Tudo bem? Tudo bem? Olá. Tudo bem? e então vamos lá vamos lá vamos lá vamos lá",
		"one two three one two three one two three one two three one two three four",
		"x. y. x. y. x. y. x. y. x. y. x. y. x. y. x. y. x. y. x. y. x. y. x. y. x. y. x. y. z",
		strings.Repeat("abc def ghi ", 20) + "jkl",
		"... ... ... ... ... ... ... ... ... ... ... ... ... ... ... ... ... ... ... ...",
	}
	for _, in := range inputs {
		once := repeats.Collapse(in)
		assert.Equal(t, once, repeats.Collapse(once), in)
	}
}

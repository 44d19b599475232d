package handlers_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airenas/rt-caption-assistant/internal/handlers"
)

type failing struct{}

func (failing) Process(context.Context, string) (string, error) {
	return "", fmt.Errorf("olia")
}

type upper struct{ calls int }

func (u *upper) Process(_ context.Context, s string) (string, error) {
	u.calls++
	return strings.ToUpper(s), nil
}

func TestListHandler_Process(t *testing.T) {
	l, err := handlers.NewListHandler()
	require.NoError(t, err)
	l.Add(handlers.NewCleaner(nil))
	l.Add(failing{})
	l.Add(handlers.NewCollapser())
	u := &upper{}
	l.Add(u)

	tests := []struct {
		name      string
		in        string
		want      string
		wantCalls int
	}{
		{name: "clean", in: "  - eu   vou\n chegar ", want: "EU VOU CHEGAR", wantCalls: 1},
		{name: "chrome", in: "Política de Privacidade", want: "", wantCalls: 1},
		{name: "empty", in: "   ", want: "", wantCalls: 1},
		{name: "collapsed",
			in:        "we need to send the report to the client before friday we need to send the report to the client before friday",
			want:      "WE NEED TO SEND THE REPORT TO THE CLIENT BEFORE FRIDAY",
			wantCalls: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.Process(context.Background(), tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCalls, u.calls)
		})
	}
}

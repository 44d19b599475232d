package handlers

import (
	"context"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/airenas/rt-caption-assistant/internal/repeats"
)

// Collapser removes echoed repetitions inside one caption
type Collapser struct {
}

// NewCollapser creates repetition collapser middleware
func NewCollapser() *Collapser {
	goapp.Log.Info().Int("minLength", repeats.MinLength).Msg("Collapser")
	return &Collapser{}
}

func (sp *Collapser) Process(ctx context.Context, data string) (string, error) {
	return repeats.Collapse(data), nil
}

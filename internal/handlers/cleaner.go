package handlers

import (
	"context"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/airenas/rt-caption-assistant/internal/norm"
)

// Cleaner normalizes caption text and drops platform chrome
type Cleaner struct {
	policy *norm.Policy
}

// NewCleaner creates a text cleaner
func NewCleaner(policy *norm.Policy) *Cleaner {
	if policy == nil {
		policy = norm.DefaultPolicy()
	}
	goapp.Log.Info().Msg("Cleaner")
	return &Cleaner{policy: policy}
}

func (sp *Cleaner) Process(ctx context.Context, data string) (string, error) {
	text := norm.CleanCaption(data)
	if sp.policy.IsChrome(text) {
		goapp.Log.Debug().Str("text", text).Msg("chrome dropped")
		return "", nil
	}
	return text, nil
}

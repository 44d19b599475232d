// Package llm talks to the rewrite and reply generation services.
//
// Remote responses come in several shapes. Everything is normalized here,
// callers only see RewriteResult, Chunk and Replies.
package llm

import (
	"context"
	"errors"

	"github.com/airenas/rt-caption-assistant/internal/domain"
)

var (
	// ErrStructure is returned when a rewrite can't be mapped back to the input lines
	ErrStructure = errors.New("wrong structure")
	// ErrEmpty is returned on a response without text
	ErrEmpty = errors.New("empty response")
)

// Reply routes
const (
	RoutePositive = "positive"
	RouteNegative = "negative"
)

// Routes are the reply variants requested from the service
var Routes = []string{RoutePositive, RouteNegative}

// RewriteKind tells which field of RewriteResult is set
type RewriteKind int

const (
	// KindText - one corrected text for the whole segment
	KindText RewriteKind = iota + 1
	// KindLines - corrected lines, one per input line
	KindLines
)

// RewriteResult is a normalized rewrite response
type RewriteResult struct {
	Kind  RewriteKind
	Text  string
	Lines []domain.Line
}

// Chunk is a streaming reply update. Text holds the whole route text so far
type Chunk struct {
	Route string
	Text  string
	Done  bool
}

// Replies is the final reply generation result
type Replies struct {
	Positive string `json:"positive"`
	Negative string `json:"negative"`
}

// Get returns text by route
func (r *Replies) Get(route string) string {
	if route == RouteNegative {
		return r.Negative
	}
	return r.Positive
}

// Rewriter corrects transcript segments
type Rewriter interface {
	RewriteSegment(ctx context.Context, lines []domain.Line) (*RewriteResult, error)
}

// Replier generates reply suggestions, onChunk is called in arrival order
type Replier interface {
	GenerateReplies(ctx context.Context, seed string, onChunk func(Chunk)) (*Replies, error)
}

package utils

import (
	"context"
)

type key int

const (
	// CtxContext context key for custom context object
	CtxContext key = iota
)

// CustomData is per request data carried in the context for logging
type CustomData struct {
	RequestID string
	Label     string
	Question  bool
}

func CustomContext(ctx context.Context) (context.Context, *CustomData) {
	res, ok := ctx.Value(CtxContext).(*CustomData)
	if ok {
		return ctx, res
	}
	res = &CustomData{}
	return context.WithValue(ctx, CtxContext, res), res
}

// RequestID returns the request id stored by CustomContext or ""
func RequestID(ctx context.Context) string {
	if res, ok := ctx.Value(CtxContext).(*CustomData); ok {
		return res.RequestID
	}
	return ""
}

// IsQuestion reports whether the request seed was labelled as a question
func IsQuestion(ctx context.Context) bool {
	if res, ok := ctx.Value(CtxContext).(*CustomData); ok {
		return res.Question
	}
	return false
}

package llm

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

const maxPendingFrame = 1 << 20

// DecodeReplyStream reads a reply response and calls onChunk on every route text change.
// Supported bodies: one-shot JSON ({positive,negative} or {suggestions:{...}}),
// NDJSON route frames ({route,text,done} or {route,delta}), SSE "data:" framing with [DONE],
// OpenAI and Ollama completion frames and plain text.
func DecodeReplyStream(r io.Reader, onChunk func(Chunk)) (*Replies, error) {
	a := newReplyAccumulator(onChunk)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxPendingFrame)
	var pending strings.Builder
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if after, ok := strings.CutPrefix(line, "data:"); ok {
			line = strings.TrimSpace(after)
		} else if pending.Len() == 0 && isSSEControl(line) {
			continue
		}
		if line == "[DONE]" {
			break
		}
		if pending.Len() == 0 && line == "" {
			continue
		}
		pending.WriteString(line)
		pending.WriteByte('\n')
		frame := pending.String()
		if !gjson.Valid(frame) {
			if pending.Len() > maxPendingFrame {
				return nil, fmt.Errorf("frame too long")
			}
			continue
		}
		pending.Reset()
		if err := a.frame(gjson.Parse(frame)); err != nil {
			return nil, err
		}
		a.update(false)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	if pending.Len() > 0 {
		if a.frames > 0 {
			return nil, fmt.Errorf("malformed frame %q", truncate(pending.String(), 100))
		}
		a.raw.WriteString(pending.String())
	}
	res := a.result()
	if res.Positive == "" && res.Negative == "" {
		return nil, ErrEmpty
	}
	a.update(true)
	return res, nil
}

func isSSEControl(line string) bool {
	return strings.HasPrefix(line, ":") || strings.HasPrefix(line, "event:") ||
		strings.HasPrefix(line, "id:") || strings.HasPrefix(line, "retry:")
}

type replyAccumulator struct {
	onChunk func(Chunk)
	frames  int
	// explicit route texts
	routes map[string]string
	done   map[string]bool
	// free model text, split by labels
	raw strings.Builder

	sent     map[string]string
	sentDone map[string]bool
}

func newReplyAccumulator(onChunk func(Chunk)) *replyAccumulator {
	if onChunk == nil {
		onChunk = func(Chunk) {}
	}
	return &replyAccumulator{onChunk: onChunk, routes: map[string]string{}, done: map[string]bool{},
		sent: map[string]string{}, sentDone: map[string]bool{}}
}

func (a *replyAccumulator) frame(v gjson.Result) error {
	a.frames++
	if !v.IsObject() {
		a.raw.WriteString(v.String())
		return nil
	}
	if s := v.Get("suggestions"); s.IsObject() {
		v = s
	}
	switch {
	case v.Get("error").Exists():
		msg := v.Get("error.message").String()
		if msg == "" {
			msg = v.Get("error").String()
		}
		return fmt.Errorf("remote error: %s", msg)
	case v.Get(RoutePositive).Exists() || v.Get(RouteNegative).Exists():
		a.routes[RoutePositive] = v.Get(RoutePositive).String()
		a.routes[RouteNegative] = v.Get(RouteNegative).String()
		a.done[RoutePositive], a.done[RouteNegative] = true, true
	case v.Get("route").Exists():
		r := RoutePositive
		if strings.EqualFold(v.Get("route").String(), RouteNegative) {
			r = RouteNegative
		}
		if t := v.Get("text"); t.Exists() {
			a.routes[r] = t.String()
		} else {
			a.routes[r] += v.Get("delta").String()
		}
		if v.Get("done").Bool() {
			a.done[r] = true
		}
	case v.Get("choices.0.delta.content").Exists():
		a.raw.WriteString(v.Get("choices.0.delta.content").String())
	case v.Get("choices.0.message.content").Exists():
		a.raw.WriteString(v.Get("choices.0.message.content").String())
	case v.Get("message.content").Exists():
		a.raw.WriteString(v.Get("message.content").String())
	case v.Get("response").Exists():
		a.raw.WriteString(v.Get("response").String())
	}
	return nil
}

func (a *replyAccumulator) view(final bool) map[string]string {
	if a.raw.Len() == 0 {
		res := map[string]string{}
		for k, v := range a.routes {
			res[k] = StripMeta(v)
		}
		return res
	}
	raw := strings.TrimSpace(a.raw.String())
	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "```") {
		if !final {
			return nil
		}
		if j := extractJSON(raw); gjson.Valid(j) {
			v := gjson.Parse(j)
			if s := v.Get("suggestions"); s.IsObject() {
				v = s
			}
			return map[string]string{RoutePositive: StripMeta(v.Get(RoutePositive).String()),
				RouteNegative: StripMeta(v.Get(RouteNegative).String())}
		}
	}
	return splitRoutes(StripMeta(raw))
}

func (a *replyAccumulator) update(final bool) {
	view := a.view(final)
	if view == nil {
		return
	}
	for _, r := range Routes {
		t := view[r]
		d := final || a.done[r]
		if t == "" && !d {
			continue
		}
		if t == a.sent[r] && d == a.sentDone[r] {
			continue
		}
		a.sent[r], a.sentDone[r] = t, d
		a.onChunk(Chunk{Route: r, Text: t, Done: d})
	}
}

func (a *replyAccumulator) result() *Replies {
	view := a.view(true)
	return &Replies{Positive: view[RoutePositive], Negative: view[RouteNegative]}
}

func extractJSON(s string) string {
	from, to := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if from < 0 || to < from {
		return s
	}
	return s[from : to+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

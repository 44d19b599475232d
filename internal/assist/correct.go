package assist

import (
	"context"
	"errors"
	"time"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/airenas/rt-caption-assistant/internal/domain"
	"github.com/airenas/rt-caption-assistant/internal/llm"
	"github.com/airenas/rt-caption-assistant/internal/norm"
	"github.com/airenas/rt-caption-assistant/internal/transcript"
	"github.com/airenas/rt-caption-assistant/internal/utils"
)

// CorrectReport summarizes one AutoCorrect run
type CorrectReport struct {
	Attempted int
	Fixed     int
	Failed    int
	TimedOut  bool
}

// AutoCorrect rewrites unfixed segments oldest first until none is left,
// the segment budget is spent or the timeout passes. Concurrent callers share one run
func (a *Assistant) AutoCorrect(ctx context.Context) (CorrectReport, error) {
	if a.rewriter == nil {
		return CorrectReport{}, ErrNoRewriter
	}
	res, err, shared := a.group.Do("correct", func() (interface{}, error) {
		return a.runCorrect(ctx), nil
	})
	if err != nil {
		return CorrectReport{}, err
	}
	if shared {
		goapp.Log.Debug().Msg("joined running correction")
	}
	return res.(CorrectReport), nil
}

func (a *Assistant) runCorrect(ctx context.Context) CorrectReport {
	defer utils.MeasureTime("runCorrect", time.Now())
	ctx, cancel := context.WithTimeout(ctx, a.cfg.CorrectTimeout)
	defer cancel()

	var res CorrectReport
	attempted := map[string]bool{}
	for a.cfg.CorrectMax <= 0 || res.Attempted < a.cfg.CorrectMax {
		if err := ctx.Err(); err != nil {
			res.TimedOut = errors.Is(err, context.DeadlineExceeded)
			break
		}
		seg := a.nextSegment(attempted)
		if seg == nil {
			break
		}
		attempted[segmentKey(seg)] = true
		res.Attempted++
		if _, err := a.correct(ctx, seg); err != nil {
			goapp.Log.Warn().Err(err).Int("lines", len(seg)).Msg("segment left unfixed")
			correctCounter.WithLabelValues("failed").Inc()
			res.Failed++
			continue
		}
		correctCounter.WithLabelValues("fixed").Inc()
		res.Fixed++
	}
	goapp.Log.Info().Int("attempted", res.Attempted).Int("fixed", res.Fixed).Int("failed", res.Failed).
		Bool("timeout", res.TimedOut).Msg("auto correct")
	return res
}

// nextSegment returns the oldest contiguous run of rewritable lines ending with terminal
// punctuation (or reaching the size limit) that has an unfixed line and was not tried yet
func (a *Assistant) nextSegment(attempted map[string]bool) []domain.Line {
	var seg []domain.Line
	for _, l := range a.tr.Lines() {
		if !a.rewritable(l) {
			seg = nil
			continue
		}
		if len(seg) > 0 && seg[0].Origin != l.Origin {
			seg = nil
		}
		seg = append(seg, l)
		if norm.EndsTerminal(l.Text) || len(seg) >= a.cfg.SegmentMaxLines {
			if a.hasUnfixed(seg) && !attempted[segmentKey(seg)] {
				return seg
			}
			seg = nil
		}
	}
	return nil
}

// tailSegment returns up to three last rewritable lines when the newest one is a finished sentence
func (a *Assistant) tailSegment() []domain.Line {
	lines := a.tr.Lines()
	if len(lines) > a.cfg.TailLines {
		lines = lines[len(lines)-a.cfg.TailLines:]
	}
	j := len(lines) - 1
	for ; j >= 0 && !a.rewritable(lines[j]); j-- {
	}
	if j < 0 || !norm.EndsTerminal(lines[j].Text) {
		return nil
	}
	start := j
	for start > 0 && j-start < 2 && a.rewritable(lines[start-1]) && lines[start-1].Origin == lines[j].Origin {
		start--
	}
	seg := lines[start : j+1]
	if !a.hasUnfixed(seg) {
		return nil
	}
	return cloneLines(seg)
}

// correctTail rewrites the tail segment, a stale segment is re-derived once.
// Returns corrected text when the model answered with plain text
func (a *Assistant) correctTail(ctx context.Context) (string, bool) {
	for i := 0; i < 2; i++ {
		seg := a.tailSegment()
		if seg == nil {
			return "", false
		}
		res, err := a.correct(ctx, seg)
		if errors.Is(err, transcript.ErrStaleSegment) {
			goapp.Log.Warn().Int("attempt", i+1).Msg("stale segment")
			continue
		}
		if err != nil {
			goapp.Log.Warn().Err(err).Msg("rewrite failed, using raw text")
			return "", false
		}
		if res.Kind == llm.KindText {
			return res.Text, true
		}
		return "", true
	}
	return "", false
}

// correct rewrites the segment and stores the result, the written lines are marked fixed
func (a *Assistant) correct(ctx context.Context, seg []domain.Line) (*llm.RewriteResult, error) {
	start := time.Now()
	res, err := a.rewriter.RewriteSegment(ctx, MergeFragments(seg))
	goapp.Log.Debug().Dur("took", time.Since(start)).Int("lines", len(seg)).Err(err).Msg("rewrite")
	if err != nil {
		return nil, err
	}
	if res.Kind == llm.KindLines {
		fresh, err := a.tr.ReplaceSegment(seg, res.Lines)
		if err != nil {
			return nil, err
		}
		for _, l := range fresh {
			a.tr.MarkFixed(l)
		}
		return res, nil
	}
	for _, l := range seg {
		a.tr.MarkFixed(l)
	}
	return res, nil
}

func (a *Assistant) hasUnfixed(lines []domain.Line) bool {
	for _, l := range lines {
		if !a.tr.IsFixed(l) {
			return true
		}
	}
	return false
}

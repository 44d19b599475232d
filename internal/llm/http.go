package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/cenkalti/backoff/v4"

	"github.com/airenas/rt-caption-assistant/internal/domain"
	"github.com/airenas/rt-caption-assistant/internal/utils"
)

const maxRewriteBody = 1 << 20

// HTTPConfig for HTTPClient
type HTTPConfig struct {
	RewriteURL string
	RepliesURL string
	Timeout    time.Duration
	Retry      RetryConfig
}

// HTTPClient calls rewrite and reply services over plain HTTP + JSON
type HTTPClient struct {
	httpclient *http.Client
	rewriteURL string
	repliesURL string
	timeout    time.Duration
	retry      RetryConfig
}

// NewHTTPClient creates client
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.RewriteURL == "" {
		return nil, fmt.Errorf("no rewrite URL")
	}
	if cfg.RepliesURL == "" {
		return nil, fmt.Errorf("no replies URL")
	}
	res := &HTTPClient{rewriteURL: cfg.RewriteURL, repliesURL: cfg.RepliesURL, timeout: cfg.Timeout, retry: cfg.Retry}
	if res.timeout <= 0 {
		res.timeout = 30 * time.Second
	}
	res.httpclient = &http.Client{Transport: newTransport()}
	goapp.Log.Info().Str("rewrite", cfg.RewriteURL).Str("replies", cfg.RepliesURL).Dur("timeout", res.timeout).
		Int("retries", cfg.Retry.Retries).Msg("LLM HTTP client")
	return res, nil
}

// RewriteSegment sends marker tagged lines and maps the answer back to them
func (c *HTTPClient) RewriteSegment(ctx context.Context, lines []domain.Line) (*RewriteResult, error) {
	defer utils.MeasureTime("rewrite", time.Now())
	tagged := FormatTagged(lines)
	return withRetry(ctx, "rewrite", c.retry, func() (*RewriteResult, error) {
		body, err := c.post(ctx, c.rewriteURL, rewriteRequest{Lines: tagged, Text: strings.Join(tagged, "\n")})
		if err != nil {
			return nil, err
		}
		res, err := NormalizeRewrite(body, lines)
		if err != nil {
			goapp.Log.Debug().Str("body", truncate(string(body), 300)).Msg("bad rewrite")
			return nil, err
		}
		return res, nil
	})
}

func (c *HTTPClient) post(ctx context.Context, url string, data any) ([]byte, error) {
	ctx, cancelF := context.WithTimeout(ctx, c.timeout)
	defer cancelF()
	resp, err := c.do(ctx, url, data)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, maxRewriteBody))
}

// GenerateReplies streams reply suggestions. A failure after the first chunk is not retried
func (c *HTTPClient) GenerateReplies(ctx context.Context, seed string, onChunk func(Chunk)) (*Replies, error) {
	defer utils.MeasureTime("replies", time.Now())
	if strings.TrimSpace(seed) == "" {
		return nil, ErrEmpty
	}
	started := false
	fwd := func(ch Chunk) {
		started = true
		if onChunk != nil {
			onChunk(ch)
		}
	}
	return withRetry(ctx, "replies", c.retry, func() (*Replies, error) {
		res, err := c.replies(ctx, seed, fwd)
		if err != nil && (started || errors.Is(err, context.Canceled)) {
			return nil, backoff.Permanent(err)
		}
		return res, err
	})
}

func (c *HTTPClient) replies(ctx context.Context, seed string, onChunk func(Chunk)) (*Replies, error) {
	ctx, cancelF := context.WithTimeout(ctx, c.timeout)
	defer cancelF()
	resp, err := c.do(ctx, c.repliesURL, repliesRequest{Text: seed, Routes: Routes, Stream: true,
		Question: utils.IsQuestion(ctx)})
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1000))
		_ = resp.Body.Close()
	}()
	return DecodeReplyStream(resp.Body, onChunk)
}

func (c *HTTPClient) do(ctx context.Context, url string, data any) (*http.Response, error) {
	b := new(bytes.Buffer)
	if err := json.NewEncoder(b).Encode(data); err != nil {
		return nil, backoff.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, b)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson, text/event-stream, application/json")
	resp, err := c.httpclient.Do(req)
	if err != nil {
		return nil, err
	}
	if err := statusError(resp, url); err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1000))
		_ = resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

type rewriteRequest struct {
	Lines []string `json:"lines"`
	Text  string   `json:"text"`
}

type repliesRequest struct {
	Text     string   `json:"text"`
	Routes   []string `json:"routes"`
	Stream   bool     `json:"stream"`
	Question bool     `json:"question,omitempty"`
}

func newTransport() http.RoundTripper {
	res := http.DefaultTransport.(*http.Transport).Clone()
	res.MaxConnsPerHost = 5
	res.MaxIdleConns = 2
	res.MaxIdleConnsPerHost = 2
	res.IdleConnTimeout = 90 * time.Second
	return res
}

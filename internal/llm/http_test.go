package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airenas/rt-caption-assistant/internal/utils"
)

func testRetry() RetryConfig {
	return RetryConfig{Retries: 2, Initial: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func newTestHTTPClient(t *testing.T, h http.HandlerFunc) (*HTTPClient, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	c, err := NewHTTPClient(HTTPConfig{RewriteURL: srv.URL + "/rewrite", RepliesURL: srv.URL + "/replies",
		Timeout: time.Second, Retry: testRetry()})
	require.NoError(t, err)
	return c, &calls
}

func TestNewHTTPClient_Fails(t *testing.T) {
	_, err := NewHTTPClient(HTTPConfig{RepliesURL: "http://r"})
	assert.Error(t, err)
	_, err = NewHTTPClient(HTTPConfig{RewriteURL: "http://r"})
	assert.Error(t, err)
}

func TestHTTPClient_RewriteSegment(t *testing.T) {
	var got rewriteRequest
	c, calls := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rewrite", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"lines":["[L1] Eu vou","[L2] chegar tarde."]}`))
	})
	res, err := c.RewriteSegment(context.Background(), testLines())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Equal(t, KindLines, res.Kind)
	assert.Equal(t, "chegar tarde.", res.Lines[1].Text)
	assert.Equal(t, []string{"[L1] Teams: Bob: eu vou", "[L2] Teams: Ana: chegar tarde"}, got.Lines)
	assert.Equal(t, "[L1] Teams: Bob: eu vou\n[L2] Teams: Ana: chegar tarde", got.Text)
}

func TestHTTPClient_RewriteSegmentRetries(t *testing.T) {
	tests := []struct {
		name      string
		responses []func(w http.ResponseWriter)
		wantCalls int32
		wantErr   error
		wantFail  bool
	}{
		{name: "recovers after 500", responses: []func(w http.ResponseWriter){status(500), body(`{"text":"Eu vou chegar."}`)},
			wantCalls: 2},
		{name: "recovers after 429", responses: []func(w http.ResponseWriter){status(429), body(`{"text":"Eu vou chegar."}`)},
			wantCalls: 2},
		{name: "structure retried", responses: []func(w http.ResponseWriter){body(`{"lines":["one"]}`), body(`{"text":"ok"}`)},
			wantCalls: 2},
		{name: "exhausted", responses: []func(w http.ResponseWriter){status(500), status(502), status(503), body(`{"text":"x"}`)},
			wantCalls: 3, wantFail: true},
		{name: "structure exhausted", responses: []func(w http.ResponseWriter){body(`{"lines":[]}`)},
			wantCalls: 3, wantErr: ErrStructure},
		{name: "client error", responses: []func(w http.ResponseWriter){status(400)}, wantCalls: 1, wantFail: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n int32
			c, calls := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
				i := int(atomic.AddInt32(&n, 1)) - 1
				if i >= len(tt.responses) {
					i = len(tt.responses) - 1
				}
				tt.responses[i](w)
			})
			res, err := c.RewriteSegment(context.Background(), testLines())
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(calls))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			if tt.wantFail {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, res)
		})
	}
}

func TestHTTPClient_GenerateReplies(t *testing.T) {
	c, calls := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req repliesRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "Can you come?", req.Text)
		assert.Equal(t, []string{RoutePositive, RouteNegative}, req.Routes)
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"route":"positive","text":"Yes"}`)
		fmt.Fprintln(w, `{"route":"negative","text":"No","done":true}`)
	})
	var chunks []Chunk
	res, err := c.GenerateReplies(context.Background(), "Can you come?", func(ch Chunk) { chunks = append(chunks, ch) })
	require.NoError(t, err)
	assert.Equal(t, &Replies{Positive: "Yes", Negative: "No"}, res)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Len(t, chunks, 3)
}

func TestHTTPClient_GenerateRepliesRetries(t *testing.T) {
	var n int32
	c, calls := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&n, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"positive":"Yes","negative":"No"}`))
	})
	res, err := c.GenerateReplies(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "Yes", res.Positive)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestHTTPClient_GenerateRepliesNoRetryAfterChunk(t *testing.T) {
	c, calls := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"route":"positive","text":"Yes"}`)
		fmt.Fprintln(w, `{"route":`)
	})
	var chunks []Chunk
	_, err := c.GenerateReplies(context.Background(), "hi", func(ch Chunk) { chunks = append(chunks, ch) })
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Len(t, chunks, 1)
}

func TestHTTPClient_GenerateRepliesEmptySeed(t *testing.T) {
	c, calls := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := c.GenerateReplies(context.Background(), "  ", nil)
	assert.ErrorIs(t, err, ErrEmpty)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func status(code int) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.WriteHeader(code)
	}
}

func body(s string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		_, _ = w.Write([]byte(s))
	}
}

func TestHTTPClient_GenerateRepliesQuestion(t *testing.T) {
	var got []bool
	c, _ := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req repliesRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		got = append(got, req.Question)
		fmt.Fprintln(w, `{"route":"positive","text":"Yes","done":true}`)
	})
	ctx, data := utils.CustomContext(context.Background())
	data.Question = true
	_, err := c.GenerateReplies(ctx, "Can you come?", nil)
	require.NoError(t, err)
	_, err = c.GenerateReplies(context.Background(), "I am here.", nil)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, got)
}

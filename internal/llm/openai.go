package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/cenkalti/backoff/v4"
	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/airenas/rt-caption-assistant/internal/domain"
	"github.com/airenas/rt-caption-assistant/internal/utils"
)

const (
	rewritePrompt = "You fix speech recognition errors in live meeting captions. " +
		"Every input line starts with a marker like [L1] followed by 'Origin: Speaker: text'. " +
		"Return exactly the same number of lines, each starting with its marker followed by the corrected text only. " +
		"Fix words, punctuation and casing, join broken words, keep the language, never translate, never add comments."
	repliesPrompt = "You help a meeting participant to answer. Read the recent conversation and write two short replies " +
		"in the language of the conversation, in this format:\n" +
		"Positive: <a reply that agrees or accepts>\nNegative: <a reply that declines or disagrees>\n" +
		"Write nothing else."
	questionHint = "\nThe last message is a question to the participant, both replies must answer it."
)

// OpenAIConfig for OpenAIClient
type OpenAIConfig struct {
	Key     string
	Model   string
	URL     string
	Timeout time.Duration
	Retry   RetryConfig
}

// OpenAIClient uses an OpenAI compatible chat completion API
type OpenAIClient struct {
	client oai.Client
	model  string
	retry  RetryConfig
}

// NewOpenAIClient creates client
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("no openai key")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("no openai model")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.Key), option.WithMaxRetries(0)}
	if cfg.URL != "" {
		opts = append(opts, option.WithBaseURL(cfg.URL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout, Transport: newTransport()}))
	}
	goapp.Log.Info().Str("model", cfg.Model).Str("url", cfg.URL).Dur("timeout", cfg.Timeout).Msg("LLM OpenAI client")
	return &OpenAIClient{client: oai.NewClient(opts...), model: cfg.Model, retry: cfg.Retry}, nil
}

// RewriteSegment implements Rewriter
func (c *OpenAIClient) RewriteSegment(ctx context.Context, lines []domain.Line) (*RewriteResult, error) {
	defer utils.MeasureTime("rewrite", time.Now())
	params := c.params(rewritePrompt, strings.Join(FormatTagged(lines), "\n"))
	return withRetry(ctx, "rewrite", c.retry, func() (*RewriteResult, error) {
		resp, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return nil, classify(err)
		}
		if len(resp.Choices) == 0 {
			return nil, ErrEmpty
		}
		return NormalizeRewrite([]byte(resp.Choices[0].Message.Content), lines)
	})
}

// GenerateReplies implements Replier
func (c *OpenAIClient) GenerateReplies(ctx context.Context, seed string, onChunk func(Chunk)) (*Replies, error) {
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
	prompt := repliesPrompt
	if utils.IsQuestion(ctx) {
		prompt += questionHint
	}
	params := c.params(prompt, seed)
	return withRetry(ctx, "replies", c.retry, func() (*Replies, error) {
		res, err := c.stream(ctx, params, fwd)
		if err != nil && started {
			return nil, backoff.Permanent(err)
		}
		return res, err
	})
}

func (c *OpenAIClient) stream(ctx context.Context, params oai.ChatCompletionNewParams, onChunk func(Chunk)) (*Replies, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()
	a := newReplyAccumulator(onChunk)
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		a.raw.WriteString(chunk.Choices[0].Delta.Content)
		a.update(false)
	}
	if err := stream.Err(); err != nil {
		return nil, classify(err)
	}
	res := a.result()
	if res.Positive == "" && res.Negative == "" {
		return nil, ErrEmpty
	}
	a.update(true)
	return res, nil
}

func (c *OpenAIClient) params(system, user string) oai.ChatCompletionNewParams {
	return oai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(system),
			oai.UserMessage(user),
		},
		Temperature: oai.Float(0.2),
	}
}

func classify(err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 &&
		apiErr.StatusCode != http.StatusTooManyRequests {
		return backoff.Permanent(err)
	}
	return err
}

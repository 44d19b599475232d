package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/cenkalti/backoff/v4"

	"github.com/airenas/rt-caption-assistant/internal/utils"
)

// RetryConfig bounds remote call retries
type RetryConfig struct {
	// Retries is the number of extra attempts
	Retries  int
	Initial  time.Duration
	MaxDelay time.Duration
}

// DefaultRetryConfig returns two extra attempts with exponential jittered delays
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Retries: 2, Initial: 400 * time.Millisecond, MaxDelay: 4 * time.Second}
}

func (c RetryConfig) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.Initial
	b.MaxInterval = c.MaxDelay
	b.RandomizationFactor = 0.5
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	retries := c.Retries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

func withRetry[T any](ctx context.Context, name string, cfg RetryConfig, op func() (T, error)) (T, error) {
	attempt := 0
	return backoff.RetryNotifyWithData(func() (T, error) {
		attempt++
		callCounter.WithLabelValues(name).Inc()
		res, err := op()
		if err != nil {
			failCounter.WithLabelValues(name).Inc()
		}
		return res, err
	}, cfg.backOff(ctx), func(err error, d time.Duration) {
		goapp.Log.Warn().Err(err).Str("call", name).Str("request", utils.RequestID(ctx)).Int("attempt", attempt).
			Dur("wait", d).Msg("retry")
	})
}

// statusError classifies a failed HTTP response, client errors except 429 are not retried
func statusError(resp *http.Response, url string) error {
	err := goapp.ValidateHTTPResp(resp, 100)
	if err == nil {
		return nil
	}
	err = fmt.Errorf("can't invoke '%s': %w", url, err)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return backoff.Permanent(err)
	}
	return err
}

package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxnote/voxnote/internal/observe"
	"github.com/voxnote/voxnote/pkg/provider/transcribe"
)

const (
	// defaultMaxAttempts is the total call budget per chunk under rate
	// limiting, including the first attempt.
	defaultMaxAttempts = 3

	// defaultInitialBackoff is the delay before the second attempt; each
	// further delay doubles (2s, 4s, 8s, …).
	defaultInitialBackoff = 2 * time.Second
)

// RetryOption is a functional option for configuring a [Retrier].
type RetryOption func(*Retrier)

// WithMaxAttempts sets the total attempt budget. Default: 3.
func WithMaxAttempts(n int) RetryOption {
	return func(r *Retrier) { r.maxAttempts = n }
}

// WithInitialBackoff sets the delay before the second attempt. Default: 2s.
func WithInitialBackoff(d time.Duration) RetryOption {
	return func(r *Retrier) { r.initialBackoff = d }
}

// WithSleep overrides the backoff sleep. Primarily used in tests to record
// delays without waiting for them.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) RetryOption {
	return func(r *Retrier) { r.sleep = fn }
}

// WithRetryMetrics attaches a metrics sink for retry counting. When nil (the
// default), no metrics are recorded.
func WithRetryMetrics(m *observe.Metrics) RetryOption {
	return func(r *Retrier) { r.metrics = m }
}

// Retrier wraps a transcription provider with the rate-limit retry policy.
// Only [transcribe.KindRateLimited] failures are retried; blocked and empty
// responses are content-caused and surface immediately. Backoff sleeps happen
// in this wrapper, never while any shared handle lock is held.
//
// Retrier is safe for concurrent use.
type Retrier struct {
	provider       transcribe.Provider
	maxAttempts    int
	initialBackoff time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
	metrics        *observe.Metrics
}

// Ensure Retrier itself satisfies the provider interface so it composes with
// the fallback group.
var _ transcribe.Provider = (*Retrier)(nil)

// NewRetrier wraps provider with the default 3-attempt / 2s-initial-backoff
// policy.
func NewRetrier(provider transcribe.Provider, opts ...RetryOption) *Retrier {
	r := &Retrier{
		provider:       provider,
		maxAttempts:    defaultMaxAttempts,
		initialBackoff: defaultInitialBackoff,
		sleep:          sleepCtx,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Name implements transcribe.Provider.
func (r *Retrier) Name() string { return r.provider.Name() }

// Transcribe calls the wrapped provider, retrying rate-limit failures with
// exponential backoff until the attempt budget is exhausted. The final
// rate-limit error is returned as-is so callers still see
// [transcribe.KindRateLimited].
func (r *Retrier) Transcribe(ctx context.Context, req transcribe.Request) (string, error) {
	backoff := r.initialBackoff
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		text, err := r.provider.Transcribe(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !transcribe.IsRetryable(err) {
			return "", err
		}
		if attempt == r.maxAttempts {
			break
		}

		slog.Warn("transcription rate limited, backing off",
			"provider", r.provider.Name(),
			"attempt", attempt,
			"backoff", backoff,
		)
		if r.metrics != nil {
			r.metrics.RecordRetry(ctx, r.provider.Name())
		}
		if err := r.sleep(ctx, backoff); err != nil {
			return "", transcribe.NewError(transcribe.KindTransport,
				"cancelled during backoff", err)
		}
		backoff *= 2
	}

	return "", lastErr
}

// sleepCtx blocks for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

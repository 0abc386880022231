package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxnote/voxnote/pkg/provider/transcribe"
	transcribemock "github.com/voxnote/voxnote/pkg/provider/transcribe/mock"
)

// recordSleeps returns a sleep function that records requested delays without
// waiting.
func recordSleeps(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func rateLimited() error {
	return transcribe.NewError(transcribe.KindRateLimited, "quota exceeded", nil)
}

func TestRetrier_ExhaustsBudgetWithExponentialBackoff(t *testing.T) {
	provider := &transcribemock.Provider{Err: rateLimited()}
	var delays []time.Duration
	r := NewRetrier(provider, WithSleep(recordSleeps(&delays)))

	_, err := r.Transcribe(context.Background(), transcribe.Request{})
	kind, ok := transcribe.AsKind(err)
	if !ok || kind != transcribe.KindRateLimited {
		t.Fatalf("err = %v, want rate-limited kind surfaced after exhaustion", err)
	}
	if provider.CallCount() != 3 {
		t.Errorf("provider called %d times, want 3", provider.CallCount())
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("slept %d times (%v), want %v", len(delays), delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay %d = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestRetrier_SucceedsMidBudget(t *testing.T) {
	provider := &transcribemock.Provider{
		Results: []transcribemock.Result{
			{Err: rateLimited()},
			{Text: "second time lucky"},
		},
	}
	var delays []time.Duration
	r := NewRetrier(provider, WithSleep(recordSleeps(&delays)))

	text, err := r.Transcribe(context.Background(), transcribe.Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "second time lucky" {
		t.Errorf("text = %q", text)
	}
	if provider.CallCount() != 2 {
		t.Errorf("provider called %d times, want 2", provider.CallCount())
	}
	if len(delays) != 1 || delays[0] != 2*time.Second {
		t.Errorf("delays = %v, want single 2s backoff", delays)
	}
}

func TestRetrier_NonRetryableFailsFast(t *testing.T) {
	for _, kind := range []transcribe.Kind{
		transcribe.KindBlocked,
		transcribe.KindEmpty,
		transcribe.KindTransport,
	} {
		t.Run(kind.String(), func(t *testing.T) {
			provider := &transcribemock.Provider{
				Err: transcribe.NewError(kind, "nope", nil),
			}
			var delays []time.Duration
			r := NewRetrier(provider, WithSleep(recordSleeps(&delays)))

			_, err := r.Transcribe(context.Background(), transcribe.Request{})
			got, ok := transcribe.AsKind(err)
			if !ok || got != kind {
				t.Fatalf("err = %v, want kind %v preserved", err, kind)
			}
			if provider.CallCount() != 1 {
				t.Errorf("provider called %d times, want 1", provider.CallCount())
			}
			if len(delays) != 0 {
				t.Errorf("slept %v, want no backoff for non-retryable failures", delays)
			}
		})
	}
}

func TestRetrier_CancelDuringBackoff(t *testing.T) {
	provider := &transcribemock.Provider{Err: rateLimited()}
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRetrier(provider, WithSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	_, err := r.Transcribe(ctx, transcribe.Request{})
	kind, ok := transcribe.AsKind(err)
	if !ok || kind != transcribe.KindTransport {
		t.Fatalf("err = %v, want transport kind for cancelled backoff", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want wrapped context.Canceled", err)
	}
	if provider.CallCount() != 1 {
		t.Errorf("provider called %d times, want 1", provider.CallCount())
	}
}

func TestRetrier_CustomAttemptBudget(t *testing.T) {
	provider := &transcribemock.Provider{Err: rateLimited()}
	var delays []time.Duration
	r := NewRetrier(provider,
		WithMaxAttempts(5),
		WithInitialBackoff(time.Second),
		WithSleep(recordSleeps(&delays)),
	)

	if _, err := r.Transcribe(context.Background(), transcribe.Request{}); err == nil {
		t.Fatal("expected error after exhaustion")
	}
	if provider.CallCount() != 5 {
		t.Errorf("provider called %d times, want 5", provider.CallCount())
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay %d = %v, want %v", i, delays[i], want[i])
		}
	}
}

package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// Wraps outbound provider calls with bounded exponential backoff and jitter.
//
// A single Retrier is shared by all provider clients; it holds no per-call state and is safe for concurrent use.
type Retrier struct {
	// Number of retries after the first attempt. Total attempts is MaxRetries+1.
	MaxRetries int
	BaseDelay  time.Duration
	// Upper bound on the exponential term (not including jitter)
	MaxDelay time.Duration
	// Uniform jitter in [0, MaxJitter) added to every delay
	MaxJitter time.Duration
	// Deadline for each individual attempt. Zero means the parent context is the only deadline.
	AttemptTimeout time.Duration
	// Optional client-side rate limit, waited on before every attempt
	Limiter *rate.Limiter
	Logger  *slog.Logger

	// Injectable for tests
	Sleep  func(ctx context.Context, d time.Duration) error
	Jitter func(max time.Duration) time.Duration
}

func DefaultRetrier() *Retrier {
	return &Retrier{
		MaxRetries:     2,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       30 * time.Second,
		MaxJitter:      250 * time.Millisecond,
		AttemptTimeout: 25 * time.Second,
		Logger:         slog.Default(),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max)))
}

// Delay before retry number attempt (0-based): BaseDelay*2^attempt, capped at MaxDelay, plus jitter.
func (r *Retrier) Delay(attempt int) time.Duration {
	maxDelay := r.MaxDelay
	if maxDelay <= 0 {
		maxDelay = time.Hour
	}
	d := retryablehttp.DefaultBackoff(r.BaseDelay, maxDelay, attempt, nil)
	jitter := r.Jitter
	if jitter == nil {
		jitter = randomJitter
	}
	return d + jitter(r.MaxJitter)
}

func (r *Retrier) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Executes fn, retrying transient failures. The final error (if any) is always a *ProviderError.
func Call[T any](ctx context.Context, r *Retrier, provider string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if r == nil {
		r = DefaultRetrier()
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	maxRetries := max(r.MaxRetries, 0)
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if r.Limiter != nil {
			if err := r.Limiter.Wait(ctx); err != nil {
				lastErr = err
				break
			}
		}
		attempts++
		val, err := callAttempt(ctx, r.AttemptTimeout, fn)
		if err == nil {
			return val, nil
		}
		lastErr = err

		var pe *ProviderError
		if errors.As(err, &pe) {
			// already normalized by an inner layer
			break
		}
		if attempt == maxRetries || !IsRetryable(ctx, err) {
			break
		}
		delay := r.Delay(attempt)
		providerRetries.WithLabelValues(provider).Inc()
		r.logger().Warn("provider call failed, retrying", "provider", provider, "attempt", attempts, "delay", delay, "err", err)
		if err := sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	var pe *ProviderError
	if errors.As(lastErr, &pe) {
		providerErrors.WithLabelValues(provider, string(pe.Kind)).Inc()
		return zero, lastErr
	}
	pe = &ProviderError{
		Kind:     classify(lastErr),
		Provider: provider,
		Attempts: attempts,
		Err:      lastErr,
	}
	providerErrors.WithLabelValues(provider, string(pe.Kind)).Inc()
	return zero, pe
}

func callAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(actx)
}

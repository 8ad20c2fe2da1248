package earthengine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// BackoffConfig controls exponential backoff behaviour.
// MaxRetries of zero means a single attempt.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// ResilienceConfig bundles the client-side protections around compute calls.
type ResilienceConfig struct {
	Backoff BackoffConfig
	Limiter *rate.Limiter
}

var (
	errCircuitOpen   = errors.New("circuit breaker open")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// callWithResilience runs call behind the rate limiter and circuit breaker,
// retrying with exponential backoff while retryable reports true.
func callWithResilience[T any](
	ctx context.Context,
	cfg ResilienceConfig,
	cb *gobreaker.CircuitBreaker,
	retryable func(error) bool,
	call func(ctx context.Context) (T, error),
) (T, error) {
	var zero T
	if cfg.Backoff.MaxRetries < 0 || (cfg.Backoff.MaxRetries > 0 && cfg.Backoff.InitialInterval <= 0) {
		return zero, errInvalidConfig
	}

	var attempt int
	for {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if cfg.Limiter != nil {
			if err := cfg.Limiter.Wait(ctx); err != nil {
				return zero, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		result, err := cb.Execute(func() (interface{}, error) {
			return call(ctx)
		})
		if err == nil {
			if result == nil {
				return zero, nil
			}
			v, ok := result.(T)
			if !ok {
				return zero, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return v, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		if attempt >= cfg.Backoff.MaxRetries || (retryable != nil && !retryable(err)) {
			return zero, err
		}

		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}

package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davidbz/codeassist/internal/observability"
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryCoordinator makes a Transport resilient to transient failures.
type RetryCoordinator struct {
	sleep SleepFunc
}

// NewRetryCoordinator creates a coordinator that waits on real timers.
func NewRetryCoordinator() *RetryCoordinator {
	return NewRetryCoordinatorWithSleep(sleepContext)
}

// NewRetryCoordinatorWithSleep creates a coordinator with a custom wait function.
func NewRetryCoordinatorWithSleep(sleep SleepFunc) *RetryCoordinator {
	if sleep == nil {
		sleep = sleepContext
	}
	return &RetryCoordinator{
		sleep: sleep,
	}
}

// Execute invokes transport until it succeeds, fails fatally, or policy.MaxAttempts
// calls have been made. Only one call is in flight at a time.
func (c *RetryCoordinator) Execute(
	ctx context.Context,
	transport Transport,
	req *CompletionRequest,
	policy RetryPolicy,
) (string, error) {
	if transport == nil {
		return "", NewCompletionError(KindNotConfigured, 0, nil)
	}

	if req == nil {
		return "", NewInvalidRequestError(errors.New("request cannot be nil"))
	}

	if err := policy.Validate(); err != nil {
		return "", NewInvalidRequestError(fmt.Errorf("invalid retry policy: %w", err))
	}

	logger := observability.FromContext(ctx)

	for attempt := 0; ; attempt++ {
		text, err := c.attempt(ctx, transport, req)
		if err == nil {
			if attempt > 0 {
				logger.Info("completion succeeded after retry",
					observability.Int("attempt", attempt+1))
			}
			return text, nil
		}

		var completionErr *CompletionError
		if !errors.As(err, &completionErr) {
			// Uncategorized failures are not retried.
			logger.Warn("uncategorized transport error, not retrying",
				observability.Int("attempt", attempt+1),
				observability.Error(err))
			return "", err
		}

		if !completionErr.Kind.Retryable() {
			logger.Warn("non-retryable completion error",
				observability.String("kind", completionErr.Kind.String()),
				observability.Int("attempt", attempt+1),
				observability.Error(err))
			return "", err
		}

		if attempt >= policy.MaxAttempts-1 {
			logger.Error("completion retries exhausted",
				observability.Int("attempts", attempt+1),
				observability.Error(err))
			return "", &CompletionError{
				Kind:       KindRetriesExhausted,
				StatusCode: completionErr.StatusCode,
				Attempts:   attempt + 1,
				Err:        err,
			}
		}

		delay := policy.Backoff(attempt)
		logger.Warn("retryable completion error, backing off",
			observability.String("kind", completionErr.Kind.String()),
			observability.Int("attempt", attempt+1),
			observability.Duration("delay", delay),
			observability.Error(err))

		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return "", fmt.Errorf("retry backoff interrupted: %w", sleepErr)
		}
	}
}

func (c *RetryCoordinator) attempt(ctx context.Context, transport Transport, req *CompletionRequest) (string, error) {
	if req.Stream {
		return transport.SendStreamed(ctx, req)
	}
	return transport.Send(ctx, req)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package rpcpool

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/chainwatch/evmcrawler/internal/config"
	"github.com/chainwatch/evmcrawler/internal/metrics"
)

// calculateBackoff computes the exponential backoff duration for attempt,
// with +/-25% jitter so a burst of endpoints retrying in lockstep does not
// re-collide on the next attempt.
func calculateBackoff(attempt int, cfg config.RetryConfig) time.Duration {
	if attempt <= 1 {
		return 0
	}

	backoff := float64(cfg.InitialBackoff.Duration) * math.Pow(cfg.BackoffMultiplier, float64(attempt-2))
	if backoff > float64(cfg.MaxBackoff.Duration) {
		backoff = float64(cfg.MaxBackoff.Duration)
	}

	jitterRange := backoff * 0.25
	jitter := (rand.Float64() * 2 * jitterRange) - jitterRange
	backoff += jitter
	if backoff < 0 {
		backoff = 0
	}

	return time.Duration(backoff)
}

// retryWithBackoff retries fn against a single endpoint up to cfg.MaxAttempts
// times, backing off between attempts, and returns immediately on a
// non-recoverable error so the pool can fail over without waiting out a
// backoff that will not help.
func retryWithBackoff(ctx context.Context, cfg config.RetryConfig, operation string, fn func() error) error {
	var lastErr error
	start := time.Now()

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled before attempt %d: %w", attempt, err)
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !recoverableError(err) {
			return fmt.Errorf("non-recoverable error on attempt %d/%d: %w", attempt, cfg.MaxAttempts, err)
		}

		if attempt >= cfg.MaxAttempts {
			break
		}

		if wait := calculateBackoff(attempt, cfg); wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during backoff (attempt %d/%d): %w", attempt, cfg.MaxAttempts, ctx.Err())
			}
		}

		metrics.RPCRetryInc(operation)
	}

	return fmt.Errorf("all %d attempts failed after %v: %w", cfg.MaxAttempts, time.Since(start), lastErr)
}

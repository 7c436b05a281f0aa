package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	errs "igmanager/pkg/errors"
	"igmanager/pkg/logger"
)

// Operation is a function that may need retrying.
type Operation func() error

// Backoff computes the delay before a given retry attempt.
type Backoff interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff grows delays by Multiplier per attempt, capped at
// MaxDelay, with +/- JitterFactor randomness.
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// DefaultBackoff returns the stock exponential backoff.
func DefaultBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	d := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if d > float64(eb.MaxDelay) {
		d = float64(eb.MaxDelay)
	}
	if eb.JitterFactor > 0 {
		jitter := d * eb.JitterFactor
		d += (rand.Float64() * 2 * jitter) - jitter
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Config holds retry behaviour.
type Config struct {
	// MaxAttempts bounds the total attempts, including the first.
	MaxAttempts int
	Backoff     Backoff
	// RetryIf decides whether an error is worth another attempt.
	RetryIf func(error) bool
	Logger  logger.Logger
}

// DefaultConfig retries transient engine errors up to three times.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     DefaultBackoff(),
		RetryIf:     errs.IsRetryable,
		Logger:      logger.GetLogger(),
	}
}

// Do executes op with retries. The wait between attempts is cancellable via
// ctx; cancellation propagates immediately.
func Do(ctx context.Context, op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		if cfg.MaxAttempts > 0 && attempt > cfg.MaxAttempts {
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
		}

		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if cfg.RetryIf != nil && !cfg.RetryIf(err) {
			return err
		}

		d := cfg.Backoff.NextDelay(attempt)
		if cfg.Logger != nil {
			cfg.Logger.WithFields(map[string]interface{}{
				"attempt":  attempt,
				"delay_ms": d.Milliseconds(),
				"error":    err.Error(),
			}).Warn("retrying operation")
		}

		if err := wait(ctx, d); err != nil {
			return err
		}
	}
}

func wait(ctx context.Context, d time.Duration) error {
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

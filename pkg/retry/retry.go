package retry

import (
	"context"
	"math"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// Retryable decides whether an error is worth another attempt.
	Retryable func(error) bool
}

func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  50 * time.Millisecond,
		MaxDelay:   2 * time.Second,
		Multiplier: 2.0,
		Retryable:  func(error) bool { return true },
	}
}

// Do runs fn with exponential backoff until it succeeds, returns a
// non-retryable error, the attempts run out, or ctx is cancelled.
func Do(ctx context.Context, config Config, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !config.Retryable(err) {
			return err
		}
		if attempt == config.MaxRetries {
			break
		}

		delay := float64(config.BaseDelay) * math.Pow(config.Multiplier, float64(attempt))
		if delay > float64(config.MaxDelay) {
			delay = float64(config.MaxDelay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(delay)):
		}
	}

	return lastErr
}

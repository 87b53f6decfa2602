package connector

import (
	"context"
	"time"
)

const defaultRetryDelay = time.Second

// retryConnect calls connectFn up to cfg.MaxRetries times, sleeping between
// attempts with exponential backoff capped at cfg.MaxDelay. The last error is
// returned unchanged.
func retryConnect(ctx context.Context, cfg *RetryConfig, connectFn func(context.Context) error) error {
	delay := cfg.BaseDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	factor := cfg.Backoff
	if factor < 1 {
		factor = 2
	}
	attempts := max(cfg.MaxRetries, 1)

	var err error
	for i := 0; i < attempts; i++ {
		if err = connectFn(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * factor)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return err
}

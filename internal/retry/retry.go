// Package retry wraps fallible extraction calls with a fixed attempt
// ceiling and a fixed inter-attempt delay. An exhausted budget is a
// terminal failure for that one lookup only; the surrounding run moves on
// to the next item.
package retry

import (
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultMaxAttempts is the observed ceiling the overlay needs on bad
	// days before a lookup either succeeds or is genuinely broken.
	DefaultMaxAttempts = 8
	DefaultDelay       = 20 * time.Second
)

type Orchestrator struct {
	maxAttempts int
	delay       time.Duration
	logger      *slog.Logger
	sleep       func(time.Duration)
}

func New(maxAttempts int, delay time.Duration, logger *slog.Logger) *Orchestrator {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Orchestrator{
		maxAttempts: maxAttempts,
		delay:       delay,
		logger:      logger.With("component", "retry"),
		sleep:       time.Sleep,
	}
}

// Do runs op until it succeeds or the attempt ceiling is hit. The returned
// error wraps the last failure.
func (o *Orchestrator) Do(name string, op func() error) error {
	var lastErr error

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if attempt > 1 {
			o.sleep(o.delay)
		}

		if err := op(); err != nil {
			lastErr = err
			o.logger.Warn("attempt failed",
				"operation", name,
				"attempt", attempt,
				"max_attempts", o.maxAttempts,
				"error", err,
			)
			continue
		}
		return nil
	}

	o.logger.Error("retries exhausted", "operation", name, "attempts", o.maxAttempts)
	return fmt.Errorf("%s failed after %d attempts: %w", name, o.maxAttempts, lastErr)
}

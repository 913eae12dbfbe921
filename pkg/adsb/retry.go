package adsb

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/unklstewy/whats-overhead/pkg/coordinates"
)

// RetryConfig configures retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default: 3)
	MaxRetries int

	// InitialDelay is the initial backoff delay (default: 1 second)
	InitialDelay time.Duration

	// MaxDelay is the maximum backoff delay (default: 60 seconds)
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier (default: 2.0 for exponential)
	Multiplier float64

	// RespectRetryAfter uses Retry-After header if available (default: true)
	RespectRetryAfter bool

	// Logger receives rate limit details; nil disables logging
	Logger *zap.Logger
}

// DefaultRetryConfig returns sensible defaults for retry behavior.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialDelay:      time.Second,
		MaxDelay:          60 * time.Second,
		Multiplier:        2.0,
		RespectRetryAfter: true,
	}
}

// RetryableFunc is a function that can be retried.
// It should return an error if the operation failed.
type RetryableFunc func() error

// RetryWithBackoff executes a function with exponential backoff retry logic.
// It handles rate limit errors (HTTP 429) specially by respecting Retry-After headers.
//
// Example usage:
//
//	err := RetryWithBackoff(ctx, DefaultRetryConfig(), func() error {
//	    _, err := client.GetReports(ctx, center, radius)
//	    return err
//	})
func RetryWithBackoff(ctx context.Context, cfg RetryConfig, fn RetryableFunc) error {
	_, err := RetryWithBackoffResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithBackoffResult executes a function with exponential backoff and returns a result.
// This is useful when the function returns data along with an error.
//
// Example usage:
//
//	reports, err := RetryWithBackoffResult(ctx, DefaultRetryConfig(), func() ([]Report, error) {
//	    return client.GetReports(ctx, center, radius)
//	})
func RetryWithBackoffResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var result T
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		// First attempt (no delay)
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return result, fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		res, err := fn()
		if err == nil {
			return res, nil
		}

		result = res
		lastErr = err

		// Last attempt - don't calculate next delay
		if attempt == cfg.MaxRetries {
			break
		}

		// delay = min(InitialDelay * Multiplier^attempt, MaxDelay)
		nextDelay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt)))
		if nextDelay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		} else {
			delay = nextDelay
		}

		// A server-supplied Retry-After overrides the computed backoff
		if rle, ok := IsRateLimitError(err); ok {
			if cfg.RespectRetryAfter && rle.RetryAfter > 0 {
				delay = rle.RetryAfter
			}
			if rle.Headers.Remaining >= 0 {
				logger.Warn("rate limit hit",
					zap.Int("remaining", rle.Headers.Remaining),
					zap.Int("limit", rle.Headers.Limit),
					zap.Time("reset", rle.Headers.Reset))
			}
		}

		logger.Debug("retrying after error",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
	}

	return result, fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, lastErr)
}

// RetryingSource wraps a DataSource and retries failed fetches with backoff.
type RetryingSource struct {
	source DataSource
	cfg    RetryConfig
}

// NewRetryingSource creates a retrying decorator around source.
func NewRetryingSource(source DataSource, cfg RetryConfig) *RetryingSource {
	return &RetryingSource{source: source, cfg: cfg}
}

// GetReports fetches reports, retrying up to the configured number of times.
func (s *RetryingSource) GetReports(ctx context.Context, center coordinates.Coordinate, radiusNM float64) ([]Report, error) {
	return RetryWithBackoffResult(ctx, s.cfg, func() ([]Report, error) {
		return s.source.GetReports(ctx, center, radiusNM)
	})
}

// Close closes the wrapped source.
func (s *RetryingSource) Close() error {
	return s.source.Close()
}

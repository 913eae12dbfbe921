package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/unklstewy/whats-overhead/pkg/config"
)

// ConnectWithRetry attempts to connect to the database with exponential backoff.
// This provides resilience against a database that is still starting up.
//
// Parameters:
//   - ctx: Cancels the wait between attempts
//   - cfg: Database configuration
//   - maxRetries: Maximum number of connection attempts (0 = until ctx is done)
//   - initialDelay: Initial wait time between attempts
func ConnectWithRetry(ctx context.Context, cfg config.DatabaseConfig, maxRetries int, initialDelay time.Duration, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	delay := initialDelay
	attempt := 0

	for {
		attempt++
		logger.Debug("database connection attempt", zap.Int("attempt", attempt), zap.String("driver", cfg.Driver))

		db, err := Connect(cfg)
		if err == nil {
			if attempt > 1 {
				logger.Info("database connected", zap.Int("attempts", attempt))
			}
			return db, nil
		}

		if maxRetries > 0 && attempt >= maxRetries {
			return nil, fmt.Errorf("failed to connect after %d attempts: %w", attempt, err)
		}

		logger.Warn("database connection failed", zap.Error(err), zap.Duration("retry_in", delay))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		// Exponential backoff with cap at 60 seconds
		delay *= 2
		if delay > 60*time.Second {
			delay = 60 * time.Second
		}
	}
}

// HealthCheck verifies the database answers a trivial query.
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("unexpected health check result %d", result)
	}

	return nil
}

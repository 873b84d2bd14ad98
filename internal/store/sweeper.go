package store

import (
	"context"
	"log/slog"
	"time"
)

// RunSweeper periodically purges expired sessions until ctx is done. It is
// only needed for drivers that implement Purger.
func RunSweeper(ctx context.Context, p Purger, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.Info("Session sweeper started", "interval", interval)

	for {
		select {
		case <-ticker.C:
			sweepOnce(ctx, p, logger)
		case <-ctx.Done():
			logger.Info("Session sweeper shutting down", "reason", ctx.Err())
			return
		}
	}
}

func sweepOnce(ctx context.Context, p Purger, logger *slog.Logger) {
	deleted, err := p.PurgeExpired(ctx)
	if err != nil {
		logger.Error("Session sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		logger.Info("Expired sessions purged", "count", deleted)
	}
}

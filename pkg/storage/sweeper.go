package storage

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunSweeper evicts idle sessions from driver every interval until ctx is done.
func RunSweeper(ctx context.Context, driver Driver, interval, maxIdle time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed, err := driver.Sweep(ctx, maxIdle)
			if err != nil {
				logger.Warn("failed to sweep idle sessions", zap.Error(err))
				continue
			}
			if removed > 0 {
				logger.Info("swept idle sessions", zap.Int("removed", removed))
			}
		case <-ctx.Done():
			return
		}
	}
}

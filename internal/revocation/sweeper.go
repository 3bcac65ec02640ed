package revocation

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartSweeper periodically purges expired entries from registries that keep
// them in process memory. Lookups already prune lazily, so the sweep only
// bounds memory held by revoked tokens that are never presented again.
// A non-positive interval disables it. The loop stops with ctx.
func StartSweeper(ctx context.Context, registry Registry, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		return
	}
	sweeper, ok := registry.(Sweeper)
	if !ok {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := sweeper.Sweep(ctx)
				if err != nil {
					logger.Warn("revocation sweep failed", zap.Error(err))
					continue
				}
				if removed > 0 {
					logger.Debug("revocation sweep", zap.Int("removed", removed))
				}
			}
		}
	}()
}

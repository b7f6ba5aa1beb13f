package cleanup

import (
	"context"
	"time"

	"sentinelshop/internal/cart"
	"sentinelshop/internal/logger"
	"sentinelshop/internal/middleware"
	"sentinelshop/internal/snapshot"
)

// Config names what the routine sweeps. Nil members are skipped.
type Config struct {
	Carts       *cart.Registry
	CartIdleTTL time.Duration

	Snapshots   snapshot.Store
	SnapshotTTL time.Duration

	Limiter *middleware.RateLimiter

	Interval time.Duration
}

type Summary struct {
	CartsEvicted     int
	SnapshotsPurged  int
	LimiterEntries   int
	SnapshotPurgeErr error
}

// StartCleanupRoutine runs RunCleanup every cfg.Interval until ctx ends.
// The returned channel closes once the routine has stopped.
func StartCleanupRoutine(ctx context.Context, cfg Config) <-chan struct{} {
	done := make(chan struct{})
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	go func() {
		defer close(done)
		logger.LogInfo("Cleanup routine started - will run every %v", interval)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.LogInfo("Cleanup routine stopped")
				return
			case <-ticker.C:
				RunCleanup(ctx, cfg, time.Now())
			}
		}
	}()

	return done
}

// RunCleanup performs one sweep relative to now.
func RunCleanup(ctx context.Context, cfg Config, now time.Time) Summary {
	var summary Summary

	if cfg.Carts != nil && cfg.CartIdleTTL > 0 {
		summary.CartsEvicted = cfg.Carts.Evict(cfg.CartIdleTTL)
		if summary.CartsEvicted > 0 {
			logger.LogInfo("Evicted %d idle carts (idle longer than %v)", summary.CartsEvicted, cfg.CartIdleTTL)
		}
	}

	if cfg.Snapshots != nil && cfg.SnapshotTTL > 0 {
		cutoff := now.Add(-cfg.SnapshotTTL)
		purged, err := cfg.Snapshots.Purge(ctx, cutoff)
		if err != nil {
			summary.SnapshotPurgeErr = err
			logger.LogError("Failed to purge checkout snapshots: %v", err)
		} else {
			summary.SnapshotsPurged = purged
			if purged > 0 {
				logger.LogInfo("Purged %d checkout snapshots older than %v", purged, cutoff.Format("2006-01-02 15:04:05"))
			}
		}
	}

	if cfg.Limiter != nil {
		summary.LimiterEntries = cfg.Limiter.Sweep()
	}

	if summary.CartsEvicted == 0 && summary.SnapshotsPurged == 0 {
		logger.LogDebug("Cleanup completed - nothing to remove")
	}
	return summary
}

package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Pruner is implemented by stores that hold expired entries or hit counters
// until they are removed explicitly.
type Pruner interface {
	// Prune deletes expired state and reports how many items went.
	Prune(ctx context.Context) (int64, error)
}

// RunJanitor calls p.Prune every interval until ctx is done. Prune failures
// are logged and retried on the next tick.
func RunJanitor(ctx context.Context, p Pruner, interval time.Duration, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			removed, err := p.Prune(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("cache prune failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				logger.Debug("cache pruned", zap.Int64("removed", removed))
			}
		}
	}
}

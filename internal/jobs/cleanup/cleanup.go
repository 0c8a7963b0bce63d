package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type sessionCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Job sweeps expired spin sessions. Expiry is otherwise lazy, so this
// is the only thing that actually removes stale rows.
type Job struct {
	sessions sessionCleaner
	interval time.Duration
	logger   *zap.Logger
}

func New(sessions sessionCleaner, interval time.Duration, logger *zap.Logger) *Job {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{sessions: sessions, interval: interval, logger: logger}
}

func (j *Job) Run(ctx context.Context) error {
	deleted, err := j.sessions.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("cleanup expired spin sessions: %w", err)
	}
	if deleted > 0 {
		j.logger.Info("cleanup expired spin sessions completed", zap.Int64("deleted", deleted))
	}
	return nil
}

// Loop runs the sweep on a ticker until the context ends. A failed
// sweep is logged and retried next tick.
func (j *Job) Loop(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("spin session cleanup failed", zap.Error(err))
			}
		}
	}
}

package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/sketchduel/backend/pkg/logger"
)

// Janitor runs CleanupAbandonedGames on a fixed interval. It implements
// suture.Service.
type Janitor struct {
	svc      *Service
	interval time.Duration
	maxAge   time.Duration
	logger   *logger.Logger
}

// NewJanitor creates the periodic sweeper
func NewJanitor(svc *Service, interval, maxAge time.Duration, log *logger.Logger) *Janitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Janitor{svc: svc, interval: interval, maxAge: maxAge, logger: log}
}

// Serve sweeps until ctx is cancelled. Sweep failures are logged and retried
// on the next tick.
func (j *Janitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	res, err := j.svc.CleanupAbandonedGames(ctx, j.maxAge)
	if err != nil {
		j.logger.Error("Abandoned game sweep failed", logger.Err(err))
		return
	}
	if res.DeletedGames > 0 {
		j.logger.Info("Abandoned game sweep finished",
			logger.F("deleted", fmt.Sprintf("%d", res.DeletedGames)),
		)
	}
}

func (j *Janitor) String() string {
	return "cleanup-janitor"
}

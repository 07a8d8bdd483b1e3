package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Purger deletes rows older than a cutoff and reports how many went.
type Purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Janitor runs retention cleanup on a cron schedule: rows older than the
// configured window are deleted from the store. It never touches in-flight
// pipeline runs.
type Janitor struct {
	purger Purger
	window time.Duration
	log    *slog.Logger
	sched  *cron.Cron
}

// NewJanitor builds a janitor keeping retentionDays of history.
func NewJanitor(purger Purger, retentionDays int, log *slog.Logger) *Janitor {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &Janitor{
		purger: purger,
		window: time.Duration(retentionDays) * 24 * time.Hour,
		log:    log,
	}
}

// Start schedules RunOnce under the given cron expression.
func (j *Janitor) Start(spec string) error {
	j.sched = cron.New()
	_, err := j.sched.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := j.RunOnce(ctx); err != nil {
			j.log.Error("retention cleanup failed", "error", err.Error())
		}
	})
	if err != nil {
		return err
	}
	j.sched.Start()
	j.log.Info("retention cleanup scheduled", "cron", spec, "window", j.window.String())
	return nil
}

// Stop halts the schedule; a cleanup already running finishes.
func (j *Janitor) Stop() {
	if j.sched != nil {
		j.sched.Stop()
	}
}

// RunOnce performs one cleanup pass immediately.
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-j.window)
	deleted, err := j.purger.PurgeBefore(ctx, cutoff)
	if err != nil {
		return deleted, err
	}
	j.log.Info("retention cleanup done", "cutoff", cutoff.Format(time.RFC3339), "rows_deleted", deleted)
	return deleted, nil
}

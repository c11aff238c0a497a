package cron

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultPruneSchedule is used when a PruneJob has no explicit schedule.
const DefaultPruneSchedule = "@every 5m"

// Pruner deletes stored conversations whose expiry has passed and reports
// how many were removed.
type Pruner interface {
	PruneExpired(ctx context.Context) (int64, error)
}

// PruneJob removes expired conversations from a backend that cannot expire
// keys on its own.
type PruneJob struct {
	Store        Pruner
	Logger       *slog.Logger
	Backend      string // backend name, used in the job name and logs
	ScheduleExpr string // empty = DefaultPruneSchedule
}

// Compile-time interface check.
var _ Job = (*PruneJob)(nil)

// Name implements Job.
func (j *PruneJob) Name() string {
	if j.Backend != "" {
		return "prune_expired:" + j.Backend
	}
	return "prune_expired"
}

// Schedule implements Job.
func (j *PruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultPruneSchedule
}

// Run deletes expired conversations.
func (j *PruneJob) Run(ctx context.Context) error {
	n, err := j.Store.PruneExpired(ctx)
	if err != nil {
		return fmt.Errorf("cron: pruning %s: %w", j.Backend, err)
	}
	if n > 0 && j.Logger != nil {
		j.Logger.Info("cron: pruned expired conversations", "count", n, "backend", j.Backend)
	}
	return nil
}

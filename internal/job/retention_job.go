package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type IntelPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type RunPruner interface {
	DeleteRunsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJob sweeps raw intel items and collector run ledger rows past
// the retention window. Hourly aggregates are kept forever; only the
// unbounded append-only tables are pruned.
type RetentionJob struct {
	tracer        trace.Tracer
	intel         IntelPruner
	runs          RunPruner
	retentionDays int
	sweepInterval time.Duration
}

func NewRetentionJob(tracer trace.Tracer, intel IntelPruner, runs RunPruner, retentionDays int) *RetentionJob {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &RetentionJob{
		tracer:        tracer,
		intel:         intel,
		runs:          runs,
		retentionDays: retentionDays,
		sweepInterval: 24 * time.Hour,
	}
}

// Start runs one sweep immediately, then daily, until ctx is cancelled.
func (j *RetentionJob) Start(ctx context.Context) {
	j.runOnce(ctx)
	ticker := time.NewTicker(j.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *RetentionJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "retention-job.run-once")
	defer span.End()

	cutoff := time.Now().UTC().AddDate(0, 0, -j.retentionDays)

	if n, err := j.intel.DeleteOlderThan(ctx, cutoff); err != nil {
		log.Printf("retention sweep: pruning intel items: %v", err)
	} else if n > 0 {
		log.Printf("retention sweep: pruned %d intel items older than %s", n, cutoff.Format(time.DateOnly))
	}

	if n, err := j.runs.DeleteRunsOlderThan(ctx, cutoff); err != nil {
		log.Printf("retention sweep: pruning collector runs: %v", err)
	} else if n > 0 {
		log.Printf("retention sweep: pruned %d collector runs older than %s", n, cutoff.Format(time.DateOnly))
	}
}

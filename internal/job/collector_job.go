// Package job runs the background pollers that keep the collection tables
// current. Every pass goes through the service registry so manual triggers
// and scheduled runs share the same ledger and dedup.
package job

import (
	"context"
	"errors"
	"log"
	"time"

	"coinharvest/internal/service"

	"go.opentelemetry.io/otel/trace"
)

type CollectorTrigger interface {
	Trigger(ctx context.Context, name string) error
}

// CollectorJob periodically triggers one registered collector.
type CollectorJob struct {
	tracer       trace.Tracer
	registry     CollectorTrigger
	collector    string
	pollInterval time.Duration
	startDelay   time.Duration
}

func NewCollectorJob(tracer trace.Tracer, registry CollectorTrigger, collector string, pollInterval, startDelay time.Duration) *CollectorJob {
	if pollInterval <= 0 {
		pollInterval = 15 * time.Minute
	}
	return &CollectorJob{
		tracer:       tracer,
		registry:     registry,
		collector:    collector,
		pollInterval: pollInterval,
		startDelay:   startDelay,
	}
}

// Start blocks until ctx is cancelled. The start delay staggers jobs so they
// do not all hit upstream APIs at once on boot.
func (j *CollectorJob) Start(ctx context.Context) {
	if j.startDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(j.startDelay):
		}
	}

	j.runOnce(ctx)
	ticker := time.NewTicker(j.pollInterval)
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

func (j *CollectorJob) runOnce(ctx context.Context) {
	_, span := j.tracer.Start(ctx, "collector-job.run-once")
	defer span.End()

	err := j.registry.Trigger(ctx, j.collector)
	if err == nil {
		return
	}
	// A manual trigger may already be running the same collector.
	if errors.Is(err, service.ErrCollectorBusy) {
		log.Printf("collector %s skipped: already running", j.collector)
		return
	}
	log.Printf("collector %s cycle error: %v", j.collector, err)
}

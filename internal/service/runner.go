// Package service orchestrates providers, repositories, and caching into the
// collectors the pollers and HTTP surface trigger.
package service

import (
	"context"
	"log"
	"time"

	"coinharvest/internal/domain"
	"coinharvest/internal/observability"

	"go.opentelemetry.io/otel/trace"
)

// CollectorFunc runs one collection pass and reports how many items it wrote.
type CollectorFunc func(ctx context.Context) (int, error)

type RunLedger interface {
	StartRun(ctx context.Context, collector string, startedAt time.Time) (int64, error)
	FinishRun(ctx context.Context, id int64, status domain.RunStatus, items int, errText string, finishedAt time.Time) error
}

// Runner wraps every collector execution with the run ledger and metrics so
// /status and /metrics see each pass regardless of what triggered it.
type Runner struct {
	tracer  trace.Tracer
	ledger  RunLedger
	metrics *observability.Metrics
}

func NewRunner(tracer trace.Tracer, ledger RunLedger, metrics *observability.Metrics) *Runner {
	return &Runner{tracer: tracer, ledger: ledger, metrics: metrics}
}

// Run executes fn under a ledger entry. Ledger failures are logged but never
// block the collection itself.
func (r *Runner) Run(ctx context.Context, collector string, fn CollectorFunc) error {
	ctx, span := r.tracer.Start(ctx, "runner.run")
	defer span.End()

	started := time.Now().UTC()
	var runID int64
	if r.ledger != nil {
		id, err := r.ledger.StartRun(ctx, collector, started)
		if err != nil {
			log.Printf("run ledger start error for %s: %v", collector, err)
		} else {
			runID = id
		}
	}

	items, err := fn(ctx)
	finished := time.Now().UTC()
	duration := finished.Sub(started).Seconds()

	status := domain.RunStatusOK
	errText := ""
	if err != nil {
		errText = err.Error()
		status = domain.RunStatusError
		if items > 0 {
			status = domain.RunStatusPartial
		}
	}

	if r.metrics != nil {
		r.metrics.RecordRun(collector, string(status), duration, items)
		if status != domain.RunStatusError {
			r.metrics.LastSuccessfulRun.WithLabelValues(collector).Set(float64(finished.Unix()))
		}
	}

	if r.ledger != nil && runID > 0 {
		if ferr := r.ledger.FinishRun(ctx, runID, status, items, errText, finished); ferr != nil {
			log.Printf("run ledger finish error for %s: %v", collector, ferr)
		}
	}

	return err
}

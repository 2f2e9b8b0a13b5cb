package repository

import (
	"context"
	"time"

	"coinharvest/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"
)

type RunRepository struct {
	pool   Pool
	tracer trace.Tracer
}

func NewRunRepository(pool Pool, tracer trace.Tracer) *RunRepository {
	return &RunRepository{pool: pool, tracer: tracer}
}

// StartRun records a run in progress and returns its ledger id.
func (r *RunRepository) StartRun(ctx context.Context, collector string, startedAt time.Time) (int64, error) {
	_, span := r.tracer.Start(ctx, "run-repo.start-run")
	defer span.End()

	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO collector_runs (collector, started_at, status)
VALUES ($1, $2, 'running')
RETURNING id`, collector, startedAt.UTC()).Scan(&id)
	return id, err
}

func (r *RunRepository) FinishRun(ctx context.Context, id int64, status domain.RunStatus, items int, errText string, finishedAt time.Time) error {
	_, span := r.tracer.Start(ctx, "run-repo.finish-run")
	defer span.End()

	_, err := r.pool.Exec(ctx, `
UPDATE collector_runs
SET status = $2, items = $3, error_text = $4, finished_at = $5
WHERE id = $1`, id, string(status), items, nullString(errText), finishedAt.UTC())
	return err
}

// LatestRuns returns the newest run per collector.
func (r *RunRepository) LatestRuns(ctx context.Context) ([]*domain.CollectorRun, error) {
	_, span := r.tracer.Start(ctx, "run-repo.latest-runs")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT DISTINCT ON (collector)
       id, collector, started_at, finished_at, status, items, COALESCE(error_text, '')
FROM collector_runs
ORDER BY collector, started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.CollectorRun
	for rows.Next() {
		run := &domain.CollectorRun{}
		var finished pgtype.Timestamptz
		var status string
		if err := rows.Scan(&run.ID, &run.Collector, &run.StartedAt, &finished, &status, &run.Items, &run.ErrorText); err != nil {
			return nil, err
		}
		run.StartedAt = run.StartedAt.UTC()
		run.Status = domain.RunStatus(status)
		if finished.Valid {
			v := finished.Time.UTC()
			run.FinishedAt = &v
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *RunRepository) DeleteRunsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	_, span := r.tracer.Start(ctx, "run-repo.delete-runs-older-than")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `DELETE FROM collector_runs WHERE started_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

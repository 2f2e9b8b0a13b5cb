package repository

import (
	"context"
	"time"

	"coinharvest/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

type DerivativesRepository struct {
	pool   Pool
	tracer trace.Tracer
}

func NewDerivativesRepository(pool Pool, tracer trace.Tracer) *DerivativesRepository {
	return &DerivativesRepository{pool: pool, tracer: tracer}
}

func (r *DerivativesRepository) UpsertTicks(ctx context.Context, ticks []*domain.DerivativesTick) error {
	if len(ticks) == 0 {
		return nil
	}
	_, span := r.tracer.Start(ctx, "derivatives-repo.upsert-ticks")
	defer span.End()

	batch := &pgx.Batch{}
	for _, t := range ticks {
		batch.Queue(`
INSERT INTO derivatives_ticks (symbol, bucket_time, open_interest, volume_24h, funding_rate, basis_pct, spread_pct, venue_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (symbol, bucket_time) DO UPDATE SET
    open_interest = EXCLUDED.open_interest,
    volume_24h = EXCLUDED.volume_24h,
    funding_rate = EXCLUDED.funding_rate,
    basis_pct = EXCLUDED.basis_pct,
    spread_pct = EXCLUDED.spread_pct,
    venue_count = EXCLUDED.venue_count,
    updated_at = NOW()`,
			t.Symbol, t.BucketTime.UTC(), t.OpenInterest, t.Volume24h, t.FundingRate, t.BasisPct, t.SpreadPct, t.VenueCount)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range ticks {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *DerivativesRepository) GetTicksInRange(ctx context.Context, symbol string, from, to time.Time) ([]*domain.DerivativesTick, error) {
	_, span := r.tracer.Start(ctx, "derivatives-repo.get-ticks-in-range")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT symbol, bucket_time, open_interest, volume_24h, funding_rate, basis_pct, spread_pct, venue_count
FROM derivatives_ticks
WHERE symbol = $1 AND bucket_time >= $2 AND bucket_time <= $3
ORDER BY bucket_time ASC`, symbol, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.DerivativesTick
	for rows.Next() {
		t := &domain.DerivativesTick{}
		if err := rows.Scan(&t.Symbol, &t.BucketTime, &t.OpenInterest, &t.Volume24h, &t.FundingRate, &t.BasisPct, &t.SpreadPct, &t.VenueCount); err != nil {
			return nil, err
		}
		t.BucketTime = t.BucketTime.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

package repository

import (
	"context"

	"coinharvest/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

type TickRepository struct {
	pool   Pool
	tracer trace.Tracer
}

func NewTickRepository(pool Pool, tracer trace.Tracer) *TickRepository {
	return &TickRepository{pool: pool, tracer: tracer}
}

func (r *TickRepository) UpsertTicks(ctx context.Context, ticks []*domain.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "tick-repo.upsert-ticks")
	defer span.End()

	batch := &pgx.Batch{}
	for _, t := range ticks {
		batch.Queue(
			`INSERT INTO price_ticks (symbol, bucket_time, price_usd, volume_24h, change_24h_pct)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (symbol, bucket_time) DO UPDATE SET
			     price_usd = EXCLUDED.price_usd,
			     volume_24h = EXCLUDED.volume_24h,
			     change_24h_pct = EXCLUDED.change_24h_pct`,
			t.Symbol, t.BucketTime.UTC(), t.PriceUSD, t.Volume24h, t.Change24hPct,
		)
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

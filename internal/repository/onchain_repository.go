package repository

import (
	"context"
	"encoding/json"
	"time"

	"coinharvest/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

type OnChainRepository struct {
	pool   Pool
	tracer trace.Tracer
}

func NewOnChainRepository(pool Pool, tracer trace.Tracer) *OnChainRepository {
	return &OnChainRepository{pool: pool, tracer: tracer}
}

func (r *OnChainRepository) UpsertSnapshots(ctx context.Context, snaps []*domain.OnChainSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "onchain-repo.upsert-snapshots")
	defer span.End()

	batch := &pgx.Batch{}
	for _, s := range snaps {
		metrics, err := json.Marshal(s.Metrics)
		if err != nil {
			return err
		}
		batch.Queue(`
INSERT INTO onchain_snapshots (provider_key, symbol, interval, bucket_time, score, confidence, metrics)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (provider_key, symbol, interval, bucket_time) DO UPDATE SET
    score = EXCLUDED.score,
    confidence = EXCLUDED.confidence,
    metrics = EXCLUDED.metrics,
    updated_at = NOW()`,
			s.ProviderKey, s.Symbol, s.Interval, s.BucketTime.UTC(), s.Score, s.Confidence, string(metrics))
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range snaps {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *OnChainRepository) GetSnapshotsInRange(ctx context.Context, symbol string, from, to time.Time) ([]*domain.OnChainSnapshot, error) {
	_, span := r.tracer.Start(ctx, "onchain-repo.get-snapshots-in-range")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT provider_key, symbol, interval, bucket_time, score, confidence, metrics
FROM onchain_snapshots
WHERE symbol = $1 AND bucket_time >= $2 AND bucket_time <= $3
ORDER BY bucket_time ASC`,
		symbol, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.OnChainSnapshot
	for rows.Next() {
		s := &domain.OnChainSnapshot{}
		if err := rows.Scan(&s.ProviderKey, &s.Symbol, &s.Interval, &s.BucketTime, &s.Score, &s.Confidence, &s.Metrics); err != nil {
			return nil, err
		}
		s.BucketTime = s.BucketTime.UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

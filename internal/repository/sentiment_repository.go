package repository

import (
	"context"
	"time"

	"coinharvest/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"
)

type SentimentRepository struct {
	pool   Pool
	tracer trace.Tracer
}

func NewSentimentRepository(pool Pool, tracer trace.Tracer) *SentimentRepository {
	return &SentimentRepository{pool: pool, tracer: tracer}
}

// UpsertHourly writes per (symbol, hour) sentiment aggregates. Fear & greed
// columns are COALESCE-guarded so an aggregation pass run before the index
// fetch does not erase an earlier value.
func (r *SentimentRepository) UpsertHourly(ctx context.Context, rows []*domain.SentimentHourly) error {
	if len(rows) == 0 {
		return nil
	}
	_, span := r.tracer.Start(ctx, "sentiment-repo.upsert-hourly")
	defer span.End()

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
INSERT INTO sentiment_hourly (symbol, bucket_time, avg_score, avg_confidence, item_count, fear_greed_value, fear_greed_norm)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (symbol, bucket_time) DO UPDATE SET
    avg_score = COALESCE(EXCLUDED.avg_score, sentiment_hourly.avg_score),
    avg_confidence = COALESCE(EXCLUDED.avg_confidence, sentiment_hourly.avg_confidence),
    item_count = GREATEST(EXCLUDED.item_count, sentiment_hourly.item_count),
    fear_greed_value = COALESCE(EXCLUDED.fear_greed_value, sentiment_hourly.fear_greed_value),
    fear_greed_norm = COALESCE(EXCLUDED.fear_greed_norm, sentiment_hourly.fear_greed_norm),
    updated_at = NOW()`,
			row.Symbol, row.BucketTime.UTC(),
			nullFloat(row.AvgScore), nullFloat(row.AvgConfidence), row.ItemCount,
			nullInt(row.FearGreedValue), nullFloat(row.FearGreedNorm),
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range rows {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *SentimentRepository) GetHourly(ctx context.Context, symbol string, from, to time.Time) ([]*domain.SentimentHourly, error) {
	_, span := r.tracer.Start(ctx, "sentiment-repo.get-hourly")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT symbol, bucket_time, avg_score, avg_confidence, item_count, fear_greed_value, fear_greed_norm
FROM sentiment_hourly
WHERE symbol = $1 AND bucket_time >= $2 AND bucket_time <= $3
ORDER BY bucket_time ASC`, symbol, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.SentimentHourly
	for rows.Next() {
		row, err := scanSentimentHourly(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanSentimentHourly(s interface{ Scan(dest ...any) error }) (*domain.SentimentHourly, error) {
	out := &domain.SentimentHourly{}
	var avgScore, avgConf, fgNorm pgtype.Float8
	var fgValue pgtype.Int4
	if err := s.Scan(&out.Symbol, &out.BucketTime, &avgScore, &avgConf, &out.ItemCount, &fgValue, &fgNorm); err != nil {
		return nil, err
	}
	out.BucketTime = out.BucketTime.UTC()
	if avgScore.Valid {
		v := avgScore.Float64
		out.AvgScore = &v
	}
	if avgConf.Valid {
		v := avgConf.Float64
		out.AvgConfidence = &v
	}
	if fgValue.Valid {
		v := int(fgValue.Int32)
		out.FearGreedValue = &v
	}
	if fgNorm.Valid {
		v := fgNorm.Float64
		out.FearGreedNorm = &v
	}
	return out, nil
}

package repository

import (
	"context"
	"time"

	"coinharvest/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

type CandleRepository struct {
	pool   Pool
	tracer trace.Tracer
}

func NewCandleRepository(pool Pool, tracer trace.Tracer) *CandleRepository {
	return &CandleRepository{pool: pool, tracer: tracer}
}

func (r *CandleRepository) UpsertCandles(ctx context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "candle-repo.upsert-candles")
	defer span.End()

	batch := &pgx.Batch{}
	for _, c := range candles {
		batch.Queue(
			`INSERT INTO candles (symbol, interval, open_time, open, high, low, close, volume)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (symbol, interval, open_time) DO UPDATE SET
			     open = EXCLUDED.open,
			     high = EXCLUDED.high,
			     low = EXCLUDED.low,
			     close = EXCLUDED.close,
			     volume = EXCLUDED.volume`,
			c.Symbol, c.Interval, c.OpenTime.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range candles {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *CandleRepository) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]*domain.Candle, error) {
	_, span := r.tracer.Start(ctx, "candle-repo.get-candles")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT symbol, interval, open_time, open, high, low, close, volume
		 FROM candles
		 WHERE symbol = $1 AND interval = $2
		 ORDER BY open_time DESC
		 LIMIT $3`,
		symbol, interval, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCandles(rows)
}

func (r *CandleRepository) GetCandlesInRange(ctx context.Context, symbol, interval string, from, to time.Time) ([]*domain.Candle, error) {
	_, span := r.tracer.Start(ctx, "candle-repo.get-candles-in-range")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT symbol, interval, open_time, open, high, low, close, volume
		 FROM candles
		 WHERE symbol = $1 AND interval = $2 AND open_time >= $3 AND open_time <= $4
		 ORDER BY open_time ASC`,
		symbol, interval, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCandles(rows)
}

// CountBuckets returns how many candle rows exist for the symbol/interval in
// [from, to]; the gap scanner treats both edges as inclusive buckets and
// compares the count against lookbackHours+1.
func (r *CandleRepository) CountBuckets(ctx context.Context, symbol, interval string, from, to time.Time) (int, error) {
	_, span := r.tracer.Start(ctx, "candle-repo.count-buckets")
	defer span.End()

	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*)::INT
		 FROM candles
		 WHERE symbol = $1 AND interval = $2 AND open_time >= $3 AND open_time <= $4`,
		symbol, interval, from.UTC(), to.UTC(),
	).Scan(&count)
	return count, err
}

func scanCandles(rows pgx.Rows) ([]*domain.Candle, error) {
	var candles []*domain.Candle
	for rows.Next() {
		c := &domain.Candle{}
		if err := rows.Scan(&c.Symbol, &c.Interval, &c.OpenTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		c.OpenTime = c.OpenTime.UTC()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

package repository

import (
	"context"
	"time"

	"coinharvest/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"
)

type FeatureRepository struct {
	pool   Pool
	tracer trace.Tracer
}

func NewFeatureRepository(pool Pool, tracer trace.Tracer) *FeatureRepository {
	return &FeatureRepository{pool: pool, tracer: tracer}
}

// UpsertFeatures writes feature rows keyed by (symbol, interval, open_time).
// Every value column is COALESCE-guarded so a partial recompute (say, before
// the sentiment collector has run for the hour) never blanks columns a
// previous full pass populated.
func (r *FeatureRepository) UpsertFeatures(ctx context.Context, rows []*domain.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}
	_, span := r.tracer.Start(ctx, "feature-repo.upsert-features")
	defer span.End()

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
INSERT INTO ml_features (
    symbol, interval, open_time,
    close, ret_1h, ret_4h, ret_24h, volatility_24h, volume_z_24h,
    rsi_14, macd_hist, bb_pos, bb_width,
    sentiment_score, sentiment_confidence, news_count, fear_greed_norm,
    onchain_score,
    open_interest, open_interest_chg, funding_rate
) VALUES (
    $1, $2, $3,
    $4, $5, $6, $7, $8, $9,
    $10, $11, $12, $13,
    $14, $15, $16, $17,
    $18,
    $19, $20, $21
)
ON CONFLICT (symbol, interval, open_time) DO UPDATE SET
    close = COALESCE(EXCLUDED.close, ml_features.close),
    ret_1h = COALESCE(EXCLUDED.ret_1h, ml_features.ret_1h),
    ret_4h = COALESCE(EXCLUDED.ret_4h, ml_features.ret_4h),
    ret_24h = COALESCE(EXCLUDED.ret_24h, ml_features.ret_24h),
    volatility_24h = COALESCE(EXCLUDED.volatility_24h, ml_features.volatility_24h),
    volume_z_24h = COALESCE(EXCLUDED.volume_z_24h, ml_features.volume_z_24h),
    rsi_14 = COALESCE(EXCLUDED.rsi_14, ml_features.rsi_14),
    macd_hist = COALESCE(EXCLUDED.macd_hist, ml_features.macd_hist),
    bb_pos = COALESCE(EXCLUDED.bb_pos, ml_features.bb_pos),
    bb_width = COALESCE(EXCLUDED.bb_width, ml_features.bb_width),
    sentiment_score = COALESCE(EXCLUDED.sentiment_score, ml_features.sentiment_score),
    sentiment_confidence = COALESCE(EXCLUDED.sentiment_confidence, ml_features.sentiment_confidence),
    news_count = COALESCE(EXCLUDED.news_count, ml_features.news_count),
    fear_greed_norm = COALESCE(EXCLUDED.fear_greed_norm, ml_features.fear_greed_norm),
    onchain_score = COALESCE(EXCLUDED.onchain_score, ml_features.onchain_score),
    open_interest = COALESCE(EXCLUDED.open_interest, ml_features.open_interest),
    open_interest_chg = COALESCE(EXCLUDED.open_interest_chg, ml_features.open_interest_chg),
    funding_rate = COALESCE(EXCLUDED.funding_rate, ml_features.funding_rate),
    updated_at = NOW()`,
			row.Symbol, row.Interval, row.OpenTime.UTC(),
			nullFloat(row.Close), nullFloat(row.Ret1H), nullFloat(row.Ret4H), nullFloat(row.Ret24H),
			nullFloat(row.Vol24H), nullFloat(row.VolZ24H),
			nullFloat(row.RSI14), nullFloat(row.MACDHist), nullFloat(row.BBPos), nullFloat(row.BBWidth),
			nullFloat(row.SentimentScore), nullFloat(row.SentimentConf), nullInt(row.NewsCount), nullFloat(row.FearGreedNorm),
			nullFloat(row.OnChainScore),
			nullFloat(row.OpenInterest), nullFloat(row.OpenInterestChg), nullFloat(row.FundingRate),
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

func (r *FeatureRepository) GetFeatures(ctx context.Context, symbol, interval string, limit int) ([]*domain.FeatureRow, error) {
	_, span := r.tracer.Start(ctx, "feature-repo.get-features")
	defer span.End()

	if limit <= 0 || limit > 1000 {
		limit = 168
	}

	rows, err := r.pool.Query(ctx, featureSelect+`
WHERE symbol = $1 AND interval = $2
ORDER BY open_time DESC
LIMIT $3`, symbol, interval, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFeatureRows(rows)
}

func (r *FeatureRepository) GetFeaturesInRange(ctx context.Context, symbol, interval string, from, to time.Time) ([]*domain.FeatureRow, error) {
	_, span := r.tracer.Start(ctx, "feature-repo.get-features-in-range")
	defer span.End()

	rows, err := r.pool.Query(ctx, featureSelect+`
WHERE symbol = $1 AND interval = $2 AND open_time >= $3 AND open_time <= $4
ORDER BY open_time ASC`, symbol, interval, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFeatureRows(rows)
}

// CountBuckets reports how many feature rows exist for a symbol and interval
// in [from, to]. Gap analysis compares it against the expected bucket count.
func (r *FeatureRepository) CountBuckets(ctx context.Context, symbol, interval string, from, to time.Time) (int, error) {
	_, span := r.tracer.Start(ctx, "feature-repo.count-buckets")
	defer span.End()

	var n int
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*)::INT
FROM ml_features
WHERE symbol = $1 AND interval = $2 AND open_time >= $3 AND open_time <= $4`,
		symbol, interval, from.UTC(), to.UTC()).Scan(&n)
	return n, err
}

const featureSelect = `
SELECT symbol, interval, open_time,
       close, ret_1h, ret_4h, ret_24h, volatility_24h, volume_z_24h,
       rsi_14, macd_hist, bb_pos, bb_width,
       sentiment_score, sentiment_confidence, news_count, fear_greed_norm,
       onchain_score,
       open_interest, open_interest_chg, funding_rate,
       updated_at
FROM ml_features`

func collectFeatureRows(rows pgx.Rows) ([]*domain.FeatureRow, error) {
	var out []*domain.FeatureRow
	for rows.Next() {
		row, err := scanFeatureRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanFeatureRow(s interface{ Scan(dest ...any) error }) (*domain.FeatureRow, error) {
	out := &domain.FeatureRow{}
	floats := make([]pgtype.Float8, 17)
	var newsCount pgtype.Int4
	if err := s.Scan(
		&out.Symbol, &out.Interval, &out.OpenTime,
		&floats[0], &floats[1], &floats[2], &floats[3], &floats[4], &floats[5],
		&floats[6], &floats[7], &floats[8], &floats[9],
		&floats[10], &floats[11], &newsCount, &floats[12],
		&floats[13],
		&floats[14], &floats[15], &floats[16],
		&out.UpdatedAt,
	); err != nil {
		return nil, err
	}
	out.OpenTime = out.OpenTime.UTC()
	out.UpdatedAt = out.UpdatedAt.UTC()
	dst := []**float64{
		&out.Close, &out.Ret1H, &out.Ret4H, &out.Ret24H, &out.Vol24H, &out.VolZ24H,
		&out.RSI14, &out.MACDHist, &out.BBPos, &out.BBWidth,
		&out.SentimentScore, &out.SentimentConf, &out.FearGreedNorm,
		&out.OnChainScore,
		&out.OpenInterest, &out.OpenInterestChg, &out.FundingRate,
	}
	for i, f := range floats {
		if f.Valid {
			v := f.Float64
			*dst[i] = &v
		}
	}
	if newsCount.Valid {
		v := int(newsCount.Int32)
		out.NewsCount = &v
	}
	return out, nil
}

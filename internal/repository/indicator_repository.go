package repository

import (
	"context"
	"time"

	"coinharvest/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"
)

type IndicatorRepository struct {
	pool   Pool
	tracer trace.Tracer
}

func NewIndicatorRepository(pool Pool, tracer trace.Tracer) *IndicatorRepository {
	return &IndicatorRepository{pool: pool, tracer: tracer}
}

// UpsertIndicators writes indicator rows. Columns are COALESCE-guarded: a row
// recomputed from a shorter candle window never clears values a previous run
// populated from fuller history.
func (r *IndicatorRepository) UpsertIndicators(ctx context.Context, rows []*domain.IndicatorRow) error {
	if len(rows) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "indicator-repo.upsert-indicators")
	defer span.End()

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
INSERT INTO technical_indicators (
    symbol, interval, open_time,
    sma_20, ema_12, ema_26, rsi_14,
    macd_line, macd_signal, macd_hist,
    bb_upper, bb_middle, bb_lower, volume_z_24
) VALUES (
    $1, $2, $3,
    $4, $5, $6, $7,
    $8, $9, $10,
    $11, $12, $13, $14
)
ON CONFLICT (symbol, interval, open_time) DO UPDATE SET
    sma_20 = COALESCE(EXCLUDED.sma_20, technical_indicators.sma_20),
    ema_12 = COALESCE(EXCLUDED.ema_12, technical_indicators.ema_12),
    ema_26 = COALESCE(EXCLUDED.ema_26, technical_indicators.ema_26),
    rsi_14 = COALESCE(EXCLUDED.rsi_14, technical_indicators.rsi_14),
    macd_line = COALESCE(EXCLUDED.macd_line, technical_indicators.macd_line),
    macd_signal = COALESCE(EXCLUDED.macd_signal, technical_indicators.macd_signal),
    macd_hist = COALESCE(EXCLUDED.macd_hist, technical_indicators.macd_hist),
    bb_upper = COALESCE(EXCLUDED.bb_upper, technical_indicators.bb_upper),
    bb_middle = COALESCE(EXCLUDED.bb_middle, technical_indicators.bb_middle),
    bb_lower = COALESCE(EXCLUDED.bb_lower, technical_indicators.bb_lower),
    volume_z_24 = COALESCE(EXCLUDED.volume_z_24, technical_indicators.volume_z_24),
    updated_at = NOW()`,
			row.Symbol, row.Interval, row.OpenTime.UTC(),
			nullFloat(row.SMA20), nullFloat(row.EMA12), nullFloat(row.EMA26), nullFloat(row.RSI14),
			nullFloat(row.MACDLine), nullFloat(row.MACDSig), nullFloat(row.MACDHist),
			nullFloat(row.BBUpper), nullFloat(row.BBMiddle), nullFloat(row.BBLower), nullFloat(row.VolumeZ24),
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

func (r *IndicatorRepository) GetIndicatorsInRange(ctx context.Context, symbol, interval string, from, to time.Time) ([]*domain.IndicatorRow, error) {
	_, span := r.tracer.Start(ctx, "indicator-repo.get-indicators-in-range")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT symbol, interval, open_time,
       sma_20, ema_12, ema_26, rsi_14,
       macd_line, macd_signal, macd_hist,
       bb_upper, bb_middle, bb_lower, volume_z_24
FROM technical_indicators
WHERE symbol = $1 AND interval = $2 AND open_time >= $3 AND open_time <= $4
ORDER BY open_time ASC`,
		symbol, interval, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.IndicatorRow
	for rows.Next() {
		row, err := scanIndicatorRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanIndicatorRow(s interface{ Scan(dest ...any) error }) (*domain.IndicatorRow, error) {
	out := &domain.IndicatorRow{}
	cols := make([]pgtype.Float8, 11)
	if err := s.Scan(
		&out.Symbol, &out.Interval, &out.OpenTime,
		&cols[0], &cols[1], &cols[2], &cols[3],
		&cols[4], &cols[5], &cols[6],
		&cols[7], &cols[8], &cols[9], &cols[10],
	); err != nil {
		return nil, err
	}
	out.OpenTime = out.OpenTime.UTC()
	dst := []**float64{
		&out.SMA20, &out.EMA12, &out.EMA26, &out.RSI14,
		&out.MACDLine, &out.MACDSig, &out.MACDHist,
		&out.BBUpper, &out.BBMiddle, &out.BBLower, &out.VolumeZ24,
	}
	for i, c := range cols {
		if c.Valid {
			v := c.Float64
			*dst[i] = &v
		}
	}
	return out, nil
}

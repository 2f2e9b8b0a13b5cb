package service

import (
	"context"
	"log"
	"math"
	"time"

	"coinharvest/internal/domain"
	"coinharvest/internal/ta"

	"go.opentelemetry.io/otel/trace"
)

// featureInterval is the bucket the feature table materializes at. All
// source tables are joined onto hourly buckets.
const featureInterval = "1h"

type candleRangeRepo interface {
	GetCandlesInRange(ctx context.Context, symbol, interval string, from, to time.Time) ([]*domain.Candle, error)
}

type indicatorRangeRepo interface {
	GetIndicatorsInRange(ctx context.Context, symbol, interval string, from, to time.Time) ([]*domain.IndicatorRow, error)
}

type sentimentRangeRepo interface {
	GetHourly(ctx context.Context, symbol string, from, to time.Time) ([]*domain.SentimentHourly, error)
}

type onchainRangeRepo interface {
	GetSnapshotsInRange(ctx context.Context, symbol string, from, to time.Time) ([]*domain.OnChainSnapshot, error)
}

type derivativesRangeRepo interface {
	GetTicksInRange(ctx context.Context, symbol string, from, to time.Time) ([]*domain.DerivativesTick, error)
}

type FeatureRepository interface {
	UpsertFeatures(ctx context.Context, rows []*domain.FeatureRow) error
}

// FeatureService materializes the flattened per (symbol, hour) feature rows
// from candles, indicators, sentiment, onchain, and derivatives tables. The
// upsert is COALESCE-guarded per column, so running it before a source table
// has data for the hour leaves that column nil and a later pass fills it in.
type FeatureService struct {
	tracer        trace.Tracer
	candles       candleRangeRepo
	indicators    indicatorRangeRepo
	sentiment     sentimentRangeRepo
	onchain       onchainRangeRepo
	derivatives   derivativesRangeRepo
	features      FeatureRepository
	lookbackHours int
}

func NewFeatureService(
	tracer trace.Tracer,
	candles candleRangeRepo,
	indicators indicatorRangeRepo,
	sentiment sentimentRangeRepo,
	onchain onchainRangeRepo,
	derivatives derivativesRangeRepo,
	features FeatureRepository,
	lookbackHours int,
) *FeatureService {
	if lookbackHours <= 0 {
		lookbackHours = 48
	}
	return &FeatureService{
		tracer:        tracer,
		candles:       candles,
		indicators:    indicators,
		sentiment:     sentiment,
		onchain:       onchain,
		derivatives:   derivatives,
		features:      features,
		lookbackHours: lookbackHours,
	}
}

// RefreshAll rebuilds feature rows for every symbol over the lookback window.
func (s *FeatureService) RefreshAll(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "feature-service.refresh-all")
	defer span.End()

	to := time.Now().UTC().Truncate(time.Hour)
	from := to.Add(-time.Duration(s.lookbackHours) * time.Hour)

	total := 0
	var firstErr error
	for _, symbol := range domain.SupportedSymbols {
		n, err := s.RefreshRange(ctx, symbol, from, to)
		if err != nil {
			log.Printf("feature refresh error for %s: %v", symbol, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		total += n
	}
	return total, firstErr
}

// RefreshRange rebuilds feature rows for one symbol over [from, to].
func (s *FeatureService) RefreshRange(ctx context.Context, symbol string, from, to time.Time) (int, error) {
	ctx, span := s.tracer.Start(ctx, "feature-service.refresh-range")
	defer span.End()

	from = from.UTC().Truncate(time.Hour)
	to = to.UTC().Truncate(time.Hour)

	// Returns and volatility need candles from before the window start.
	candleFrom := from.Add(-26 * time.Hour)
	candles, err := s.candles.GetCandlesInRange(ctx, symbol, featureInterval, candleFrom, to)
	if err != nil {
		return 0, err
	}
	indicators, err := s.indicators.GetIndicatorsInRange(ctx, symbol, featureInterval, from, to)
	if err != nil {
		return 0, err
	}
	sentiment, err := s.sentiment.GetHourly(ctx, symbol, from, to)
	if err != nil {
		return 0, err
	}
	onchain, err := s.onchain.GetSnapshotsInRange(ctx, symbol, candleFrom, to)
	if err != nil {
		return 0, err
	}
	derivatives, err := s.derivatives.GetTicksInRange(ctx, symbol, candleFrom, to)
	if err != nil {
		return 0, err
	}

	rows := BuildFeatureRows(symbol, from, to, candles, indicators, sentiment, onchain, derivatives)
	if len(rows) == 0 {
		return 0, nil
	}
	if err := s.features.UpsertFeatures(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// BuildFeatureRows joins the source slices onto hourly buckets in [from, to].
// A bucket with no candle produces no row; other sources contribute their
// columns when present for the hour.
func BuildFeatureRows(
	symbol string,
	from, to time.Time,
	candles []*domain.Candle,
	indicators []*domain.IndicatorRow,
	sentiment []*domain.SentimentHourly,
	onchain []*domain.OnChainSnapshot,
	derivatives []*domain.DerivativesTick,
) []*domain.FeatureRow {
	candleByHour := make(map[time.Time]*domain.Candle, len(candles))
	for _, c := range candles {
		candleByHour[c.OpenTime.UTC().Truncate(time.Hour)] = c
	}
	indicatorByHour := make(map[time.Time]*domain.IndicatorRow, len(indicators))
	for _, row := range indicators {
		indicatorByHour[row.OpenTime.UTC().Truncate(time.Hour)] = row
	}
	sentimentByHour := make(map[time.Time]*domain.SentimentHourly, len(sentiment))
	for _, row := range sentiment {
		sentimentByHour[row.BucketTime.UTC().Truncate(time.Hour)] = row
	}
	derivByHour := make(map[time.Time]*domain.DerivativesTick, len(derivatives))
	for _, tick := range derivatives {
		derivByHour[tick.BucketTime.UTC().Truncate(time.Hour)] = tick
	}

	var rows []*domain.FeatureRow
	for hour := from; !hour.After(to); hour = hour.Add(time.Hour) {
		candle, ok := candleByHour[hour]
		if !ok {
			continue
		}

		row := &domain.FeatureRow{
			Symbol:   symbol,
			Interval: featureInterval,
			OpenTime: hour,
		}
		closeV := candle.Close
		row.Close = &closeV

		row.Ret1H = hourlyReturn(candleByHour, hour, 1)
		row.Ret4H = hourlyReturn(candleByHour, hour, 4)
		row.Ret24H = hourlyReturn(candleByHour, hour, 24)
		row.Vol24H = trailingVolatility(candleByHour, hour, 24)

		if ind, ok := indicatorByHour[hour]; ok {
			row.RSI14 = ind.RSI14
			row.MACDHist = ind.MACDHist
			row.VolZ24H = ind.VolumeZ24
			row.BBPos, row.BBWidth = bollingerShape(candle.Close, ind)
		}

		if sent, ok := sentimentByHour[hour]; ok {
			row.SentimentScore = sent.AvgScore
			row.SentimentConf = sent.AvgConfidence
			if sent.ItemCount > 0 {
				n := sent.ItemCount
				row.NewsCount = &n
			}
			row.FearGreedNorm = sent.FearGreedNorm
		}

		row.OnChainScore = latestOnChainScore(onchain, hour)

		if tick, ok := derivByHour[hour]; ok {
			oi := tick.OpenInterest
			fr := tick.FundingRate
			row.OpenInterest = &oi
			row.FundingRate = &fr
			if prev, ok := derivByHour[hour.Add(-time.Hour)]; ok && prev.OpenInterest > 0 {
				chg := (tick.OpenInterest - prev.OpenInterest) / prev.OpenInterest
				row.OpenInterestChg = &chg
			}
		}

		rows = append(rows, row)
	}
	return rows
}

func hourlyReturn(candles map[time.Time]*domain.Candle, hour time.Time, hoursBack int) *float64 {
	current, ok := candles[hour]
	if !ok {
		return nil
	}
	prev, ok := candles[hour.Add(-time.Duration(hoursBack)*time.Hour)]
	if !ok || prev.Close <= 0 {
		return nil
	}
	ret := current.Close/prev.Close - 1
	return &ret
}

func trailingVolatility(candles map[time.Time]*domain.Candle, hour time.Time, window int) *float64 {
	returns := make([]float64, 0, window)
	for i := 0; i < window; i++ {
		t := hour.Add(-time.Duration(i) * time.Hour)
		current, ok := candles[t]
		if !ok {
			continue
		}
		prev, ok := candles[t.Add(-time.Hour)]
		if !ok || prev.Close <= 0 || current.Close <= 0 {
			continue
		}
		returns = append(returns, math.Log(current.Close/prev.Close))
	}
	// Half the window present is enough for a usable estimate.
	if len(returns) < window/2 {
		return nil
	}
	_, std := ta.MeanStd(returns)
	return &std
}

func bollingerShape(close float64, ind *domain.IndicatorRow) (*float64, *float64) {
	if ind.BBUpper == nil || ind.BBMiddle == nil || ind.BBLower == nil {
		return nil, nil
	}
	span := *ind.BBUpper - *ind.BBLower
	var pos, width *float64
	if span > 0 {
		p := (close - *ind.BBLower) / span
		pos = &p
	}
	if *ind.BBMiddle != 0 {
		w := span / *ind.BBMiddle
		width = &w
	}
	return pos, width
}

// latestOnChainScore returns the score of the newest snapshot at or before
// hour, looking back at most 24 hours. Snapshots arrive sorted ascending.
func latestOnChainScore(snaps []*domain.OnChainSnapshot, hour time.Time) *float64 {
	cutoff := hour.Add(-24 * time.Hour)
	var best *domain.OnChainSnapshot
	for _, s := range snaps {
		if s.BucketTime.After(hour) {
			break
		}
		if s.BucketTime.Before(cutoff) {
			continue
		}
		best = s
	}
	if best == nil {
		return nil
	}
	score := best.Score
	return &score
}

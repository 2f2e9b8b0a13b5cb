package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"coinharvest/internal/domain"
	"coinharvest/internal/ta"

	"go.opentelemetry.io/otel/trace"
)

// indicatorLookback is how many candles the indicator pass loads per (symbol,
// interval). MACD signal needs 26+9 closes; 24-bucket volume z needs 25; the
// rest are shorter.
const indicatorLookback = 120

type IndicatorRepository interface {
	UpsertIndicators(ctx context.Context, rows []*domain.IndicatorRow) error
	GetIndicatorsInRange(ctx context.Context, symbol, interval string, from, to time.Time) ([]*domain.IndicatorRow, error)
}

type candleRangeReader interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]*domain.Candle, error)
}

// IndicatorService recomputes technical indicators from stored candles.
type IndicatorService struct {
	tracer  trace.Tracer
	candles candleRangeReader
	repo    IndicatorRepository
}

func NewIndicatorService(tracer trace.Tracer, candles candleRangeReader, repo IndicatorRepository) *IndicatorService {
	return &IndicatorService{tracer: tracer, candles: candles, repo: repo}
}

// RefreshAll recomputes indicators for every (symbol, interval) pair and
// returns the number of rows written. Pairs without enough candle history are
// skipped, not failed.
func (s *IndicatorService) RefreshAll(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "indicator-service.refresh-all")
	defer span.End()

	total := 0
	var firstErr error
	for _, symbol := range domain.SupportedSymbols {
		for _, interval := range domain.SupportedIntervals {
			n, err := s.Refresh(ctx, symbol, interval)
			if err != nil {
				log.Printf("indicator refresh error for %s %s: %v", symbol, interval, err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			total += n
		}
	}
	return total, firstErr
}

// Refresh recomputes indicators for one (symbol, interval) pair.
func (s *IndicatorService) Refresh(ctx context.Context, symbol, interval string) (int, error) {
	_, span := s.tracer.Start(ctx, "indicator-service.refresh")
	defer span.End()

	if !domain.IsSupportedSymbol(symbol) {
		return 0, fmt.Errorf("unsupported symbol: %s", symbol)
	}
	if !domain.IsSupportedInterval(interval) {
		return 0, fmt.Errorf("unsupported interval: %s", interval)
	}

	candles, err := s.candles.GetCandles(ctx, symbol, interval, indicatorLookback)
	if err != nil {
		return 0, err
	}
	rows := ComputeIndicatorRows(symbol, interval, candles)
	if len(rows) == 0 {
		return 0, nil
	}
	if err := s.repo.UpsertIndicators(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ComputeIndicatorRows derives indicator rows from candles. Candles arrive
// newest-first from the repository and are reversed before computing. A value
// whose warmup window is not yet filled stays nil.
func ComputeIndicatorRows(symbol, interval string, candles []*domain.Candle) []*domain.IndicatorRow {
	if len(candles) < 2 {
		return nil
	}

	// Repository returns newest-first; indicator math wants oldest-first.
	ordered := make([]*domain.Candle, len(candles))
	copy(ordered, candles)
	if ordered[0].OpenTime.After(ordered[len(ordered)-1].OpenTime) {
		for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		}
	}

	closes := make([]float64, len(ordered))
	volumes := make([]float64, len(ordered))
	for i, c := range ordered {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	sma20 := ta.SMASeries(closes, 20)
	ema12 := ta.EMASeries(closes, 12)
	ema26 := ta.EMASeries(closes, 26)
	rsi14 := ta.RSISeries(closes, 14)
	macdLine, macdSig := ta.MACDSeries(closes, 12, 26, 9)
	bbMiddle, bbUpper, bbLower := ta.BollingerSeries(closes, 20, 2)
	volZ := ta.RollingZSeries(volumes, 24)

	rows := make([]*domain.IndicatorRow, 0, len(ordered))
	for i, c := range ordered {
		row := &domain.IndicatorRow{
			Symbol:   symbol,
			Interval: interval,
			OpenTime: c.OpenTime.UTC(),
		}
		row.SMA20 = floatPtr(sma20[i])
		row.EMA12 = floatPtr(ema12[i])
		row.EMA26 = floatPtr(ema26[i])
		row.RSI14 = floatPtr(rsi14[i])
		row.MACDLine = floatPtr(macdLine[i])
		row.MACDSig = floatPtr(macdSig[i])
		row.MACDHist = floatPtr(macdLine[i] - macdSig[i])
		row.BBUpper = floatPtr(bbUpper[i])
		row.BBMiddle = floatPtr(bbMiddle[i])
		row.BBLower = floatPtr(bbLower[i])
		row.VolumeZ24 = floatPtr(volZ[i])
		if row.SMA20 == nil && row.EMA12 == nil && row.RSI14 == nil && row.VolumeZ24 == nil {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func floatPtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

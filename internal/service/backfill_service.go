package service

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"coinharvest/internal/domain"
	"coinharvest/internal/observability"

	"go.opentelemetry.io/otel/trace"
)

// ErrBackfillBusy is returned when a backfill is already running; the HTTP
// layer maps it to 409.
var ErrBackfillBusy = errors.New("backfill already in progress")

type bucketCounter interface {
	CountBuckets(ctx context.Context, symbol, interval string, from, to time.Time) (int, error)
}

type candleBackfiller interface {
	RefreshShortCandles(ctx context.Context, symbol string) (int, error)
	RefreshLongCandles(ctx context.Context, symbol string) (int, error)
}

type indicatorBackfiller interface {
	Refresh(ctx context.Context, symbol, interval string) (int, error)
}

type featureBackfiller interface {
	RefreshRange(ctx context.Context, symbol string, from, to time.Time) (int, error)
}

// BackfillService detects missing hourly buckets and re-runs the collection
// chain over a bounded window. Only one backfill runs at a time.
type BackfillService struct {
	tracer     trace.Tracer
	candles    bucketCounter
	features   bucketCounter
	prices     candleBackfiller
	indicators indicatorBackfiller
	builder    featureBackfiller
	metrics    *observability.Metrics
	maxHours   int
	busy       atomic.Bool
}

func NewBackfillService(
	tracer trace.Tracer,
	candles bucketCounter,
	features bucketCounter,
	prices candleBackfiller,
	indicators indicatorBackfiller,
	builder featureBackfiller,
	metrics *observability.Metrics,
	maxHours int,
) *BackfillService {
	if maxHours <= 0 {
		maxHours = 168
	}
	return &BackfillService{
		tracer:     tracer,
		candles:    candles,
		features:   features,
		prices:     prices,
		indicators: indicators,
		builder:    builder,
		metrics:    metrics,
		maxHours:   maxHours,
	}
}

// Busy reports whether a backfill is currently running.
func (s *BackfillService) Busy() bool {
	return s.busy.Load()
}

// ScanGaps compares present hourly buckets against the expected count for
// every symbol over the last lookbackHours, for both candles and features.
func (s *BackfillService) ScanGaps(ctx context.Context, lookbackHours int) ([]*domain.GapReport, error) {
	ctx, span := s.tracer.Start(ctx, "backfill-service.scan-gaps")
	defer span.End()

	if lookbackHours <= 0 {
		lookbackHours = 72
	}
	to := time.Now().UTC().Truncate(time.Hour)
	from := to.Add(-time.Duration(lookbackHours) * time.Hour)
	// from and to are inclusive bucket edges.
	expected := lookbackHours + 1

	tables := []struct {
		name    string
		counter bucketCounter
	}{
		{"candles", s.candles},
		{"ml_features", s.features},
	}

	var reports []*domain.GapReport
	for _, symbol := range domain.SupportedSymbols {
		for _, t := range tables {
			table, counter := t.name, t.counter
			if counter == nil {
				continue
			}
			present, err := counter.CountBuckets(ctx, symbol, featureInterval, from, to)
			if err != nil {
				return nil, err
			}
			missing := expected - present
			if missing < 0 {
				missing = 0
			}
			if s.metrics != nil {
				s.metrics.MissingBucketsSeen.WithLabelValues(symbol, table).Set(float64(missing))
			}
			reports = append(reports, &domain.GapReport{
				Symbol:       symbol,
				Table:        table,
				WindowStart:  from,
				WindowEnd:    to,
				ExpectedRows: expected,
				PresentRows:  present,
				MissingRows:  missing,
			})
		}
	}
	return reports, nil
}

// Backfill re-fetches candles, recomputes indicators, and rebuilds features
// over the last `hours` hours for every symbol. Hours are clamped to
// [1, maxHours]. Returns ErrBackfillBusy when a run is already in flight.
func (s *BackfillService) Backfill(ctx context.Context, hours int) (int, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return 0, ErrBackfillBusy
	}
	defer s.busy.Store(false)

	ctx, span := s.tracer.Start(ctx, "backfill-service.backfill")
	defer span.End()

	if hours < 1 {
		hours = 1
	}
	if hours > s.maxHours {
		hours = s.maxHours
	}

	to := time.Now().UTC().Truncate(time.Hour)
	from := to.Add(-time.Duration(hours) * time.Hour)

	total := 0
	var firstErr error
	for _, symbol := range domain.SupportedSymbols {
		n, err := s.backfillSymbol(ctx, symbol, from, to, hours)
		total += n
		if err != nil {
			log.Printf("backfill error for %s: %v", symbol, err)
			if firstErr == nil {
				firstErr = err
			}
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}

	status := "ok"
	if firstErr != nil {
		status = "partial"
	}
	if s.metrics != nil {
		s.metrics.BackfillRunsTotal.WithLabelValues(status).Inc()
	}
	return total, firstErr
}

func (s *BackfillService) backfillSymbol(ctx context.Context, symbol string, from, to time.Time, hours int) (int, error) {
	ctx, span := s.tracer.Start(ctx, "backfill-service.backfill-symbol")
	defer span.End()

	total := 0

	n, err := s.prices.RefreshShortCandles(ctx, symbol)
	total += n
	if err != nil {
		return total, err
	}
	// Short refresh covers ~24h of 1h candles; longer windows need the
	// 30-day chart too.
	if hours > 24 {
		n, err = s.prices.RefreshLongCandles(ctx, symbol)
		total += n
		if err != nil {
			return total, err
		}
	}

	for _, interval := range domain.SupportedIntervals {
		n, err = s.indicators.Refresh(ctx, symbol, interval)
		total += n
		if err != nil {
			return total, err
		}
	}

	n, err = s.builder.RefreshRange(ctx, symbol, from, to)
	total += n
	return total, err
}

package service

import (
	"context"
	"log"
	"time"

	"coinharvest/internal/anomaly"
	"coinharvest/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type LatestRunsReader interface {
	LatestRuns(ctx context.Context) ([]*domain.CollectorRun, error)
}

type GapScanner interface {
	ScanGaps(ctx context.Context, lookbackHours int) ([]*domain.GapReport, error)
	Busy() bool
}

type AnomalyDetector interface {
	DetectCandles(symbol, interval string, candles []*domain.Candle) []anomaly.Anomaly
}

// Status is the /status payload.
type Status struct {
	UptimeSeconds int64                  `json:"uptime_seconds"`
	BackfillBusy  bool                   `json:"backfill_busy"`
	Collectors    []*domain.CollectorRun `json:"collectors"`
	Gaps          []*domain.GapReport    `json:"gaps,omitempty"`
	Anomalies     []anomaly.Anomaly      `json:"anomalies,omitempty"`
}

// StatusService assembles the operational snapshot for /status: latest run
// per collector, gap counts, and flagged candle anomalies.
type StatusService struct {
	tracer        trace.Tracer
	runs          LatestRunsReader
	gaps          GapScanner
	candles       CandleRepository
	detector      AnomalyDetector
	started       time.Time
	gapLookbackHr int
}

func NewStatusService(
	tracer trace.Tracer,
	runs LatestRunsReader,
	gaps GapScanner,
	candles CandleRepository,
	detector AnomalyDetector,
	gapLookbackHours int,
) *StatusService {
	if gapLookbackHours <= 0 {
		gapLookbackHours = 72
	}
	return &StatusService{
		tracer:        tracer,
		runs:          runs,
		gaps:          gaps,
		candles:       candles,
		detector:      detector,
		started:       time.Now().UTC(),
		gapLookbackHr: gapLookbackHours,
	}
}

func (s *StatusService) Status(ctx context.Context) (*Status, error) {
	ctx, span := s.tracer.Start(ctx, "status-service.status")
	defer span.End()

	out := &Status{
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	}
	if s.gaps != nil {
		out.BackfillBusy = s.gaps.Busy()
	}

	if s.runs != nil {
		runs, err := s.runs.LatestRuns(ctx)
		if err != nil {
			return nil, err
		}
		out.Collectors = runs
	}

	if s.gaps != nil {
		reports, err := s.gaps.ScanGaps(ctx, s.gapLookbackHr)
		if err != nil {
			log.Printf("gap scan error: %v", err)
		} else {
			// Only gapped windows are worth reporting.
			for _, r := range reports {
				if r.MissingRows > 0 {
					out.Gaps = append(out.Gaps, r)
				}
			}
		}
	}

	if s.detector != nil && s.candles != nil {
		for _, symbol := range domain.SupportedSymbols {
			candles, err := s.candles.GetCandles(ctx, symbol, "1h", 96)
			if err != nil {
				log.Printf("anomaly candle load error for %s: %v", symbol, err)
				continue
			}
			// GetCandles returns newest-first; the detector wants oldest-first.
			for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
				candles[i], candles[j] = candles[j], candles[i]
			}
			out.Anomalies = append(out.Anomalies, s.detector.DetectCandles(symbol, "1h", candles)...)
		}
	}

	return out, nil
}

package service

import (
	"context"
	"log"
	"time"

	"coinharvest/internal/domain"
	"coinharvest/internal/intel"
	"coinharvest/internal/provider"

	"go.opentelemetry.io/otel/trace"
)

type SentimentScorer interface {
	Score(ctx context.Context, items []domain.IntelItem) ([]intel.SentimentScore, error)
}

type sentimentIntelRepo interface {
	ListUnscoredItems(ctx context.Context, limit int) ([]domain.IntelItem, error)
	UpdateItemSentiment(ctx context.Context, itemID int64, score, confidence float64, label, model string, scoredAt time.Time) error
	GetHourlyStats(ctx context.Context, from, to time.Time) ([]domain.SentimentHourlyStat, error)
}

type SentimentHourlyRepository interface {
	UpsertHourly(ctx context.Context, rows []*domain.SentimentHourly) error
}

type FearGreedFetcher interface {
	FetchLatest(ctx context.Context) (*provider.FearGreedPoint, error)
}

// SentimentService scores unscored intel items and maintains the hourly
// aggregate table the feature join reads.
type SentimentService struct {
	tracer        trace.Tracer
	scorer        SentimentScorer
	intelRepo     sentimentIntelRepo
	hourlyRepo    SentimentHourlyRepository
	fearGreed     FearGreedFetcher
	batchSize     int
	lookbackHours int
}

func NewSentimentService(
	tracer trace.Tracer,
	scorer SentimentScorer,
	intelRepo sentimentIntelRepo,
	hourlyRepo SentimentHourlyRepository,
	fearGreed FearGreedFetcher,
	batchSize int,
	lookbackHours int,
) *SentimentService {
	if batchSize <= 0 {
		batchSize = 200
	}
	if lookbackHours <= 0 {
		lookbackHours = 48
	}
	return &SentimentService{
		tracer:        tracer,
		scorer:        scorer,
		intelRepo:     intelRepo,
		hourlyRepo:    hourlyRepo,
		fearGreed:     fearGreed,
		batchSize:     batchSize,
		lookbackHours: lookbackHours,
	}
}

// Refresh scores pending items, then rebuilds hourly aggregates over the
// lookback window. Returns the number of items scored plus rows aggregated.
func (s *SentimentService) Refresh(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "sentiment-service.refresh")
	defer span.End()

	scored, err := s.scorePending(ctx)
	if err != nil {
		return scored, err
	}

	aggregated, err := s.aggregateHourly(ctx)
	if err != nil {
		return scored, err
	}
	return scored + aggregated, nil
}

func (s *SentimentService) scorePending(ctx context.Context) (int, error) {
	_, span := s.tracer.Start(ctx, "sentiment-service.score-pending")
	defer span.End()

	items, err := s.intelRepo.ListUnscoredItems(ctx, s.batchSize)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	scores, err := s.scorer.Score(ctx, items)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	written := 0
	for _, score := range scores {
		err := s.intelRepo.UpdateItemSentiment(ctx, score.ItemID, score.Score, score.Confidence, score.Label, score.Model, now)
		if err != nil {
			log.Printf("sentiment update error for item %d: %v", score.ItemID, err)
			continue
		}
		written++
	}
	return written, nil
}

func (s *SentimentService) aggregateHourly(ctx context.Context) (int, error) {
	_, span := s.tracer.Start(ctx, "sentiment-service.aggregate-hourly")
	defer span.End()

	to := time.Now().UTC()
	from := to.Add(-time.Duration(s.lookbackHours) * time.Hour)

	stats, err := s.intelRepo.GetHourlyStats(ctx, from, to)
	if err != nil {
		return 0, err
	}

	var fgPoints []provider.FearGreedPoint
	if s.fearGreed != nil {
		fg, err := s.fearGreed.FetchLatest(ctx)
		if err != nil {
			log.Printf("fear & greed fetch error: %v", err)
		} else if fg != nil {
			fgPoints = append(fgPoints, *fg)
		}
	}

	rows := intel.BuildHourlyRows(stats, fgPoints)
	if len(rows) == 0 {
		return 0, nil
	}
	if err := s.hourlyRepo.UpsertHourly(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

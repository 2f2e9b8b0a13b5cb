package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"coinharvest/internal/domain"
	"coinharvest/internal/intel"
	"coinharvest/internal/provider"
)

type mockSentimentScorer struct {
	scores []intel.SentimentScore
	err    error
	calls  int
}

func (m *mockSentimentScorer) Score(ctx context.Context, items []domain.IntelItem) ([]intel.SentimentScore, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.scores, nil
}

type mockSentimentIntelRepo struct {
	unscored    []domain.IntelItem
	unscoredErr error
	stats       []domain.SentimentHourlyStat
	statsErr    error

	updates   []int64
	updateErr error
}

func (m *mockSentimentIntelRepo) ListUnscoredItems(ctx context.Context, limit int) ([]domain.IntelItem, error) {
	if m.unscoredErr != nil {
		return nil, m.unscoredErr
	}
	if limit < len(m.unscored) {
		return m.unscored[:limit], nil
	}
	return m.unscored, nil
}

func (m *mockSentimentIntelRepo) UpdateItemSentiment(ctx context.Context, itemID int64, score, confidence float64, label, model string, scoredAt time.Time) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates = append(m.updates, itemID)
	return nil
}

func (m *mockSentimentIntelRepo) GetHourlyStats(ctx context.Context, from, to time.Time) ([]domain.SentimentHourlyStat, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return m.stats, nil
}

type mockHourlyRepo struct {
	upsertCalls int
	upsertArg   []*domain.SentimentHourly
	upsertErr   error
}

func (m *mockHourlyRepo) UpsertHourly(ctx context.Context, rows []*domain.SentimentHourly) error {
	m.upsertCalls++
	m.upsertArg = rows
	return m.upsertErr
}

type mockFearGreed struct {
	point *provider.FearGreedPoint
	err   error
}

func (m *mockFearGreed) FetchLatest(ctx context.Context) (*provider.FearGreedPoint, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.point, nil
}

func TestSentimentService_RefreshScoresAndAggregates(t *testing.T) {
	t.Parallel()

	bucket := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	intelRepo := &mockSentimentIntelRepo{
		unscored: []domain.IntelItem{
			{ID: 1, Title: "bitcoin rally continues"},
			{ID: 2, Title: "exchange hacked"},
		},
		stats: []domain.SentimentHourlyStat{
			{Symbol: "BTC", BucketTime: bucket, AvgScore: 0.5, AvgConfidence: 0.7, ItemCount: 4},
		},
	}
	scorer := &mockSentimentScorer{
		scores: []intel.SentimentScore{
			{ItemID: 1, Score: 0.6, Confidence: 0.8, Label: "positive", Model: "heuristic:v1"},
			{ItemID: 2, Score: -0.7, Confidence: 0.9, Label: "negative", Model: "heuristic:v1"},
		},
	}
	hourly := &mockHourlyRepo{}
	svc := NewSentimentService(testTracer, scorer, intelRepo, hourly, &mockFearGreed{}, 10, 48)

	n, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intelRepo.updates) != 2 {
		t.Fatalf("expected 2 sentiment updates, got %d", len(intelRepo.updates))
	}
	if hourly.upsertCalls != 1 || len(hourly.upsertArg) != 1 {
		t.Fatalf("expected 1 hourly row upserted, got calls=%d rows=%d", hourly.upsertCalls, len(hourly.upsertArg))
	}
	// 2 items scored plus 1 hourly row.
	if n != 3 {
		t.Fatalf("refresh count = %d, want 3", n)
	}

	row := hourly.upsertArg[0]
	if row.Symbol != "BTC" || !row.BucketTime.Equal(bucket) || row.ItemCount != 4 {
		t.Fatalf("unexpected hourly row: %+v", row)
	}
	if row.AvgScore == nil || *row.AvgScore != 0.5 {
		t.Fatalf("unexpected avg score: %v", row.AvgScore)
	}
}

func TestSentimentService_FearGreedErrorIsNotFatal(t *testing.T) {
	t.Parallel()

	bucket := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	intelRepo := &mockSentimentIntelRepo{
		stats: []domain.SentimentHourlyStat{
			{Symbol: "ETH", BucketTime: bucket, AvgScore: 0.1, AvgConfidence: 0.5, ItemCount: 1},
		},
	}
	hourly := &mockHourlyRepo{}
	svc := NewSentimentService(testTracer, &mockSentimentScorer{}, intelRepo, hourly, &mockFearGreed{err: errors.New("api down")}, 10, 48)

	if _, err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hourly.upsertCalls != 1 {
		t.Fatal("hourly aggregate should still be written")
	}
}

func TestSentimentService_ScorerErrorPropagates(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("llm down")
	intelRepo := &mockSentimentIntelRepo{unscored: []domain.IntelItem{{ID: 1}}}
	svc := NewSentimentService(testTracer, &mockSentimentScorer{err: wantErr}, intelRepo, &mockHourlyRepo{}, nil, 10, 48)

	if _, err := svc.Refresh(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
}

func TestSentimentService_NoPendingItemsSkipsScorer(t *testing.T) {
	t.Parallel()

	scorer := &mockSentimentScorer{}
	svc := NewSentimentService(testTracer, scorer, &mockSentimentIntelRepo{}, &mockHourlyRepo{}, nil, 10, 48)

	if _, err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scorer.calls != 0 {
		t.Fatalf("scorer should not run without pending items, ran %d times", scorer.calls)
	}
}

package service

import (
	"context"
	"math"
	"testing"
	"time"

	"coinharvest/internal/domain"
)

func featureCandles(symbol string, from time.Time, hours int, startPrice float64) []*domain.Candle {
	candles := make([]*domain.Candle, hours)
	for i := 0; i < hours; i++ {
		price := startPrice * math.Pow(1.01, float64(i))
		candles[i] = &domain.Candle{
			Symbol:   symbol,
			Interval: "1h",
			OpenTime: from.Add(time.Duration(i) * time.Hour),
			Close:    price,
			Volume:   1000,
		}
	}
	return candles
}

func TestBuildFeatureRows(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(5 * time.Hour)
	candles := featureCandles("BTC", from.Add(-26*time.Hour), 32, 100)

	rsi := 55.0
	hist := 0.5
	bbUpper, bbMiddle, bbLower := 110.0, 100.0, 90.0
	indicators := []*domain.IndicatorRow{{
		Symbol:   "BTC",
		Interval: "1h",
		OpenTime: from,
		RSI14:    &rsi,
		MACDHist: &hist,
		BBUpper:  &bbUpper,
		BBMiddle: &bbMiddle,
		BBLower:  &bbLower,
	}}

	score := 0.4
	conf := 0.8
	fgNorm := 0.2
	sentiment := []*domain.SentimentHourly{{
		Symbol:        "BTC",
		BucketTime:    from,
		AvgScore:      &score,
		AvgConfidence: &conf,
		ItemCount:     3,
		FearGreedNorm: &fgNorm,
	}}

	onchain := []*domain.OnChainSnapshot{
		{ProviderKey: "btc_mempool", Symbol: "BTC", BucketTime: from.Add(-2 * time.Hour), Score: 0.1},
		{ProviderKey: "btc_mempool", Symbol: "BTC", BucketTime: from.Add(time.Hour), Score: 0.7},
	}

	derivatives := []*domain.DerivativesTick{
		{Symbol: "BTC", BucketTime: from.Add(-time.Hour), OpenInterest: 100, FundingRate: 0.01},
		{Symbol: "BTC", BucketTime: from, OpenInterest: 110, FundingRate: 0.02},
	}

	rows := BuildFeatureRows("BTC", from, to, candles, indicators, sentiment, onchain, derivatives)
	if len(rows) != 6 {
		t.Fatalf("expected 6 rows, got %d", len(rows))
	}

	first := rows[0]
	if !first.OpenTime.Equal(from) {
		t.Fatalf("first row at %v, want %v", first.OpenTime, from)
	}
	if first.Close == nil || first.Ret1H == nil || first.Ret4H == nil || first.Ret24H == nil {
		t.Fatalf("missing return columns: %+v", first)
	}
	// Each candle gains 1% per hour.
	if math.Abs(*first.Ret1H-0.01) > 1e-9 {
		t.Fatalf("ret_1h = %f, want 0.01", *first.Ret1H)
	}
	if first.Vol24H == nil {
		t.Fatal("missing trailing volatility")
	}
	// Constant log returns mean zero volatility.
	if math.Abs(*first.Vol24H) > 1e-9 {
		t.Fatalf("volatility = %f, want ~0", *first.Vol24H)
	}

	if first.RSI14 == nil || *first.RSI14 != rsi {
		t.Fatalf("rsi = %v, want %f", first.RSI14, rsi)
	}
	if first.BBPos == nil || first.BBWidth == nil {
		t.Fatal("missing bollinger shape columns")
	}
	if math.Abs(*first.BBWidth-0.2) > 1e-9 {
		t.Fatalf("bb_width = %f, want 0.2", *first.BBWidth)
	}

	if first.SentimentScore == nil || *first.SentimentScore != score {
		t.Fatalf("sentiment score = %v, want %f", first.SentimentScore, score)
	}
	if first.NewsCount == nil || *first.NewsCount != 3 {
		t.Fatalf("news count = %v, want 3", first.NewsCount)
	}
	if first.FearGreedNorm == nil || *first.FearGreedNorm != fgNorm {
		t.Fatalf("fear greed = %v, want %f", first.FearGreedNorm, fgNorm)
	}

	// Newest snapshot at or before the hour wins.
	if first.OnChainScore == nil || *first.OnChainScore != 0.1 {
		t.Fatalf("onchain score = %v, want 0.1", first.OnChainScore)
	}
	second := rows[1]
	if second.OnChainScore == nil || *second.OnChainScore != 0.7 {
		t.Fatalf("onchain score at +1h = %v, want 0.7", second.OnChainScore)
	}

	if first.OpenInterest == nil || *first.OpenInterest != 110 {
		t.Fatalf("open interest = %v, want 110", first.OpenInterest)
	}
	if first.OpenInterestChg == nil || math.Abs(*first.OpenInterestChg-0.1) > 1e-9 {
		t.Fatalf("open interest chg = %v, want 0.1", first.OpenInterestChg)
	}

	// Hours without indicator/sentiment/derivatives rows still produce a
	// row with those columns nil.
	third := rows[2]
	if third.RSI14 != nil || third.SentimentScore != nil || third.OpenInterest != nil {
		t.Fatalf("expected nil sparse columns: %+v", third)
	}
	if third.Close == nil || third.Ret1H == nil {
		t.Fatalf("candle columns should still be set: %+v", third)
	}
}

func TestBuildFeatureRowsSkipsMissingCandleHours(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(3 * time.Hour)
	// Only two of four hours have candles.
	candles := []*domain.Candle{
		{Symbol: "BTC", Interval: "1h", OpenTime: from, Close: 100, Volume: 1},
		{Symbol: "BTC", Interval: "1h", OpenTime: from.Add(2 * time.Hour), Close: 101, Volume: 1},
	}

	rows := BuildFeatureRows("BTC", from, to, candles, nil, nil, nil, nil)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// No prior candle, so no return columns.
	if rows[0].Ret1H != nil {
		t.Fatalf("ret_1h should be nil without a prior candle: %v", *rows[0].Ret1H)
	}
}

func TestFeatureService_RefreshRange(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(5 * time.Hour)

	candles := &mockCandleRangeRepo{resp: featureCandles("BTC", from.Add(-26*time.Hour), 32, 100)}
	features := &mockFeatureRepo{}
	svc := NewFeatureService(testTracer, candles, &mockIndicatorRepo{}, &mockSentimentHourlyRepo{}, &mockOnChainRangeRepo{}, &mockDerivativesRangeRepo{}, features, 48)

	n, err := svc.RefreshRange(context.Background(), "BTC", from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 6 || features.upsertCalls != 1 {
		t.Fatalf("expected 6 rows written: n=%d calls=%d", n, features.upsertCalls)
	}
	// The candle query reaches back before the window for return lookbacks.
	if !candles.lastFrom.Before(from) {
		t.Fatalf("candle query should start before %v, got %v", from, candles.lastFrom)
	}
}

type mockCandleRangeRepo struct {
	resp     []*domain.Candle
	err      error
	lastFrom time.Time
	lastTo   time.Time
}

func (m *mockCandleRangeRepo) GetCandlesInRange(ctx context.Context, symbol, interval string, from, to time.Time) ([]*domain.Candle, error) {
	m.lastFrom = from
	m.lastTo = to
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

type mockSentimentHourlyRepo struct {
	resp []*domain.SentimentHourly
	err  error
}

func (m *mockSentimentHourlyRepo) GetHourly(ctx context.Context, symbol string, from, to time.Time) ([]*domain.SentimentHourly, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

type mockOnChainRangeRepo struct {
	resp []*domain.OnChainSnapshot
	err  error
}

func (m *mockOnChainRangeRepo) GetSnapshotsInRange(ctx context.Context, symbol string, from, to time.Time) ([]*domain.OnChainSnapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

type mockDerivativesRangeRepo struct {
	resp []*domain.DerivativesTick
	err  error
}

func (m *mockDerivativesRangeRepo) GetTicksInRange(ctx context.Context, symbol string, from, to time.Time) ([]*domain.DerivativesTick, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

type mockFeatureRepo struct {
	upsertCalls int
	upsertArg   []*domain.FeatureRow
	upsertErr   error

	bucketCount int
	bucketErr   error
}

func (m *mockFeatureRepo) UpsertFeatures(ctx context.Context, rows []*domain.FeatureRow) error {
	m.upsertCalls++
	m.upsertArg = rows
	return m.upsertErr
}

func (m *mockFeatureRepo) CountBuckets(ctx context.Context, symbol, interval string, from, to time.Time) (int, error) {
	if m.bucketErr != nil {
		return 0, m.bucketErr
	}
	return m.bucketCount, nil
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"coinharvest/internal/domain"
	"coinharvest/internal/provider"
)

func TestAggregateDerivatives(t *testing.T) {
	t.Parallel()

	// Symbol carries the venue's own ticker; IndexID is the normalized asset.
	bucket := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tickers := []provider.DerivativesTicker{
		{Market: "Binance", Symbol: "BTCUSDT", IndexID: "BTC", OpenInterest: 100, Volume24h: 300, FundingRate: 0.01, BasisPct: 0.2, SpreadPct: 0.05},
		{Market: "Bybit", Symbol: "BTCUSD_PERP", IndexID: "BTC", OpenInterest: 50, Volume24h: 100, FundingRate: 0.02, BasisPct: 0.4, SpreadPct: 0.10},
		{Market: "Binance", Symbol: "ETHUSDT", IndexID: "ETH", OpenInterest: 10, Volume24h: 0, FundingRate: 0.03, BasisPct: 0.1, SpreadPct: 0.02},
		{Market: "Deribit", Symbol: "FAKE_PERP", IndexID: "FAKE", OpenInterest: 999, Volume24h: 999},
	}

	ticks := AggregateDerivatives(tickers, bucket)
	if len(ticks) != 2 {
		t.Fatalf("expected 2 ticks, got %d", len(ticks))
	}

	// SupportedSymbols order puts BTC before ETH.
	btc := ticks[0]
	if btc.Symbol != "BTC" {
		t.Fatalf("expected BTC first, got %s", btc.Symbol)
	}
	if btc.OpenInterest != 150 || btc.Volume24h != 400 || btc.VenueCount != 2 {
		t.Fatalf("unexpected BTC aggregate: %+v", btc)
	}
	// Volume-weighted funding: (0.01*300 + 0.02*100) / 400 = 0.0125
	if diff := btc.FundingRate - 0.0125; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("BTC funding = %f, want 0.0125", btc.FundingRate)
	}
	if !btc.BucketTime.Equal(bucket) {
		t.Fatalf("bucket = %v, want %v", btc.BucketTime, bucket)
	}

	// Zero volume falls back to a plain average across venues.
	eth := ticks[1]
	if eth.Symbol != "ETH" || eth.FundingRate != 0.03 || eth.VenueCount != 1 {
		t.Fatalf("unexpected ETH aggregate: %+v", eth)
	}
}

func TestAggregateDerivativesEmpty(t *testing.T) {
	t.Parallel()

	if ticks := AggregateDerivatives(nil, time.Now()); len(ticks) != 0 {
		t.Fatalf("expected no ticks, got %d", len(ticks))
	}
}

func TestDerivativesService_Refresh(t *testing.T) {
	t.Parallel()

	prov := &mockDerivativesProvider{
		tickers: []provider.DerivativesTicker{
			{Market: "Binance", Symbol: "BTCUSDT", IndexID: "BTC", OpenInterest: 1, Volume24h: 2, FundingRate: 0.01},
		},
	}
	repo := &mockDerivativesRepo{}
	svc := NewDerivativesService(testTracer, prov, repo)

	n, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 || repo.upsertCalls != 1 {
		t.Fatalf("expected 1 tick written: n=%d calls=%d", n, repo.upsertCalls)
	}
	tick := repo.upsertArg[0]
	if !tick.BucketTime.Equal(tick.BucketTime.Truncate(time.Hour)) {
		t.Fatalf("bucket not hour-aligned: %v", tick.BucketTime)
	}
}

func TestDerivativesService_RefreshProviderError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("rate limited")
	svc := NewDerivativesService(testTracer, &mockDerivativesProvider{err: wantErr}, &mockDerivativesRepo{})

	if _, err := svc.Refresh(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
}

type mockDerivativesProvider struct {
	tickers []provider.DerivativesTicker
	err     error
}

func (m *mockDerivativesProvider) FetchDerivatives(ctx context.Context) ([]provider.DerivativesTicker, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.tickers, nil
}

type mockDerivativesRepo struct {
	upsertCalls int
	upsertArg   []*domain.DerivativesTick
	upsertErr   error
}

func (m *mockDerivativesRepo) UpsertTicks(ctx context.Context, ticks []*domain.DerivativesTick) error {
	m.upsertCalls++
	m.upsertArg = ticks
	return m.upsertErr
}

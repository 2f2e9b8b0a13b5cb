package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"coinharvest/internal/domain"
)

type mockOnChainProvider struct {
	key  string
	snap *domain.OnChainSnapshot
	err  error

	lastInterval string
	lastBucket   time.Time
}

func (m *mockOnChainProvider) Key() string { return m.key }

func (m *mockOnChainProvider) FetchSnapshot(ctx context.Context, interval string, bucketTime time.Time) (*domain.OnChainSnapshot, error) {
	m.lastInterval = interval
	m.lastBucket = bucketTime
	if m.err != nil {
		return nil, m.err
	}
	return m.snap, nil
}

type mockOnChainRepo struct {
	upsertCalls int
	upsertArg   []*domain.OnChainSnapshot
	upsertErr   error
}

func (m *mockOnChainRepo) UpsertSnapshots(ctx context.Context, snaps []*domain.OnChainSnapshot) error {
	m.upsertCalls++
	m.upsertArg = snaps
	return m.upsertErr
}

func TestOnChainService_RefreshAll(t *testing.T) {
	t.Parallel()

	bucket := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	btc := &mockOnChainProvider{key: "btc_mempool", snap: &domain.OnChainSnapshot{ProviderKey: "btc_mempool", Symbol: "BTC", BucketTime: bucket, Score: 0.4}}
	eth := &mockOnChainProvider{key: "eth_blockscout", snap: &domain.OnChainSnapshot{ProviderKey: "eth_blockscout", Symbol: "ETH", BucketTime: bucket, Score: -0.1}}
	repo := &mockOnChainRepo{}
	svc := NewOnChainService(testTracer, []OnChainProvider{btc, eth}, repo)

	n, err := svc.RefreshAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 || repo.upsertCalls != 1 || len(repo.upsertArg) != 2 {
		t.Fatalf("unexpected writes: n=%d calls=%d snaps=%d", n, repo.upsertCalls, len(repo.upsertArg))
	}
	if btc.lastInterval != "1h" || !btc.lastBucket.Equal(btc.lastBucket.Truncate(time.Hour)) {
		t.Fatalf("expected hour-aligned 1h bucket, got %s %v", btc.lastInterval, btc.lastBucket)
	}
}

func TestOnChainService_OneProviderFailing(t *testing.T) {
	t.Parallel()

	bucket := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	wantErr := errors.New("explorer down")
	providers := []OnChainProvider{
		&mockOnChainProvider{key: "btc_mempool", err: wantErr},
		&mockOnChainProvider{key: "eth_blockscout", snap: &domain.OnChainSnapshot{ProviderKey: "eth_blockscout", Symbol: "ETH", BucketTime: bucket}},
	}
	repo := &mockOnChainRepo{}
	svc := NewOnChainService(testTracer, providers, repo)

	n, err := svc.RefreshAll(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
	// The healthy provider's snapshot still lands.
	if n != 1 || repo.upsertCalls != 1 {
		t.Fatalf("unexpected writes: n=%d calls=%d", n, repo.upsertCalls)
	}
}

func TestOnChainService_UpsertErrorPropagates(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("db gone")
	providers := []OnChainProvider{
		&mockOnChainProvider{key: "btc_mempool", snap: &domain.OnChainSnapshot{ProviderKey: "btc_mempool", Symbol: "BTC"}},
	}
	repo := &mockOnChainRepo{upsertErr: wantErr}
	svc := NewOnChainService(testTracer, providers, repo)

	n, err := svc.RefreshAll(context.Background())
	if !errors.Is(err, wantErr) || n != 0 {
		t.Fatalf("expected upsert error: n=%d err=%v", n, err)
	}
}

func TestOnChainService_AllProvidersFailing(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("explorer down")
	providers := []OnChainProvider{&mockOnChainProvider{key: "btc_mempool", err: wantErr}}
	repo := &mockOnChainRepo{}
	svc := NewOnChainService(testTracer, providers, repo)

	n, err := svc.RefreshAll(context.Background())
	if !errors.Is(err, wantErr) || n != 0 || repo.upsertCalls != 0 {
		t.Fatalf("expected clean failure: n=%d calls=%d err=%v", n, repo.upsertCalls, err)
	}
}

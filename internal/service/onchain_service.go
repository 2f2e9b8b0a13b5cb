package service

import (
	"context"
	"log"
	"time"

	"coinharvest/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type OnChainProvider interface {
	Key() string
	FetchSnapshot(ctx context.Context, interval string, bucketTime time.Time) (*domain.OnChainSnapshot, error)
}

type OnChainRepository interface {
	UpsertSnapshots(ctx context.Context, snaps []*domain.OnChainSnapshot) error
}

// OnChainService polls every configured explorer provider and persists the
// scored snapshots. One provider failing does not stop the others.
type OnChainService struct {
	tracer    trace.Tracer
	providers []OnChainProvider
	repo      OnChainRepository
}

func NewOnChainService(tracer trace.Tracer, providers []OnChainProvider, repo OnChainRepository) *OnChainService {
	return &OnChainService{tracer: tracer, providers: providers, repo: repo}
}

func (s *OnChainService) RefreshAll(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "onchain-service.refresh-all")
	defer span.End()

	bucket := time.Now().UTC().Truncate(time.Hour)

	var snaps []*domain.OnChainSnapshot
	var firstErr error
	for _, p := range s.providers {
		snap, err := p.FetchSnapshot(ctx, "1h", bucket)
		if err != nil {
			log.Printf("onchain provider %s error: %v", p.Key(), err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		snaps = append(snaps, snap)
	}

	if len(snaps) == 0 {
		return 0, firstErr
	}
	if err := s.repo.UpsertSnapshots(ctx, snaps); err != nil {
		return 0, err
	}
	return len(snaps), firstErr
}

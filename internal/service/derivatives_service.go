package service

import (
	"context"
	"time"

	"coinharvest/internal/domain"
	"coinharvest/internal/provider"

	"go.opentelemetry.io/otel/trace"
)

type DerivativesProvider interface {
	FetchDerivatives(ctx context.Context) ([]provider.DerivativesTicker, error)
}

type DerivativesRepository interface {
	UpsertTicks(ctx context.Context, ticks []*domain.DerivativesTick) error
}

// DerivativesService aggregates per-venue derivatives tickers into one row
// per symbol and persists them.
type DerivativesService struct {
	tracer   trace.Tracer
	provider DerivativesProvider
	repo     DerivativesRepository
}

func NewDerivativesService(tracer trace.Tracer, p DerivativesProvider, repo DerivativesRepository) *DerivativesService {
	return &DerivativesService{tracer: tracer, provider: p, repo: repo}
}

func (s *DerivativesService) Refresh(ctx context.Context) (int, error) {
	_, span := s.tracer.Start(ctx, "derivatives-service.refresh")
	defer span.End()

	tickers, err := s.provider.FetchDerivatives(ctx)
	if err != nil {
		return 0, err
	}

	bucket := time.Now().UTC().Truncate(time.Hour)
	ticks := AggregateDerivatives(tickers, bucket)
	if len(ticks) == 0 {
		return 0, nil
	}
	if err := s.repo.UpsertTicks(ctx, ticks); err != nil {
		return 0, err
	}
	return len(ticks), nil
}

// AggregateDerivatives folds venue tickers into one tick per symbol: open
// interest and volume sum across venues, funding/basis/spread are volume-
// weighted averages (falling back to plain averages when volume is zero).
func AggregateDerivatives(tickers []provider.DerivativesTicker, bucket time.Time) []*domain.DerivativesTick {
	type acc struct {
		openInterest float64
		volume       float64
		fundingW     float64
		basisW       float64
		spreadW      float64
		fundingSum   float64
		basisSum     float64
		spreadSum    float64
		venues       int
	}

	// Group by IndexID: Symbol carries the venue's own ticker name
	// ("BTCUSDT", "BTCUSD_PERP"), the index is the normalized asset.
	bySymbol := make(map[string]*acc)
	for _, t := range tickers {
		if !domain.IsSupportedSymbol(t.IndexID) {
			continue
		}
		a, ok := bySymbol[t.IndexID]
		if !ok {
			a = &acc{}
			bySymbol[t.IndexID] = a
		}
		a.openInterest += t.OpenInterest
		a.volume += t.Volume24h
		a.fundingW += t.FundingRate * t.Volume24h
		a.basisW += t.BasisPct * t.Volume24h
		a.spreadW += t.SpreadPct * t.Volume24h
		a.fundingSum += t.FundingRate
		a.basisSum += t.BasisPct
		a.spreadSum += t.SpreadPct
		a.venues++
	}

	out := make([]*domain.DerivativesTick, 0, len(bySymbol))
	for _, symbol := range domain.SupportedSymbols {
		a, ok := bySymbol[symbol]
		if !ok {
			continue
		}
		tick := &domain.DerivativesTick{
			Symbol:       symbol,
			BucketTime:   bucket.UTC(),
			OpenInterest: a.openInterest,
			Volume24h:    a.volume,
			VenueCount:   a.venues,
		}
		if a.volume > 0 {
			tick.FundingRate = a.fundingW / a.volume
			tick.BasisPct = a.basisW / a.volume
			tick.SpreadPct = a.spreadW / a.volume
		} else if a.venues > 0 {
			tick.FundingRate = a.fundingSum / float64(a.venues)
			tick.BasisPct = a.basisSum / float64(a.venues)
			tick.SpreadPct = a.spreadSum / float64(a.venues)
		}
		out = append(out, tick)
	}
	return out
}

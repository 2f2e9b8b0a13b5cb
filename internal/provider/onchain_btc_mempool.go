package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"coinharvest/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

// BTCMempoolOnChainProvider derives a BTC network-health snapshot from
// mempool.space 24h statistics.
type BTCMempoolOnChainProvider struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
}

func NewBTCMempoolOnChainProvider(tracer trace.Tracer, baseURL string) *BTCMempoolOnChainProvider {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = "https://mempool.space"
	}
	return &BTCMempoolOnChainProvider{
		client:  &http.Client{Timeout: 20 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		tracer:  tracer,
	}
}

func (p *BTCMempoolOnChainProvider) Key() string { return "btc_mempool" }

func (p *BTCMempoolOnChainProvider) FetchSnapshot(ctx context.Context, interval string, bucketTime time.Time) (*domain.OnChainSnapshot, error) {
	_, span := p.tracer.Start(ctx, "onchain.btc-mempool.fetch")
	defer span.End()

	var rows []struct {
		Count           float64 `json:"count"`
		VBytesPerSecond float64 `json:"vbytes_per_second"`
		MinFee          float64 `json:"min_fee"`
		TotalFee        float64 `json:"total_fee"`
	}
	if err := getJSON(ctx, p.client, p.baseURL+"/api/v1/statistics/24h", "btc mempool", &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("btc mempool payload has no rows")
	}

	r := rows[0]
	countNorm := clamp((r.Count-120000.0)/180000.0, -1, 1)
	throughputNorm := clamp((r.VBytesPerSecond-1200.0)/2400.0, -1, 1)
	feeLoadNorm := clamp((r.MinFee-5.0)/40.0, -1, 1)
	totalFeeNorm := clamp((r.TotalFee-2_000_000.0)/8_000_000.0, -1, 1)

	score := clamp((0.35*countNorm)+(0.35*throughputNorm)+(0.15*totalFeeNorm)-(0.15*feeLoadNorm), -1, 1)
	confidence := confidenceFromScore(score)

	return &domain.OnChainSnapshot{
		ProviderKey: p.Key(),
		Symbol:      "BTC",
		Interval:    interval,
		BucketTime:  bucketTime.UTC(),
		Score:       score,
		Confidence:  confidence,
		Metrics: map[string]float64{
			"count":             r.Count,
			"vbytes_per_second": r.VBytesPerSecond,
			"min_fee":           r.MinFee,
			"total_fee":         r.TotalFee,
		},
	}, nil
}

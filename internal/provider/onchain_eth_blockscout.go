package provider

import (
	"context"
	"net/http"
	"strings"
	"time"

	"coinharvest/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

// ETHBlockscoutOnChainProvider derives an ETH network-health snapshot from
// blockscout network stats.
type ETHBlockscoutOnChainProvider struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
}

func NewETHBlockscoutOnChainProvider(tracer trace.Tracer, baseURL string) *ETHBlockscoutOnChainProvider {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = "https://eth.blockscout.com"
	}
	return &ETHBlockscoutOnChainProvider{
		client:  &http.Client{Timeout: 20 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		tracer:  tracer,
	}
}

func (p *ETHBlockscoutOnChainProvider) Key() string { return "eth_blockscout" }

func (p *ETHBlockscoutOnChainProvider) FetchSnapshot(ctx context.Context, interval string, bucketTime time.Time) (*domain.OnChainSnapshot, error) {
	_, span := p.tracer.Start(ctx, "onchain.eth-blockscout.fetch")
	defer span.End()

	var payload struct {
		TransactionsToday            any `json:"transactions_today"`
		NetworkUtilizationPercentage any `json:"network_utilization_percentage"`
		GasPrices                    struct {
			Average any `json:"average"`
		} `json:"gas_prices"`
	}
	if err := getJSON(ctx, p.client, p.baseURL+"/api/v2/stats", "eth blockscout", &payload); err != nil {
		return nil, err
	}

	txToday := asFloat(payload.TransactionsToday)
	utilization := asFloat(payload.NetworkUtilizationPercentage)
	gasAvg := asFloat(payload.GasPrices.Average)

	txNorm := clamp((txToday-1_500_000.0)/1_500_000.0, -1, 1)
	utilNorm := clamp((utilization-45.0)/55.0, -1, 1)
	gasPenalty := clamp((gasAvg-25.0)/120.0, -1, 1)

	score := clamp((0.45*txNorm)+(0.35*utilNorm)-(0.20*gasPenalty), -1, 1)
	confidence := confidenceFromScore(score)

	return &domain.OnChainSnapshot{
		ProviderKey: p.Key(),
		Symbol:      "ETH",
		Interval:    interval,
		BucketTime:  bucketTime.UTC(),
		Score:       score,
		Confidence:  confidence,
		Metrics: map[string]float64{
			"transactions_today":             txToday,
			"network_utilization_percentage": utilization,
			"gas_price_average":              gasAvg,
		},
	}, nil
}

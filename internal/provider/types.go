package provider

import "time"

// FearGreedPoint is one alternative.me fear & greed index reading.
type FearGreedPoint struct {
	Value            int
	Classification   string
	Timestamp        time.Time
	TimeUntilUpdateS int
}

// ContentItem is a fetched-but-not-yet-persisted news item.
type ContentItem struct {
	Source       string
	SourceItemID string
	Title        string
	URL          string
	Excerpt      string
	Author       string
	PublishedAt  time.Time
	Metadata     map[string]any
}

// DerivativesTicker is one venue's derivatives ticker as reported by
// CoinGecko /derivatives, already parsed to numbers.
type DerivativesTicker struct {
	Market       string
	Symbol       string
	IndexID      string
	Price        float64
	OpenInterest float64
	Volume24h    float64
	FundingRate  float64
	BasisPct     float64
	SpreadPct    float64
}

package domain

import "time"

// IndicatorRow holds the textbook technical indicators computed from stored
// candles. Keyed by (symbol, interval, open_time).
type IndicatorRow struct {
	Symbol    string    `json:"symbol"`
	Interval  string    `json:"interval"`
	OpenTime  time.Time `json:"open_time"`
	SMA20     *float64  `json:"sma_20,omitempty"`
	EMA12     *float64  `json:"ema_12,omitempty"`
	EMA26     *float64  `json:"ema_26,omitempty"`
	RSI14     *float64  `json:"rsi_14,omitempty"`
	MACDLine  *float64  `json:"macd_line,omitempty"`
	MACDSig   *float64  `json:"macd_signal,omitempty"`
	MACDHist  *float64  `json:"macd_hist,omitempty"`
	BBUpper   *float64  `json:"bb_upper,omitempty"`
	BBMiddle  *float64  `json:"bb_middle,omitempty"`
	BBLower   *float64  `json:"bb_lower,omitempty"`
	VolumeZ24 *float64  `json:"volume_z_24,omitempty"`
}

// OnChainSnapshot is one explorer observation with a fixed-weight health
// score in [-1, 1]. Keyed by (provider_key, symbol, bucket_time).
type OnChainSnapshot struct {
	ProviderKey string             `json:"provider_key"`
	Symbol      string             `json:"symbol"`
	Interval    string             `json:"interval"`
	BucketTime  time.Time          `json:"bucket_time"`
	Score       float64            `json:"score"`
	Confidence  float64            `json:"confidence"`
	Metrics     map[string]float64 `json:"metrics"`
}

// IntelItem is a normalized news/content row. Sentiment columns are filled in
// by the sentiment collector after ingestion; an upsert must never clear them.
type IntelItem struct {
	ID                  int64
	Source              string
	SourceItemID        string
	Title               string
	URL                 string
	Excerpt             string
	Author              string
	PublishedAt         time.Time
	FetchedAt           time.Time
	MetadataJSON        string
	SentimentScore      *float64
	SentimentConfidence *float64
	SentimentLabel      string
	SentimentModel      string
	ScoredAt            *time.Time
	Symbols             []string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SentimentHourlyStat is one scored-item aggregate for a (symbol, hour)
// bucket, as read back from intel_items.
type SentimentHourlyStat struct {
	Symbol        string
	BucketTime    time.Time
	AvgScore      float64
	AvgConfidence float64
	ItemCount     int
}

// SentimentHourly is the per (symbol, hour) sentiment aggregate joined into
// the feature table.
type SentimentHourly struct {
	Symbol         string    `json:"symbol"`
	BucketTime     time.Time `json:"bucket_time"`
	AvgScore       *float64  `json:"avg_score,omitempty"`
	AvgConfidence  *float64  `json:"avg_confidence,omitempty"`
	ItemCount      int       `json:"item_count"`
	FearGreedValue *int      `json:"fear_greed_value,omitempty"`
	FearGreedNorm  *float64  `json:"fear_greed_norm,omitempty"`
}

// DerivativesTick aggregates derivatives tickers across venues for one
// symbol. Keyed by (symbol, bucket_time).
type DerivativesTick struct {
	Symbol       string    `json:"symbol"`
	BucketTime   time.Time `json:"bucket_time"`
	OpenInterest float64   `json:"open_interest"`
	Volume24h    float64   `json:"volume_24h"`
	FundingRate  float64   `json:"funding_rate"`
	BasisPct     float64   `json:"basis_pct"`
	SpreadPct    float64   `json:"spread_pct"`
	VenueCount   int       `json:"venue_count"`
}

// FeatureRow is the flattened ML feature record materialized from candles,
// indicators, sentiment, onchain, and derivatives data. Columns sourced from
// tables that have no row for the bucket stay nil, and an upsert never
// overwrites a populated column with nil.
type FeatureRow struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	OpenTime time.Time `json:"open_time"`

	Close   *float64 `json:"close,omitempty"`
	Ret1H   *float64 `json:"ret_1h,omitempty"`
	Ret4H   *float64 `json:"ret_4h,omitempty"`
	Ret24H  *float64 `json:"ret_24h,omitempty"`
	Vol24H  *float64 `json:"volatility_24h,omitempty"`
	VolZ24H *float64 `json:"volume_z_24h,omitempty"`

	RSI14    *float64 `json:"rsi_14,omitempty"`
	MACDHist *float64 `json:"macd_hist,omitempty"`
	BBPos    *float64 `json:"bb_pos,omitempty"`
	BBWidth  *float64 `json:"bb_width,omitempty"`

	SentimentScore *float64 `json:"sentiment_score,omitempty"`
	SentimentConf  *float64 `json:"sentiment_confidence,omitempty"`
	NewsCount      *int     `json:"news_count,omitempty"`
	FearGreedNorm  *float64 `json:"fear_greed_norm,omitempty"`

	OnChainScore *float64 `json:"onchain_score,omitempty"`

	OpenInterest    *float64 `json:"open_interest,omitempty"`
	OpenInterestChg *float64 `json:"open_interest_chg,omitempty"`
	FundingRate     *float64 `json:"funding_rate,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// RunStatus is the terminal state of one collector run.
type RunStatus string

const (
	RunStatusOK      RunStatus = "ok"
	RunStatusPartial RunStatus = "partial"
	RunStatusError   RunStatus = "error"
)

// CollectorRun is one ledger entry per collector execution; /status reads the
// latest row per collector.
type CollectorRun struct {
	ID         int64      `json:"id"`
	Collector  string     `json:"collector"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     RunStatus  `json:"status"`
	Items      int        `json:"items"`
	ErrorText  string     `json:"error,omitempty"`
}

// GapReport summarizes missing hourly buckets for one symbol over a window.
type GapReport struct {
	Symbol       string    `json:"symbol"`
	Table        string    `json:"table"`
	WindowStart  time.Time `json:"window_start"`
	WindowEnd    time.Time `json:"window_end"`
	ExpectedRows int       `json:"expected_rows"`
	PresentRows  int       `json:"present_rows"`
	MissingRows  int       `json:"missing_rows"`
}

// Collector names as used in collector_runs, /collect triggers, and metrics.
const (
	CollectorPrices      = "prices"
	CollectorCandles     = "candles"
	CollectorIndicators  = "indicators"
	CollectorOnChain     = "onchain"
	CollectorNews        = "news"
	CollectorSentiment   = "sentiment"
	CollectorDerivatives = "derivatives"
	CollectorFeatures    = "features"
	CollectorBackfill    = "backfill"
)

// KnownCollectors lists every triggerable collector.
var KnownCollectors = []string{
	CollectorPrices,
	CollectorCandles,
	CollectorIndicators,
	CollectorOnChain,
	CollectorNews,
	CollectorSentiment,
	CollectorDerivatives,
	CollectorFeatures,
}

// IsKnownCollector reports whether name is a triggerable collector.
func IsKnownCollector(name string) bool {
	for _, c := range KnownCollectors {
		if c == name {
			return true
		}
	}
	return false
}

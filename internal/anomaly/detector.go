// Package anomaly flags unusual candle buckets with an isolation forest over
// simple return/volume features. Flagged buckets surface in /status and the
// dashboard; they are advisory and never block collection.
package anomaly

import (
	"math"
	"sort"
	"time"

	"coinharvest/internal/domain"
	"coinharvest/internal/ta"

	"github.com/narumiruna/go-iforest/pkg/iforest"
)

// Anomaly is one flagged candle bucket.
type Anomaly struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	OpenTime time.Time `json:"open_time"`
	Score    float64   `json:"score"`
}

type Detector struct {
	minSamples int
	topK       int
}

func NewDetector() *Detector {
	return &Detector{minSamples: 48, topK: 5}
}

// DetectCandles fits a forest over per-bucket features (log return, range
// ratio, volume z-score) and returns the highest-scoring buckets. Returns nil
// when there is not enough history to fit.
func (d *Detector) DetectCandles(symbol, interval string, candles []*domain.Candle) []Anomaly {
	if len(candles) < d.minSamples {
		return nil
	}

	closes := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}
	volZ := ta.RollingZSeries(volumes, 24)

	matrix := make([][]float64, 0, len(candles)-1)
	times := make([]time.Time, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		ret := math.Log(closes[i] / closes[i-1])
		rangeRatio := 0.0
		if candles[i].Close != 0 {
			rangeRatio = (candles[i].High - candles[i].Low) / candles[i].Close
		}
		vz := 0.0
		if !math.IsNaN(volZ[i]) {
			vz = volZ[i]
		}
		matrix = append(matrix, []float64{ret, rangeRatio, vz})
		times = append(times, candles[i].OpenTime)
	}
	if len(matrix) < d.minSamples {
		return nil
	}

	forest := iforest.New()
	forest.Fit(matrix)
	scores := forest.Score(matrix)
	if len(scores) != len(matrix) {
		return nil
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, 0, len(scores))
	for i, s := range scores {
		ranked = append(ranked, scored{idx: i, score: s})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	// Isolation forest scores cluster near 0.5 for ordinary points; only
	// clearly separated buckets are worth surfacing.
	out := make([]Anomaly, 0, d.topK)
	for _, r := range ranked {
		if len(out) >= d.topK || r.score < 0.6 {
			break
		}
		out = append(out, Anomaly{
			Symbol:   symbol,
			Interval: interval,
			OpenTime: times[r.idx].UTC(),
			Score:    r.score,
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

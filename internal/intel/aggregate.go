package intel

import (
	"sort"
	"time"

	"coinharvest/internal/domain"
	"coinharvest/internal/provider"
)

// BuildHourlyRows merges per-symbol hourly item aggregates with fear & greed
// index points into sentiment_hourly rows. The index is market-wide, so its
// value is attached to every tracked symbol for the hours it covers, even
// when no items mention that symbol.
func BuildHourlyRows(stats []domain.SentimentHourlyStat, fgPoints []provider.FearGreedPoint) []*domain.SentimentHourly {
	type key struct {
		symbol string
		hour   time.Time
	}

	rows := make(map[key]*domain.SentimentHourly, len(stats))
	for _, st := range stats {
		hour := st.BucketTime.UTC().Truncate(time.Hour)
		k := key{symbol: st.Symbol, hour: hour}
		avgScore := st.AvgScore
		avgConf := st.AvgConfidence
		rows[k] = &domain.SentimentHourly{
			Symbol:        st.Symbol,
			BucketTime:    hour,
			AvgScore:      &avgScore,
			AvgConfidence: &avgConf,
			ItemCount:     st.ItemCount,
		}
	}

	for _, fg := range fgPoints {
		hour := fg.Timestamp.UTC().Truncate(time.Hour)
		value := fg.Value
		norm := fg.Normalized()
		for _, symbol := range domain.SupportedSymbols {
			k := key{symbol: symbol, hour: hour}
			row, ok := rows[k]
			if !ok {
				row = &domain.SentimentHourly{Symbol: symbol, BucketTime: hour}
				rows[k] = row
			}
			v := value
			n := norm
			row.FearGreedValue = &v
			row.FearGreedNorm = &n
		}
	}

	out := make([]*domain.SentimentHourly, 0, len(rows))
	for _, row := range rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].BucketTime.Before(out[j].BucketTime)
	})
	return out
}

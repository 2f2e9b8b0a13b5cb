// Package ta implements the textbook technical-indicator math used by the
// indicator collector and the feature updater. Series functions return slices
// aligned with the input; positions with insufficient history are NaN.
package ta

import "math"

// MeanStd returns the mean and population standard deviation of values.
func MeanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

// SMASeries computes the simple moving average over a fixed window.
func SMASeries(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMASeries computes the exponential moving average with alpha = 2/(period+1),
// seeded with the first value.
func EMASeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	if period <= 1 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	alpha := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSISeries computes Wilder's RSI over closes.
func RSISeries(closes []float64, period int) []float64 {
	series := nanSlice(len(closes))
	if period <= 0 || len(closes) <= period {
		return series
	}

	var gainSum float64
	var lossSum float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	series[period] = rsiFromAvg(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain := math.Max(delta, 0)
		loss := math.Max(-delta, 0)
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		series[i] = rsiFromAvg(avgGain, avgLoss)
	}
	return series
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// MACDSeries returns the MACD line (fast EMA - slow EMA) and its signal line.
func MACDSeries(values []float64, fast, slow, signal int) ([]float64, []float64) {
	if len(values) == 0 {
		return nil, nil
	}
	fastEMA := EMASeries(values, fast)
	slowEMA := EMASeries(values, slow)
	macdLine := make([]float64, len(values))
	for i := range values {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := EMASeries(macdLine, signal)
	return macdLine, signalLine
}

// BollingerSeries returns the middle, upper, and lower Bollinger bands.
func BollingerSeries(values []float64, period int, stdDevs float64) ([]float64, []float64, []float64) {
	if len(values) == 0 {
		return nil, nil, nil
	}
	middle := nanSlice(len(values))
	upper := nanSlice(len(values))
	lower := nanSlice(len(values))
	if period <= 0 {
		return middle, upper, lower
	}
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		mean, std := MeanStd(window)
		middle[i] = mean
		upper[i] = mean + stdDevs*std
		lower[i] = mean - stdDevs*std
	}
	return middle, upper, lower
}

// RollingZSeries computes, for each position, the z-score of the value
// against the trailing window (excluding the value itself).
func RollingZSeries(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window <= 0 {
		return out
	}
	for i := window; i < len(values); i++ {
		mean, std := MeanStd(values[i-window : i])
		if std == 0 {
			out[i] = 0
			continue
		}
		out[i] = (values[i] - mean) / std
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

package ta

import (
	"math"
	"testing"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestMeanStd(t *testing.T) {
	t.Parallel()

	mean, std := MeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if !almostEqual(mean, 5, 1e-9) {
		t.Fatalf("mean = %f, want 5", mean)
	}
	if !almostEqual(std, 2, 1e-9) {
		t.Fatalf("std = %f, want 2", std)
	}

	mean, std = MeanStd(nil)
	if mean != 0 || std != 0 {
		t.Fatalf("empty input: mean=%f std=%f, want zeros", mean, std)
	}
}

func TestSMASeries(t *testing.T) {
	t.Parallel()

	out := SMASeries([]float64{1, 2, 3, 4, 5}, 3)
	if len(out) != 5 {
		t.Fatalf("len = %d, want 5", len(out))
	}
	if !math.IsNaN(out[0]) || !math.IsNaN(out[1]) {
		t.Fatalf("warmup positions should be NaN: %v", out)
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if !almostEqual(out[i+2], w, 1e-9) {
			t.Fatalf("out[%d] = %f, want %f", i+2, out[i+2], w)
		}
	}
}

func TestSMASeriesShortInput(t *testing.T) {
	t.Parallel()

	out := SMASeries([]float64{1, 2}, 3)
	for i, v := range out {
		if !math.IsNaN(v) {
			t.Fatalf("out[%d] = %f, want NaN", i, v)
		}
	}
}

func TestEMASeries(t *testing.T) {
	t.Parallel()

	out := EMASeries([]float64{10, 20, 30}, 3)
	// alpha = 0.5, seeded with first value.
	if !almostEqual(out[0], 10, 1e-9) {
		t.Fatalf("out[0] = %f, want 10", out[0])
	}
	if !almostEqual(out[1], 15, 1e-9) {
		t.Fatalf("out[1] = %f, want 15", out[1])
	}
	if !almostEqual(out[2], 22.5, 1e-9) {
		t.Fatalf("out[2] = %f, want 22.5", out[2])
	}
}

func TestRSISeriesAllGains(t *testing.T) {
	t.Parallel()

	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	out := RSISeries(closes, 14)
	if len(out) != len(closes) {
		t.Fatalf("len = %d, want %d", len(out), len(closes))
	}
	for i := 0; i < 14; i++ {
		if !math.IsNaN(out[i]) {
			t.Fatalf("out[%d] = %f, want NaN during warmup", i, out[i])
		}
	}
	for i := 14; i < len(out); i++ {
		if !almostEqual(out[i], 100, 1e-9) {
			t.Fatalf("out[%d] = %f, want 100 for monotonic gains", i, out[i])
		}
	}
}

func TestRSISeriesShortInput(t *testing.T) {
	t.Parallel()

	out := RSISeries([]float64{1, 2, 3}, 14)
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	for i, v := range out {
		if !math.IsNaN(v) {
			t.Fatalf("out[%d] = %f, want NaN", i, v)
		}
	}
}

func TestRSISeriesBounded(t *testing.T) {
	t.Parallel()

	closes := []float64{44, 44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.1, 45.42,
		45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46.0, 46.03, 46.41, 46.22}
	out := RSISeries(closes, 14)
	for i := 14; i < len(out); i++ {
		if out[i] < 0 || out[i] > 100 {
			t.Fatalf("out[%d] = %f, outside [0,100]", i, out[i])
		}
	}
}

func TestMACDSeries(t *testing.T) {
	t.Parallel()

	values := make([]float64, 60)
	for i := range values {
		values[i] = 100 + float64(i)
	}
	line, signal := MACDSeries(values, 12, 26, 9)
	if len(line) != len(values) || len(signal) != len(values) {
		t.Fatalf("series lengths: line=%d signal=%d, want %d", len(line), len(signal), len(values))
	}
	// In a steady uptrend the fast EMA sits above the slow EMA.
	if line[len(line)-1] <= 0 {
		t.Fatalf("MACD line = %f, want positive in an uptrend", line[len(line)-1])
	}
}

func TestBollingerSeriesConstantInput(t *testing.T) {
	t.Parallel()

	values := make([]float64, 25)
	for i := range values {
		values[i] = 50
	}
	middle, upper, lower := BollingerSeries(values, 20, 2)
	last := len(values) - 1
	if !almostEqual(middle[last], 50, 1e-9) {
		t.Fatalf("middle = %f, want 50", middle[last])
	}
	// Zero variance collapses the bands onto the mean.
	if !almostEqual(upper[last], 50, 1e-9) || !almostEqual(lower[last], 50, 1e-9) {
		t.Fatalf("bands = (%f, %f), want both 50", upper[last], lower[last])
	}
	if !math.IsNaN(middle[0]) {
		t.Fatalf("middle[0] = %f, want NaN during warmup", middle[0])
	}
}

func TestBollingerSeriesSpread(t *testing.T) {
	t.Parallel()

	values := []float64{1, 2, 3, 4, 5}
	middle, upper, lower := BollingerSeries(values, 5, 2)
	last := len(values) - 1
	if !almostEqual(middle[last], 3, 1e-9) {
		t.Fatalf("middle = %f, want 3", middle[last])
	}
	if upper[last] <= middle[last] || lower[last] >= middle[last] {
		t.Fatalf("bands not spread around the mean: %f %f %f", lower[last], middle[last], upper[last])
	}
}

func TestRollingZSeries(t *testing.T) {
	t.Parallel()

	values := []float64{10, 10, 10, 10, 20}
	out := RollingZSeries(values, 4)
	for i := 0; i < 4; i++ {
		if !math.IsNaN(out[i]) {
			t.Fatalf("out[%d] = %f, want NaN during warmup", i, out[i])
		}
	}
	// Zero-variance trailing window pins the z-score to 0.
	if out[4] != 0 {
		t.Fatalf("out[4] = %f, want 0 for zero-variance window", out[4])
	}

	values = []float64{1, 3, 1, 3, 5}
	out = RollingZSeries(values, 4)
	mean, std := MeanStd(values[:4])
	want := (5 - mean) / std
	if !almostEqual(out[4], want, 1e-9) {
		t.Fatalf("out[4] = %f, want %f", out[4], want)
	}
}

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// getJSON performs a GET against a JSON endpoint and decodes the body into
// out. source names the upstream in error messages.
func getJSON(ctx context.Context, client *http.Client, url, source string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s error %d: %s", source, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s payload: %w", source, err)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func confidenceFromScore(score float64) float64 {
	return clamp(0.35+(0.65*math.Abs(score)), 0, 1)
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		return parseFloatString(n)
	default:
		return 0
	}
}

func parseFloatString(v string) float64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return n
}

func sanitizeText(in string, maxLen int) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return ""
	}
	in = strings.ReplaceAll(in, "\n", " ")
	in = strings.ReplaceAll(in, "\r", " ")
	in = strings.Join(strings.Fields(in), " ")
	if maxLen > 0 && len(in) > maxLen {
		in = in[:maxLen]
	}
	return in
}

// Package repository holds one repository per table. All writes are
// idempotent upserts over natural keys; columns that a later collector fills
// in (sentiment, feature joins) are guarded with COALESCE so a re-run never
// clears populated data.
package repository

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"coinharvest/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool is the subset of pgxpool.Pool the repositories need; tests provide
// hand-rolled fakes.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func normalizeSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return ""
	}
	if !domain.IsSupportedSymbol(symbol) {
		return ""
	}
	return symbol
}

func normalizeSymbolList(symbols []string) []string {
	if len(symbols) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		norm := normalizeSymbol(symbol)
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	sort.Strings(out)
	return out
}

func ensureJSON(raw string) string {
	if raw == "" {
		return "{}"
	}
	if json.Valid([]byte(raw)) {
		return raw
	}
	encoded, err := json.Marshal(map[string]string{"raw": raw})
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullTime(v *time.Time) any {
	if v == nil || v.IsZero() {
		return nil
	}
	return v.UTC()
}

func nullIfZeroTime(v time.Time) any {
	if v.IsZero() {
		return nil
	}
	return v.UTC()
}

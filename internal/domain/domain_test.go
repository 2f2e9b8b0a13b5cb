package domain

import "testing"

func TestIsSupportedSymbol(t *testing.T) {
	t.Parallel()

	for _, symbol := range SupportedSymbols {
		if !IsSupportedSymbol(symbol) {
			t.Fatalf("%s should be supported", symbol)
		}
	}
	for _, symbol := range []string{"", "btc", "FAKE"} {
		if IsSupportedSymbol(symbol) {
			t.Fatalf("%q should not be supported", symbol)
		}
	}
}

func TestIsSupportedInterval(t *testing.T) {
	t.Parallel()

	for _, interval := range SupportedIntervals {
		if !IsSupportedInterval(interval) {
			t.Fatalf("%s should be supported", interval)
		}
	}
	for _, interval := range []string{"", "2h", "1w"} {
		if IsSupportedInterval(interval) {
			t.Fatalf("%q should not be supported", interval)
		}
	}
}

func TestCoinGeckoIDRoundTrip(t *testing.T) {
	t.Parallel()

	for symbol, id := range CoinGeckoID {
		if got := CoinGeckoIDToSymbol[id]; got != symbol {
			t.Fatalf("reverse mapping broken for %s: got %s", symbol, got)
		}
	}
	if len(CoinGeckoID) != len(SupportedSymbols) {
		t.Fatalf("symbol list and id map out of sync: %d vs %d", len(SupportedSymbols), len(CoinGeckoID))
	}
}

func TestIsKnownCollector(t *testing.T) {
	t.Parallel()

	for _, name := range KnownCollectors {
		if !IsKnownCollector(name) {
			t.Fatalf("%s should be known", name)
		}
	}
	if IsKnownCollector("") || IsKnownCollector("everything") {
		t.Fatal("unknown names should not be triggerable")
	}
	// Backfill has its own endpoint and lock; it is not a /collect target.
	if IsKnownCollector(CollectorBackfill) {
		t.Fatal("backfill must not be triggerable via the collector registry")
	}
}

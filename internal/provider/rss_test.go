package provider

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

func TestRSSFetchFeed(t *testing.T) {
	p := NewRSSProvider(trace.NewNoopTracerProvider().Tracer("test"))
	p.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		xml := `<?xml version="1.0"?><rss version="2.0"><channel><title>Example Feed</title><item><title>ETH adoption rises</title><link>https://news.example/eth</link><description><![CDATA[<p>Ethereum growth continues</p>]]></description><guid>guid-1</guid><pubDate>Fri, 13 Feb 2026 10:00:00 +0000</pubDate><author>Reporter</author></item></channel></rss>`
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewBufferString(xml)),
			Header:     make(http.Header),
		}, nil
	})}

	items, err := p.FetchFeed(context.Background(), "https://news.example/rss", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	item := items[0]
	if item.Source != "news" || item.SourceItemID != "guid-1" {
		t.Fatalf("unexpected item: %+v", item)
	}
	if item.Excerpt != "Ethereum growth continues" {
		t.Fatalf("expected html stripped excerpt, got %q", item.Excerpt)
	}
	if item.Author != "Reporter" {
		t.Fatalf("unexpected author: %q", item.Author)
	}
	want := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	if !item.PublishedAt.Equal(want) {
		t.Fatalf("unexpected published time: %v", item.PublishedAt)
	}
	if item.Metadata["channel"] != "Example Feed" {
		t.Fatalf("unexpected metadata: %+v", item.Metadata)
	}
}

func TestRSSFetchFeedCapsItems(t *testing.T) {
	p := NewRSSProvider(trace.NewNoopTracerProvider().Tracer("test"))
	p.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		xml := `<?xml version="1.0"?><rss version="2.0"><channel><title>Feed</title>` +
			`<item><title>One</title><guid>1</guid></item>` +
			`<item><title>Two</title><guid>2</guid></item>` +
			`<item><title>Three</title><guid>3</guid></item>` +
			`</channel></rss>`
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewBufferString(xml)),
			Header:     make(http.Header),
		}, nil
	})}

	items, err := p.FetchFeed(context.Background(), "https://news.example/rss", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected capped to 2 items, got %d", len(items))
	}
}

func TestRSSFetchFeedEmptyURL(t *testing.T) {
	p := NewRSSProvider(trace.NewNoopTracerProvider().Tracer("test"))
	if _, err := p.FetchFeed(context.Background(), "  ", 10); err == nil {
		t.Fatal("expected error for empty feed url")
	}
}

func TestRSSFetchFeedHTTPError(t *testing.T) {
	p := NewRSSProvider(trace.NewNoopTracerProvider().Tracer("test"))
	p.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusBadGateway,
			Body:       io.NopCloser(bytes.NewBufferString("upstream down")),
			Header:     make(http.Header),
		}, nil
	})}

	if _, err := p.FetchFeed(context.Background(), "https://news.example/rss", 10); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestParseRSSDate(t *testing.T) {
	want := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	cases := []string{
		"Fri, 13 Feb 2026 10:00:00 +0000",
		"2026-02-13T10:00:00Z",
	}
	for _, in := range cases {
		if got := parseRSSDate(in); !got.Equal(want) {
			t.Fatalf("parseRSSDate(%q) = %v, want %v", in, got, want)
		}
	}
	if got := parseRSSDate("not a date"); !got.IsZero() {
		t.Fatalf("expected zero time for garbage, got %v", got)
	}
}

func TestHTMLStrip(t *testing.T) {
	if got := htmlStrip(`<p>Hello <b>world</b></p>`); got != "Hello world" {
		t.Fatalf("unexpected strip result: %q", got)
	}
	if got := htmlStrip("   "); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}

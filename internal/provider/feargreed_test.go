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

func TestFearGreedFetchLatest(t *testing.T) {
	p := NewFearGreedProvider(trace.NewNoopTracerProvider().Tracer("test"))
	p.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/fng/" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		body := `{"data":[{"value":"72","value_classification":"Greed","timestamp":"1767312000","time_until_update":"1200"}]}`
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewBufferString(body)),
			Header:     make(http.Header),
		}, nil
	})}

	point, err := p.FetchLatest(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if point.Value != 72 || point.Classification != "Greed" {
		t.Fatalf("unexpected point: %+v", point)
	}
	if !point.Timestamp.Equal(time.Unix(1767312000, 0).UTC()) {
		t.Fatalf("unexpected timestamp: %v", point.Timestamp)
	}
	if point.TimeUntilUpdateS != 1200 {
		t.Fatalf("unexpected update window: %d", point.TimeUntilUpdateS)
	}
}

func TestFearGreedFetchLatestMillisTimestamp(t *testing.T) {
	p := NewFearGreedProvider(trace.NewNoopTracerProvider().Tracer("test"))
	p.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		body := `{"data":[{"value":"30","value_classification":"Fear","timestamp":"1767312000000"}]}`
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewBufferString(body)),
			Header:     make(http.Header),
		}, nil
	})}

	point, err := p.FetchLatest(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !point.Timestamp.Equal(time.Unix(1767312000, 0).UTC()) {
		t.Fatalf("millisecond timestamps should collapse to seconds, got %v", point.Timestamp)
	}
}

func TestFearGreedFetchLatestEmptyData(t *testing.T) {
	p := NewFearGreedProvider(trace.NewNoopTracerProvider().Tracer("test"))
	p.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewBufferString(`{"data":[]}`)),
			Header:     make(http.Header),
		}, nil
	})}

	if _, err := p.FetchLatest(context.Background()); err == nil {
		t.Fatal("expected error for empty data")
	}
}

func TestFearGreedNormalized(t *testing.T) {
	cases := map[int]float64{
		0:   -1,
		25:  -0.5,
		50:  0,
		75:  0.5,
		100: 1,
	}
	for value, want := range cases {
		fg := &FearGreedPoint{Value: value}
		if got := fg.Normalized(); got != want {
			t.Fatalf("Normalized(%d) = %f, want %f", value, got, want)
		}
	}
}

// Package mcp exposes the collected market data as Model Context Protocol
// tools, so LLM agents can query prices, candles, features, and collector
// status over stdio or streamable HTTP.
package mcp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"coinharvest/internal/domain"
	"coinharvest/internal/service"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type PriceReader interface {
	GetCurrentPrices(ctx context.Context) ([]*domain.PriceSnapshot, error)
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]*domain.Candle, error)
}

type FeatureReader interface {
	GetFeatures(ctx context.Context, symbol, interval string, limit int) ([]*domain.FeatureRow, error)
}

type StatusReader interface {
	Status(ctx context.Context) (*service.Status, error)
}

// Server wires the data services into MCP tools.
type Server struct {
	prices   PriceReader
	features FeatureReader
	status   StatusReader
	timeout  time.Duration

	impl *mcp.Server
}

func NewServer(prices PriceReader, features FeatureReader, status StatusReader, timeoutSecs int) *Server {
	if timeoutSecs <= 0 {
		timeoutSecs = 30
	}
	s := &Server{
		prices:   prices,
		features: features,
		status:   status,
		timeout:  time.Duration(timeoutSecs) * time.Second,
	}

	impl := mcp.NewServer(&mcp.Implementation{
		Name:    "coinharvest",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(impl, &mcp.Tool{
		Name:        "get_prices",
		Description: "Current USD prices, 24h change, and 24h volume for all tracked crypto assets.",
	}, s.getPrices)
	mcp.AddTool(impl, &mcp.Tool{
		Name:        "get_candles",
		Description: "Historical OHLCV candles for one symbol and interval (5m, 15m, 1h, 4h, 1d).",
	}, s.getCandles)
	mcp.AddTool(impl, &mcp.Tool{
		Name:        "get_features",
		Description: "Flattened per-hour ML feature rows (returns, indicators, sentiment, onchain, derivatives) for one symbol.",
	}, s.getFeatures)
	mcp.AddTool(impl, &mcp.Tool{
		Name:        "get_status",
		Description: "Latest run per collector, detected data gaps, and flagged anomalies.",
	}, s.getStatus)

	s.impl = impl
	return s
}

// RunStdio serves MCP over stdin/stdout until ctx is cancelled.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.impl.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler returns the streamable-HTTP endpoint handler.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.impl
	}, nil)
}

type pricesArgs struct{}

type pricesResult struct {
	Prices []*domain.PriceSnapshot `json:"prices"`
}

func (s *Server) getPrices(ctx context.Context, req *mcp.CallToolRequest, args pricesArgs) (*mcp.CallToolResult, pricesResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prices, err := s.prices.GetCurrentPrices(ctx)
	if err != nil {
		return nil, pricesResult{}, err
	}
	return nil, pricesResult{Prices: prices}, nil
}

type candlesArgs struct {
	Symbol   string `json:"symbol" jsonschema:"asset symbol, e.g. BTC"`
	Interval string `json:"interval,omitempty" jsonschema:"candle interval, defaults to 1h"`
	Limit    int    `json:"limit,omitempty" jsonschema:"number of candles, defaults to 100"`
}

type candlesResult struct {
	Symbol   string           `json:"symbol"`
	Interval string           `json:"interval"`
	Candles  []*domain.Candle `json:"candles"`
}

func (s *Server) getCandles(ctx context.Context, req *mcp.CallToolRequest, args candlesArgs) (*mcp.CallToolResult, candlesResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	symbol := strings.ToUpper(strings.TrimSpace(args.Symbol))
	if !domain.IsSupportedSymbol(symbol) {
		return nil, candlesResult{}, fmt.Errorf("unsupported symbol %q (supported: %s)", args.Symbol, strings.Join(domain.SupportedSymbols, ", "))
	}
	interval := args.Interval
	if interval == "" {
		interval = "1h"
	}
	if !domain.IsSupportedInterval(interval) {
		return nil, candlesResult{}, fmt.Errorf("unsupported interval %q (supported: %s)", interval, strings.Join(domain.SupportedIntervals, ", "))
	}
	limit := args.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	candles, err := s.prices.GetCandles(ctx, symbol, interval, limit)
	if err != nil {
		return nil, candlesResult{}, err
	}
	return nil, candlesResult{Symbol: symbol, Interval: interval, Candles: candles}, nil
}

type featuresArgs struct {
	Symbol string `json:"symbol" jsonschema:"asset symbol, e.g. BTC"`
	Limit  int    `json:"limit,omitempty" jsonschema:"number of rows, defaults to 168"`
}

type featuresResult struct {
	Symbol   string               `json:"symbol"`
	Features []*domain.FeatureRow `json:"features"`
}

func (s *Server) getFeatures(ctx context.Context, req *mcp.CallToolRequest, args featuresArgs) (*mcp.CallToolResult, featuresResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	symbol := strings.ToUpper(strings.TrimSpace(args.Symbol))
	if !domain.IsSupportedSymbol(symbol) {
		return nil, featuresResult{}, fmt.Errorf("unsupported symbol %q (supported: %s)", args.Symbol, strings.Join(domain.SupportedSymbols, ", "))
	}
	limit := args.Limit
	if limit <= 0 || limit > 1000 {
		limit = 168
	}

	rows, err := s.features.GetFeatures(ctx, symbol, "1h", limit)
	if err != nil {
		return nil, featuresResult{}, err
	}
	return nil, featuresResult{Symbol: symbol, Features: rows}, nil
}

type statusArgs struct{}

func (s *Server) getStatus(ctx context.Context, req *mcp.CallToolRequest, args statusArgs) (*mcp.CallToolResult, *service.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	status, err := s.status.Status(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, status, nil
}

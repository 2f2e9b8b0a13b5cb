package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"coinharvest/internal/anomaly"
	"coinharvest/internal/cache"
	"coinharvest/internal/config"
	"coinharvest/internal/db"
	"coinharvest/internal/mcp"
	"coinharvest/internal/provider"
	"coinharvest/internal/repository"
	"coinharvest/internal/service"
	"coinharvest/pkg/tracing"

	"github.com/joho/godotenv"
)

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	initPostgresFunc  = db.InitPostgres
	initRedisFunc     = cache.InitRedis
	initTracerFunc    = tracing.InitTracer
	setupSignalNotify = ossignal.Notify
	waitForSignalFunc = func(quit <-chan os.Signal) { <-quit }
)

func main() {
	loadEnvFunc()
	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	// Init tracing. Stdio transport keeps the tracer quiet on stdout
	// because the exporter writes to stderr.
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Repositories
	candleRepo := repository.NewCandleRepository(db.Pool, tracer)
	tickRepo := repository.NewTickRepository(db.Pool, tracer)
	indicatorRepo := repository.NewIndicatorRepository(db.Pool, tracer)
	sentimentRepo := repository.NewSentimentRepository(db.Pool, tracer)
	onchainRepo := repository.NewOnChainRepository(db.Pool, tracer)
	derivativesRepo := repository.NewDerivativesRepository(db.Pool, tracer)
	featureRepo := repository.NewFeatureRepository(db.Pool, tracer)
	runRepo := repository.NewRunRepository(db.Pool, tracer)

	// Read-only service wiring for the MCP tools.
	cgProvider := provider.NewCoinGeckoProvider(tracer)
	priceService := service.NewPriceService(tracer, cgProvider, candleRepo, tickRepo, cache.Client)
	indicatorService := service.NewIndicatorService(tracer, candleRepo, indicatorRepo)
	featureService := service.NewFeatureService(tracer, candleRepo, indicatorRepo, sentimentRepo, onchainRepo, derivativesRepo, featureRepo, cfg.GapLookbackHours)
	backfillService := service.NewBackfillService(tracer, candleRepo, featureRepo, priceService, indicatorService, featureService, nil, cfg.BackfillMaxHours)

	var detector service.AnomalyDetector
	if cfg.AnomalyEnabled {
		detector = anomaly.NewDetector()
	}
	statusService := service.NewStatusService(tracer, runRepo, backfillService, candleRepo, detector, cfg.GapLookbackHours)

	server := mcp.NewServer(priceService, featureRepo, statusService, cfg.MCPRequestTimeoutSecs)

	useHTTP := cfg.MCPTransport == "http"
	if useHTTP && !cfg.MCPHTTPEnabled {
		log.Println("MCP_TRANSPORT=http but MCP_HTTP_ENABLED is false, falling back to stdio")
		useHTTP = false
	}

	if !useHTTP {
		log.Println("MCP server serving on stdio")
		if err := server.RunStdio(ctx); err != nil && ctx.Err() == nil {
			log.Fatalf("MCP stdio server error: %v", err)
		}
		return
	}

	// Streamable HTTP transport with optional bearer-token auth and a
	// per-minute admission limit.
	handler := server.HTTPHandler()
	if cfg.MCPAuthToken != "" {
		handler = bearerAuth(cfg.MCPAuthToken, handler)
	}
	if cfg.MCPRateLimitPerMin > 0 {
		limiter := provider.NewRateLimiter(cfg.MCPRateLimitPerMin, time.Minute/time.Duration(cfg.MCPRateLimitPerMin))
		handler = rateLimit(limiter, handler)
	}

	addr := fmt.Sprintf("%s:%d", cfg.MCPHTTPBind, cfg.MCPHTTPPort)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		log.Printf("MCP server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down MCP server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("MCP server shutdown error: %v", err)
	}

	log.Println("MCP server exited")
}

func bearerAuth(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		if auth != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func rateLimit(limiter *provider.RateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

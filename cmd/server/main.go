package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"coinharvest/internal/anomaly"
	"coinharvest/internal/bot"
	"coinharvest/internal/cache"
	"coinharvest/internal/config"
	"coinharvest/internal/db"
	"coinharvest/internal/domain"
	"coinharvest/internal/handler"
	"coinharvest/internal/intel"
	"coinharvest/internal/job"
	"coinharvest/internal/observability"
	"coinharvest/internal/provider"
	"coinharvest/internal/repository"
	"coinharvest/internal/service"
	"coinharvest/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	_ "coinharvest/docs"
)

var (
	loadEnvFunc              = godotenv.Load
	loadConfigFunc           = config.Load
	initPostgresFunc         = db.InitPostgres
	initRedisFunc            = cache.InitRedis
	initTracerFunc           = tracing.InitTracer
	runMigrationsFunc        = db.MigrateUp
	newCoinGeckoProviderFunc = func(tracer trace.Tracer) *provider.CoinGeckoProvider {
		return provider.NewCoinGeckoProvider(tracer)
	}
	newPricePollerFunc     = job.NewPricePoller
	startPollerFunc        = func(p *job.PricePoller, ctx context.Context) { go p.Start(ctx) }
	startCollectorJobFunc  = func(j *job.CollectorJob, ctx context.Context) { go j.Start(ctx) }
	startRetentionJobFunc  = func(j *job.RetentionJob, ctx context.Context) { go j.Start(ctx) }
	startTelegramBotFunc   = bot.StartTelegramBot
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           CoinHarvest API
// @version         1.0
// @description     Crypto market data collection platform with OpenTelemetry tracing.

// @host      localhost:8080
// @BasePath  /
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

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Run migrations
	if db.Pool != nil {
		applied, err := runMigrationsFunc(ctx, db.Pool)
		if err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		if applied > 0 {
			log.Printf("Applied %d migrations", applied)
		}
	}

	metrics := observability.NewMetrics("coinharvest")

	// Repositories
	candleRepo := repository.NewCandleRepository(db.Pool, tracer)
	tickRepo := repository.NewTickRepository(db.Pool, tracer)
	indicatorRepo := repository.NewIndicatorRepository(db.Pool, tracer)
	onchainRepo := repository.NewOnChainRepository(db.Pool, tracer)
	intelRepo := repository.NewIntelRepository(db.Pool, tracer)
	sentimentRepo := repository.NewSentimentRepository(db.Pool, tracer)
	derivativesRepo := repository.NewDerivativesRepository(db.Pool, tracer)
	featureRepo := repository.NewFeatureRepository(db.Pool, tracer)
	runRepo := repository.NewRunRepository(db.Pool, tracer)

	// Providers
	cgProvider := newCoinGeckoProviderFunc(tracer).WithMetrics(metrics)
	rssProvider := provider.NewRSSProvider(tracer)
	fearGreedProvider := provider.NewFearGreedProvider(tracer)
	onchainProviders := []service.OnChainProvider{
		provider.NewBTCMempoolOnChainProvider(tracer, ""),
		provider.NewETHBlockscoutOnChainProvider(tracer, ""),
	}

	// Services
	priceService := service.NewPriceService(tracer, cgProvider, candleRepo, tickRepo, cache.Client).WithMetrics(metrics)
	indicatorService := service.NewIndicatorService(tracer, candleRepo, indicatorRepo)
	onchainService := service.NewOnChainService(tracer, onchainProviders, onchainRepo)
	newsService := service.NewNewsService(tracer, rssProvider, intelRepo, cfg.RSSFeeds, cfg.NewsMaxItems)

	var llm intel.BatchLLMScorer
	if openAI := intel.NewOpenAIScorer(cfg.OpenAIAPIKey, cfg.OpenAIModel); openAI != nil {
		llm = openAI
	}
	scorer := intel.NewScorer(llm, cfg.SentimentBatchSize)
	sentimentService := service.NewSentimentService(tracer, scorer, intelRepo, sentimentRepo, fearGreedProvider, cfg.SentimentBatchSize, cfg.GapLookbackHours)

	derivativesService := service.NewDerivativesService(tracer, cgProvider, derivativesRepo)
	featureService := service.NewFeatureService(tracer, candleRepo, indicatorRepo, sentimentRepo, onchainRepo, derivativesRepo, featureRepo, cfg.GapLookbackHours)
	backfillService := service.NewBackfillService(tracer, candleRepo, featureRepo, priceService, indicatorService, featureService, metrics, cfg.BackfillMaxHours)

	var detector service.AnomalyDetector
	if cfg.AnomalyEnabled {
		detector = anomaly.NewDetector()
	}
	statusService := service.NewStatusService(tracer, runRepo, backfillService, candleRepo, detector, cfg.GapLookbackHours)

	// Collector registry: scheduled jobs and manual triggers share the
	// same run ledger and per-collector dedup.
	runner := service.NewRunner(tracer, runRepo, metrics)
	registry := service.NewRegistry(tracer, runner)
	registry.Register(domain.CollectorPrices, priceService.RefreshPrices)
	registry.Register(domain.CollectorCandles, func(ctx context.Context) (int, error) {
		total := 0
		for _, symbol := range domain.SupportedSymbols {
			n, err := priceService.RefreshShortCandles(ctx, symbol)
			total += n
			if err != nil {
				return total, err
			}
		}
		return total, nil
	})
	registry.Register(domain.CollectorIndicators, indicatorService.RefreshAll)
	registry.Register(domain.CollectorOnChain, onchainService.RefreshAll)
	registry.Register(domain.CollectorNews, newsService.RefreshAll)
	registry.Register(domain.CollectorSentiment, sentimentService.Refresh)
	registry.Register(domain.CollectorDerivatives, derivativesService.Refresh)
	registry.Register(domain.CollectorFeatures, featureService.RefreshAll)

	// Start pollers (background goroutines, stopped by ctx cancel)
	poller := newPricePollerFunc(tracer, registry, priceService, cfg.CoinGeckoPollSecs)
	startPollerFunc(poller, ctx)

	jobs := []*job.CollectorJob{
		job.NewCollectorJob(tracer, registry, domain.CollectorNews, time.Duration(cfg.NewsPollSecs)*time.Second, 30*time.Second),
		job.NewCollectorJob(tracer, registry, domain.CollectorSentiment, time.Duration(cfg.SentimentPollSecs)*time.Second, time.Minute),
		job.NewCollectorJob(tracer, registry, domain.CollectorOnChain, time.Duration(cfg.OnChainPollSecs)*time.Second, 90*time.Second),
		job.NewCollectorJob(tracer, registry, domain.CollectorDerivatives, time.Duration(cfg.DerivativesPollSecs)*time.Second, 2*time.Minute),
		job.NewCollectorJob(tracer, registry, domain.CollectorIndicators, time.Duration(cfg.IndicatorPollSecs)*time.Second, 3*time.Minute),
		job.NewCollectorJob(tracer, registry, domain.CollectorFeatures, time.Duration(cfg.FeaturePollSecs)*time.Second, 5*time.Minute),
	}
	for _, j := range jobs {
		startCollectorJobFunc(j, ctx)
	}

	startRetentionJobFunc(job.NewRetentionJob(tracer, intelRepo, runRepo, cfg.RetentionDays), ctx)

	// Start Telegram bot
	os.Setenv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	startTelegramBotFunc(priceService, statusService)

	// Create handlers and routes
	h := newHandlerFunc(tracer, priceService, statusService, backfillService, featureRepo, registry)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("coinharvest"))

	h.RegisterRoutes(r, cfg.APIKey)
	r.GET("/metrics", gin.WrapH(observability.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}

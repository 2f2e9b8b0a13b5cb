package main

import (
	"context"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"coinharvest/internal/anomaly"
	"coinharvest/internal/cache"
	"coinharvest/internal/config"
	"coinharvest/internal/db"
	"coinharvest/internal/provider"
	"coinharvest/internal/repository"
	"coinharvest/internal/service"
	"coinharvest/internal/tui"
	"coinharvest/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"github.com/joho/godotenv"
	gossh "golang.org/x/crypto/ssh"
)

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	initPostgresFunc  = db.InitPostgres
	initRedisFunc     = cache.InitRedis
	initTracerFunc    = tracing.InitTracer
	newWishServerFunc = wish.NewServer
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

	// Repositories
	candleRepo := repository.NewCandleRepository(db.Pool, tracer)
	tickRepo := repository.NewTickRepository(db.Pool, tracer)
	indicatorRepo := repository.NewIndicatorRepository(db.Pool, tracer)
	sentimentRepo := repository.NewSentimentRepository(db.Pool, tracer)
	onchainRepo := repository.NewOnChainRepository(db.Pool, tracer)
	derivativesRepo := repository.NewDerivativesRepository(db.Pool, tracer)
	featureRepo := repository.NewFeatureRepository(db.Pool, tracer)
	runRepo := repository.NewRunRepository(db.Pool, tracer)

	// Services. The dashboard is read-only, so this wiring stays thin:
	// backfill exists only so the status gap view works.
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

	// Build Wish SSH server
	addr := fmt.Sprintf("%s:%d", cfg.SSHBind, cfg.SSHPort)

	srv, err := newWishServerFunc(
		wish.WithAddress(addr),
		wish.WithHostKeyPath(cfg.SSHHostKeyPath),
		wish.WithPublicKeyAuth(func(ctx ssh.Context, key ssh.PublicKey) bool {
			// Read-only dashboard: any key gets in, but log who connected.
			log.Printf("SSH session: user=%s fingerprint=%s", ctx.User(), gossh.FingerprintSHA256(key))
			return true
		}),
		wish.WithMiddleware(
			bubbletea.Middleware(func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
				svc := tui.Services{
					Prices:   priceService,
					Status:   statusService,
					Username: s.User(),
				}

				model := tui.NewAppModel(svc)
				pty, _, _ := s.Pty()
				model.SetSize(pty.Window.Width, pty.Window.Height)

				return model, []tea.ProgramOption{tea.WithAltScreen()}
			}),
			logging.Middleware(),
		),
	)
	if err != nil {
		log.Fatalf("failed to create SSH server: %v", err)
	}

	if srv != nil {
		go func() {
			log.Printf("SSH server listening on %s", addr)
			if err := srv.ListenAndServe(); err != nil {
				log.Printf("SSH server stopped: %v", err)
			}
		}()
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down SSH server...")

	cancel()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("SSH server shutdown error: %v", err)
		}
	}

	log.Println("SSH server exited")
}

package main

import (
	"context"
	"os"
	"testing"
	"time"

	"coinharvest/internal/config"

	"github.com/charmbracelet/ssh"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestMainBootstrap(t *testing.T) {
	restore := stubSSHDeps()
	defer restore()

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}
}

func stubSSHDeps() func() {
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origInitPostgres := initPostgresFunc
	origInitRedis := initRedisFunc
	origInitTracer := initTracerFunc
	origNewWishServer := newWishServerFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config {
		return &config.Config{
			RedisURL:       "",
			DatabaseURL:    "",
			SSHPort:        2222,
			SSHBind:        "127.0.0.1",
			SSHHostKeyPath: ".ssh/test_key",
		}
	}
	initPostgresFunc = func(context.Context) {}
	initRedisFunc = func(context.Context) {}
	initTracerFunc = func(ctx context.Context) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	newWishServerFunc = func(ops ...ssh.Option) (*ssh.Server, error) {
		return nil, nil
	}
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		initPostgresFunc = origInitPostgres
		initRedisFunc = origInitRedis
		initTracerFunc = origInitTracer
		newWishServerFunc = origNewWishServer
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
	}
}

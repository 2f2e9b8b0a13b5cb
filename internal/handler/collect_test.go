package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coinharvest/internal/domain"
	"coinharvest/internal/service"

	"github.com/gin-gonic/gin"
)

type counterStub struct{ count int }

func (s counterStub) CountBuckets(ctx context.Context, symbol, interval string, from, to time.Time) (int, error) {
	return s.count, nil
}

type candleBackfillerStub struct {
	short   int
	long    int
	started chan struct{}
	release chan struct{}
}

func (s *candleBackfillerStub) RefreshShortCandles(ctx context.Context, symbol string) (int, error) {
	if s.started != nil {
		s.started <- struct{}{}
		<-s.release
		s.started = nil
	}
	return s.short, nil
}

func (s *candleBackfillerStub) RefreshLongCandles(ctx context.Context, symbol string) (int, error) {
	return s.long, nil
}

type indicatorBackfillerStub struct{ n int }

func (s indicatorBackfillerStub) Refresh(ctx context.Context, symbol, interval string) (int, error) {
	return s.n, nil
}

type featureBackfillerStub struct{ n int }

func (s featureBackfillerStub) RefreshRange(ctx context.Context, symbol string, from, to time.Time) (int, error) {
	return s.n, nil
}

func newCollectHandler(registry *service.Registry, backfill *service.BackfillService) *Handler {
	return &Handler{tracer: testTracer, registry: registry, backfillService: backfill}
}

func TestTriggerCollect(t *testing.T) {
	gin.SetMode(gin.TestMode)

	runner := service.NewRunner(testTracer, nil, nil)
	registry := service.NewRegistry(testTracer, runner)
	ran := 0
	registry.Register(domain.CollectorPrices, func(ctx context.Context) (int, error) {
		ran++
		return 3, nil
	})
	h := newCollectHandler(registry, nil)

	r := gin.New()
	r.POST("/api/collect/:collector", h.TriggerCollect)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/collect/prices", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ran != 1 {
		t.Fatalf("expected collector to run once, ran %d times", ran)
	}
}

func TestTriggerCollectUnknown(t *testing.T) {
	gin.SetMode(gin.TestMode)

	registry := service.NewRegistry(testTracer, service.NewRunner(testTracer, nil, nil))
	h := newCollectHandler(registry, nil)

	r := gin.New()
	r.POST("/api/collect/:collector", h.TriggerCollect)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/collect/everything", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestTriggerCollectBusy(t *testing.T) {
	gin.SetMode(gin.TestMode)

	runner := service.NewRunner(testTracer, nil, nil)
	registry := service.NewRegistry(testTracer, runner)
	started := make(chan struct{})
	release := make(chan struct{})
	registry.Register(domain.CollectorNews, func(ctx context.Context) (int, error) {
		started <- struct{}{}
		<-release
		return 0, nil
	})
	h := newCollectHandler(registry, nil)

	r := gin.New()
	r.POST("/api/collect/:collector", h.TriggerCollect)

	done := make(chan error, 1)
	go func() {
		done <- registry.Trigger(context.Background(), domain.CollectorNews)
	}()
	<-started

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/collect/news", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 while running, got %d", w.Code)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first trigger failed: %v", err)
	}
}

func TestTriggerBackfill(t *testing.T) {
	gin.SetMode(gin.TestMode)

	backfill := service.NewBackfillService(
		testTracer,
		counterStub{},
		counterStub{},
		&candleBackfillerStub{short: 2, long: 4},
		indicatorBackfillerStub{n: 1},
		featureBackfillerStub{n: 3},
		nil,
		168,
	)
	h := newCollectHandler(nil, backfill)

	r := gin.New()
	r.POST("/api/backfill/:hours", h.TriggerBackfill)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/backfill/6", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Status       string `json:"status"`
		Hours        int    `json:"hours"`
		ItemsWritten int    `json:"items_written"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	// 6h window per symbol: short candles + one indicator pass per interval +
	// the feature rebuild; the 30-day chart only runs past 24h.
	perSymbol := 2 + len(domain.SupportedIntervals)*1 + 3
	if body.Status != "ok" || body.Hours != 6 || body.ItemsWritten != perSymbol*len(domain.SupportedSymbols) {
		t.Fatalf("unexpected payload: %+v", body)
	}
}

func TestTriggerBackfillBadHours(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newCollectHandler(nil, nil)

	r := gin.New()
	r.POST("/api/backfill/:hours", h.TriggerBackfill)

	for _, hours := range []string{"abc", "0", "-4"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/backfill/"+hours, nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("hours=%s: expected 400, got %d", hours, w.Code)
		}
	}
}

func TestTriggerBackfillBusy(t *testing.T) {
	gin.SetMode(gin.TestMode)

	blocker := &candleBackfillerStub{started: make(chan struct{}), release: make(chan struct{})}
	backfill := service.NewBackfillService(
		testTracer,
		counterStub{},
		counterStub{},
		blocker,
		indicatorBackfillerStub{},
		featureBackfillerStub{},
		nil,
		168,
	)
	h := newCollectHandler(nil, backfill)

	r := gin.New()
	r.POST("/api/backfill/:hours", h.TriggerBackfill)

	done := make(chan struct{})
	go func() {
		backfill.Backfill(context.Background(), 2)
		close(done)
	}()
	<-blocker.started

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/backfill/2", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 while backfilling, got %d", w.Code)
	}

	close(blocker.release)
	<-done
}

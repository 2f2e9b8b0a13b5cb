package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func apiKeyRouter(key string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/protected", APIKeyAuth(key), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func TestAPIKeyAuthDisabledWhenEmpty(t *testing.T) {
	r := apiKeyRouter("")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/protected", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 without configured key, got %d", w.Code)
	}
}

func TestAPIKeyAuthMissingHeader(t *testing.T) {
	r := apiKeyRouter("secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/protected", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAPIKeyAuthWrongKey(t *testing.T) {
	r := apiKeyRouter("secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/protected", nil)
	req.Header.Set("X-API-Key", "guess")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestAPIKeyAuthValidKey(t *testing.T) {
	r := apiKeyRouter("secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/protected", nil)
	req.Header.Set("X-API-Key", " secret ")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRegisterRoutesLeavesReadsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := &Handler{tracer: testTracer}
	r := gin.New()
	h.RegisterRoutes(r, "secret")

	// GET endpoints stay reachable without the key.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected open health endpoint, got %d", w.Code)
	}

	// Trigger endpoints demand it.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/collect/prices", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on unauthenticated trigger, got %d", w.Code)
	}
}

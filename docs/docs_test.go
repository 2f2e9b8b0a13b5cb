package docs

import (
	"strings"
	"testing"
)

func TestSwaggerInfoRegistered(t *testing.T) {
	if SwaggerInfo == nil {
		t.Fatal("swagger info not initialized")
	}
	if !strings.Contains(SwaggerInfo.Title, "CoinHarvest") {
		t.Fatalf("unexpected swagger title %q", SwaggerInfo.Title)
	}
	if SwaggerInfo.BasePath != "/" {
		t.Fatalf("unexpected base path %q", SwaggerInfo.BasePath)
	}
}

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"basketarb/internal/market"
	"basketarb/internal/models"
	"basketarb/pkg/crypto"
	"basketarb/pkg/utils"
)

type stubPosition struct{}

func (stubPosition) View() models.Position { return models.Position{Kind: models.PositionNone} }

type stubDivergence struct{}

func (stubDivergence) Current() (market.Divergence, bool) {
	return market.Divergence{Price: 10000, NAV: 10005, Diff: -5}, true
}

type stubEngine struct{}

func (stubEngine) Halted() bool { return false }

type stubJournal struct{}

func (stubJournal) GetRecent(context.Context, int) ([]*models.TradeRecord, error) {
	return nil, nil
}

func (stubJournal) GetSummary(context.Context) (*models.TradeSummary, error) {
	return &models.TradeSummary{}, nil
}

func testDeps() *Dependencies {
	return &Dependencies{
		Position:   stubPosition{},
		Divergence: stubDivergence{},
		Engine:     stubEngine{},
		Journal:    stubJournal{},
		Sandbox:    true,
		Logger:     utils.NopLogger(),
	}
}

func TestSetupRoutes(t *testing.T) {
	router := SetupRoutes(testDeps())

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/metrics", http.StatusOK},
		{"GET", "/api/v1/status", http.StatusOK},
		{"GET", "/api/v1/position", http.StatusOK},
		{"GET", "/api/v1/divergence", http.StatusOK},
		{"GET", "/api/v1/trades", http.StatusOK},
		{"GET", "/api/v1/trades/summary", http.StatusOK},
		{"POST", "/api/v1/status", http.StatusMethodNotAllowed},
		{"GET", "/api/v1/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
			}
		})
	}
}

func TestSetupRoutesBasicAuth(t *testing.T) {
	hash, err := crypto.HashPassword("trading-password")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	deps := testDeps()
	deps.BasicAuthUser = "operator"
	deps.BasicAuthPasswordHash = hash
	router := SetupRoutes(deps)

	// Без credentials доступа нет
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/status", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no credentials: status = %d, want 401", rec.Code)
	}

	// Неверный пароль
	rec = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/status", nil)
	req.SetBasicAuth("operator", "wrong")
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: status = %d, want 401", rec.Code)
	}

	// Верные credentials
	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/v1/status", nil)
	req.SetBasicAuth("operator", "trading-password")
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid credentials: status = %d, want 200", rec.Code)
	}

	// Health остается открытым
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health behind auth: status = %d, want 200", rec.Code)
	}
}

func TestSetupRoutesCORSHeaders(t *testing.T) {
	router := SetupRoutes(testDeps())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/status", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

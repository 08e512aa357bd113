package handlers

import (
	"context"
	"net/http"
	"strconv"

	"basketarb/internal/models"
)

// TradeJournal - источник записей журнала сделок
type TradeJournal interface {
	GetRecent(ctx context.Context, limit int) ([]*models.TradeRecord, error)
	GetSummary(ctx context.Context) (*models.TradeSummary, error)
}

// TradeHandler обрабатывает запросы журнала сделок.
//
// Endpoints:
// - GET /api/v1/trades?limit=N - последние сделки
// - GET /api/v1/trades/summary - сводная статистика
type TradeHandler struct {
	journal TradeJournal
}

// NewTradeHandler создает новый TradeHandler
func NewTradeHandler(journal TradeJournal) *TradeHandler {
	return &TradeHandler{journal: journal}
}

// GetTrades возвращает последние сделки, свежие первыми.
//
// GET /api/v1/trades?limit=20
func (h *TradeHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		if parsed > 500 {
			parsed = 500
		}
		limit = parsed
	}

	trades, err := h.journal.GetRecent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load trades", err)
		return
	}
	if trades == nil {
		trades = []*models.TradeRecord{}
	}

	respondJSON(w, http.StatusOK, trades)
}

// GetSummary возвращает сводку по журналу.
//
// GET /api/v1/trades/summary
//
// Response 200 OK:
//
//	{"total_trades": 12, "total_profit": 4200.5, "win_trades": 8, "win_rate_percent": 66.67}
func (h *TradeHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.journal.GetSummary(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load summary", err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

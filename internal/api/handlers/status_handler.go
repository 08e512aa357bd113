package handlers

import (
	"net/http"
	"time"

	"basketarb/internal/market"
	"basketarb/internal/models"
)

// PositionSource - источник текущей позиции
type PositionSource interface {
	View() models.Position
}

// DivergenceSource - источник текущего расхождения цена/NAV
type DivergenceSource interface {
	Current() (market.Divergence, bool)
}

// EngineState - состояние торгового цикла
type EngineState interface {
	Halted() bool
}

// StatusHandler обрабатывает запросы состояния бота.
//
// Endpoints:
// - GET /api/v1/status - сводное состояние (позиция, дивергенция, режим)
// - GET /api/v1/position - текущая позиция с ногами
// - GET /api/v1/divergence - текущие цена ETF, NAV и расхождение
type StatusHandler struct {
	position   PositionSource
	divergence DivergenceSource
	engine     EngineState
	sandbox    bool
	startedAt  time.Time
}

// NewStatusHandler создает новый StatusHandler
func NewStatusHandler(position PositionSource, divergence DivergenceSource, engine EngineState, sandbox bool) *StatusHandler {
	return &StatusHandler{
		position:   position,
		divergence: divergence,
		engine:     engine,
		sandbox:    sandbox,
		startedAt:  time.Now(),
	}
}

// statusResponse - сводное состояние бота
type statusResponse struct {
	Halted        bool               `json:"halted"`
	Sandbox       bool               `json:"sandbox"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	PositionKind  string             `json:"position_kind"`
	Divergence    *market.Divergence `json:"divergence,omitempty"`
}

// GetStatus возвращает сводное состояние.
//
// GET /api/v1/status
//
// Response 200 OK:
//
//	{
//	  "halted": false,
//	  "sandbox": true,
//	  "uptime_seconds": 3641,
//	  "position_kind": "BASKET",
//	  "divergence": {"price": 9990, "nav": 9997, "diff": -7, "updated_at": "..."}
//	}
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Halted:        h.engine.Halted(),
		Sandbox:       h.sandbox,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		PositionKind:  h.position.View().Kind,
	}
	if div, ok := h.divergence.Current(); ok {
		resp.Divergence = &div
	}

	respondJSON(w, http.StatusOK, resp)
}

// GetPosition возвращает текущую позицию с ногами.
//
// GET /api/v1/position
func (h *StatusHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	pos := h.position.View()
	if pos.Legs == nil {
		// Пустой список вместо null
		pos.Legs = []models.PositionLeg{}
	}
	respondJSON(w, http.StatusOK, pos)
}

// GetDivergence возвращает текущую пару цена/NAV.
//
// GET /api/v1/divergence
//
// Response 503 пока поток не дал обе величины
func (h *StatusHandler) GetDivergence(w http.ResponseWriter, r *http.Request) {
	div, ok := h.divergence.Current()
	if !ok {
		respondError(w, http.StatusServiceUnavailable, "no market data yet", nil)
		return
	}
	respondJSON(w, http.StatusOK, div)
}

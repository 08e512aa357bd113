package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"basketarb/internal/api/handlers"
	"basketarb/internal/api/middleware"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	Position   handlers.PositionSource
	Divergence handlers.DivergenceSource
	Engine     handlers.EngineState
	Journal    handlers.TradeJournal

	Sandbox bool

	// BasicAuthUser пустой - API без аутентификации
	BasicAuthUser         string
	BasicAuthPasswordHash string

	Logger *zap.SugaredLogger
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── GET /status - сводное состояние бота
//	├── GET /position - текущая позиция с ногами
//	├── GET /divergence - цена ETF, NAV и расхождение
//	├── GET /trades - последние сделки
//	└── GET /trades/summary - сводка журнала
//
// /health - liveness probe
// /metrics - Prometheus метрики
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. BasicAuth (только для /api/v1)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.Logging(deps.Logger))
	router.Use(middleware.CORS)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.BasicAuth(deps.BasicAuthUser, deps.BasicAuthPasswordHash))

	if deps.Position != nil && deps.Divergence != nil && deps.Engine != nil {
		statusHandler := handlers.NewStatusHandler(deps.Position, deps.Divergence, deps.Engine, deps.Sandbox)
		api.HandleFunc("/status", statusHandler.GetStatus).Methods("GET")
		api.HandleFunc("/position", statusHandler.GetPosition).Methods("GET")
		api.HandleFunc("/divergence", statusHandler.GetDivergence).Methods("GET")
	}

	if deps.Journal != nil {
		tradeHandler := handlers.NewTradeHandler(deps.Journal)
		api.HandleFunc("/trades", tradeHandler.GetTrades).Methods("GET")
		api.HandleFunc("/trades/summary", tradeHandler.GetSummary).Methods("GET")
	}

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Prometheus метрики
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}

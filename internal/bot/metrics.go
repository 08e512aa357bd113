package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для уведомлений о проблемах

// ============ Метрики расхождения ============

// DivergenceObserved - наблюдаемые расхождения цены ETF и NAV
// Пороги стратегии отрицательные, buckets смещены влево
var DivergenceObserved = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "basketarb",
		Subsystem: "trading",
		Name:      "divergence_observed_won",
		Help:      "Observed ETF price minus NAV in won",
		Buckets:   []float64{-20, -15, -13, -11, -9, -7, -5, -3, 0, 3, 5},
	},
)

// ============ Метрики исполнения ============

// OrderSubmitLatency - время отправки заявки брокеру (включая повторы)
var OrderSubmitLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "basketarb",
		Subsystem: "trading",
		Name:      "order_submit_latency_seconds",
		Help:      "Time to submit an order including retries",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
	},
	[]string{"side"},
)

// LegFailures - ноги, закончившие жизненный цикл отказом
var LegFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "basketarb",
		Subsystem: "trading",
		Name:      "leg_failures_total",
		Help:      "Order legs that ended in a failure status",
	},
	[]string{"status"}, // FAILED_SUBMIT, FAILED_CONFIRM, FAILED_PRICE
)

// ConfirmExhausted - заявки, не подтверждённые за лимит опросов
var ConfirmExhausted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "basketarb",
		Subsystem: "trading",
		Name:      "confirm_exhausted_total",
		Help:      "Orders whose fill was not confirmed within the poll limit",
	},
	[]string{"code"},
)

// PriceExhausted - заявки без цены исполнения после всех попыток
var PriceExhausted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "basketarb",
		Subsystem: "trading",
		Name:      "fill_price_exhausted_total",
		Help:      "Filled orders whose fill price could not be resolved",
	},
	[]string{"code"},
)

// ============ Метрики сделок ============

// TradesTotal - количество завершённых сделок
var TradesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "basketarb",
		Subsystem: "trading",
		Name:      "trades_total",
		Help:      "Total number of completed trades",
	},
	[]string{"kind", "reason"}, // kind: BASKET, HEDGE; reason: signal, liquidation
)

// ProfitTotal - суммарная реализованная прибыль в вонах
// Gauge, а не counter: убыточная сделка уменьшает сумму
var ProfitTotal = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "basketarb",
		Subsystem: "trading",
		Name:      "profit_total_won",
		Help:      "Total realized profit in won",
	},
)

// ============ Метрики состояния ============

// CurrentPosition - текущая позиция бота
var CurrentPosition = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "basketarb",
		Subsystem: "trading",
		Name:      "position",
		Help:      "Current position kind (1 for the active kind, 0 otherwise)",
	},
	[]string{"kind"}, // NONE, BASKET, HEDGE
)

// FeedConnected - статус подключения к realtime фиду
var FeedConnected = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "basketarb",
		Subsystem: "feed",
		Name:      "connected",
		Help:      "Realtime feed connection status (1=connected, 0=disconnected)",
	},
)

// SnapshotCompleteness - число бумаг со свежей котировкой
var SnapshotCompleteness = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "basketarb",
		Subsystem: "feed",
		Name:      "snapshot_instruments",
		Help:      "Number of instruments with a usable quote in the snapshot",
	},
)

// ============ Вспомогательные функции ============

// RecordDivergence записывает наблюдаемое расхождение
func RecordDivergence(diff float64) {
	DivergenceObserved.Observe(diff)
}

// RecordOrderSubmitLatency записывает время отправки заявки
func RecordOrderSubmitLatency(side string, seconds float64) {
	OrderSubmitLatency.WithLabelValues(side).Observe(seconds)
}

// RecordLegFailure записывает отказ ноги
func RecordLegFailure(status string) {
	LegFailures.WithLabelValues(status).Inc()
}

// RecordConfirmExhausted записывает исчерпание лимита подтверждения
func RecordConfirmExhausted(code string) {
	ConfirmExhausted.WithLabelValues(code).Inc()
}

// RecordPriceExhausted записывает исчерпание попыток получения цены
func RecordPriceExhausted(code string) {
	PriceExhausted.WithLabelValues(code).Inc()
}

// RecordTrade записывает завершённую сделку
func RecordTrade(kind, reason string, profit float64) {
	TradesTotal.WithLabelValues(kind, reason).Inc()
	ProfitTotal.Add(profit)
}

// UpdatePosition обновляет gauge текущей позиции
func UpdatePosition(kind string) {
	for _, k := range []string{"NONE", "BASKET", "HEDGE"} {
		if k == kind {
			CurrentPosition.WithLabelValues(k).Set(1)
		} else {
			CurrentPosition.WithLabelValues(k).Set(0)
		}
	}
}

// UpdateFeedStatus обновляет статус подключения фида
func UpdateFeedStatus(connected bool) {
	if connected {
		FeedConnected.Set(1)
	} else {
		FeedConnected.Set(0)
	}
}

// UpdateSnapshotCompleteness обновляет число бумаг со свежей котировкой
func UpdateSnapshotCompleteness(count int) {
	SnapshotCompleteness.Set(float64(count))
}

package models

import "time"

// Причины закрытия позиции
const (
	TradeReasonSignal      = "signal"      // закрытие по торговому сигналу
	TradeReasonLiquidation = "liquidation" // принудительное закрытие в конце сессии
)

// TradeRecord - запись журнала сделок (полный цикл вход-выход)
type TradeRecord struct {
	ID          int       `json:"id" db:"id"`
	Kind        string    `json:"kind" db:"kind"`     // BASKET или HEDGE
	Reason      string    `json:"reason" db:"reason"` // signal, liquidation
	EntryTime   time.Time `json:"entry_time" db:"entry_time"`
	ExitTime    time.Time `json:"exit_time" db:"exit_time"`
	EntryAmount float64   `json:"entry_amount" db:"entry_amount"`
	ExitAmount  float64   `json:"exit_amount" db:"exit_amount"`
	Profit      float64   `json:"profit" db:"profit"`
	// ReturnPercent - доходность сделки в процентах от суммы входа
	ReturnPercent float64 `json:"return_percent" db:"return_percent"`
	// AmountUnresolved - суммы входа или выхода неполные (нога без цены),
	// Profit и ReturnPercent ориентировочные
	AmountUnresolved bool      `json:"amount_unresolved,omitempty" db:"amount_unresolved"`
	LegsFilled       int       `json:"legs_filled" db:"legs_filled"`
	LegsFailed       int       `json:"legs_failed" db:"legs_failed"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// TradeSummary - сводная статистика по журналу сделок
type TradeSummary struct {
	TotalTrades    int     `json:"total_trades"`
	TotalProfit    float64 `json:"total_profit"`
	WinTrades      int     `json:"win_trades"`
	WinRatePercent float64 `json:"win_rate_percent"`
}

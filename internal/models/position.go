package models

import "time"

// Виды позиции стратегии
//
// - NONE: позиции нет, ждём сигнала
// - BASKET: куплена корзина акций (реплика ETF)
// - HEDGE: куплен сам ETF (хедж на сильной отрицательной дивергенции)
const (
	PositionNone   = "NONE"
	PositionBasket = "BASKET"
	PositionHedge  = "HEDGE"
)

// PositionLeg - исполненная нога открытой позиции
type PositionLeg struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"` // средняя цена исполнения, 0 если цену получить не удалось
	OrderNo  string  `json:"order_no"`
	// Unresolved - цена исполнения не получена (статус FAILED_PRICE),
	// нога вошла в EntryAmount с нулевой стоимостью
	Unresolved bool `json:"unresolved,omitempty"`
}

// Position - агрегат текущей позиции стратегии
//
// Заполняется в два этапа:
// 1. Оптимистично при первом подтверждённом исполнении: Kind + EntryTime
// 2. Финально после терминального статуса всех ног: EntryAmount + Legs
//
// Между этапами EntryAmount == 0 - это видимое читателям промежуточное
// состояние, допускаемое протоколом обновления
type Position struct {
	Kind      string    `json:"kind"`
	EntryTime time.Time `json:"entry_time,omitempty"`
	// EntryAmount - суммарная стоимость входа (цена * количество по всем ногам)
	EntryAmount float64 `json:"entry_amount"`
	// AmountUnresolved - хотя бы одна нога вошла без цены,
	// EntryAmount занижен и не пригоден для точного расчёта PnL
	AmountUnresolved bool          `json:"amount_unresolved,omitempty"`
	Legs             []PositionLeg `json:"legs"`
}

// IsOpen возвращает true если позиция открыта
func (p Position) IsOpen() bool {
	return p.Kind == PositionBasket || p.Kind == PositionHedge
}

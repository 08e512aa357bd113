package bot

import (
	"sync"
	"time"

	"basketarb/internal/models"
)

// PositionBook - хранитель текущей позиции бота
//
// Запись всегда идёт из одной горутины (торговый цикл), читатели
// (HTTP API, метрики) конкурентные. Обновление двухфазное:
//   - OpenOptimistic фиксирует вид позиции и время входа при первом
//     подтверждённом исполнении, чтобы сигнальная логика сразу видела
//     открытую позицию и не вошла повторно
//   - Finalize записывает сумму входа и ноги после того, как все ноги
//     дошли до терминального статуса
//
// Блокировка держится только на время присваивания: расчёты суммы
// и копирование ног происходят вне критической секции
type PositionBook struct {
	mu  sync.RWMutex
	pos models.Position
}

// NewPositionBook создаёт книгу с пустой позицией
func NewPositionBook() *PositionBook {
	return &PositionBook{
		pos: models.Position{Kind: models.PositionNone},
	}
}

// View возвращает копию текущей позиции
func (pb *PositionBook) View() models.Position {
	pb.mu.RLock()
	pos := pb.pos
	pb.mu.RUnlock()

	// Копируем срез ног, чтобы читатель не делил память с писателем
	if len(pos.Legs) > 0 {
		legs := make([]models.PositionLeg, len(pos.Legs))
		copy(legs, pos.Legs)
		pos.Legs = legs
	}
	return pos
}

// Kind возвращает вид текущей позиции
func (pb *PositionBook) Kind() string {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.pos.Kind
}

// IsOpen возвращает true, если позиция открыта
func (pb *PositionBook) IsOpen() bool {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.pos.IsOpen()
}

// OpenOptimistic фиксирует вид позиции при первом подтверждённом
// исполнении ноги. Сумма и состав ног на этот момент ещё неизвестны
func (pb *PositionBook) OpenOptimistic(kind string, entryTime time.Time) {
	next := models.Position{
		Kind:      kind,
		EntryTime: entryTime,
	}

	pb.mu.Lock()
	pb.pos = next
	pb.mu.Unlock()
}

// Finalize дописывает сумму входа и ноги после завершения всех ног
// unresolved означает, что часть ног вошла в сумму с нулевой ценой
func (pb *PositionBook) Finalize(entryAmount float64, unresolved bool, legs []models.PositionLeg) {
	legsCopy := make([]models.PositionLeg, len(legs))
	copy(legsCopy, legs)

	pb.mu.Lock()
	pb.pos.EntryAmount = entryAmount
	pb.pos.AmountUnresolved = unresolved
	pb.pos.Legs = legsCopy
	pb.mu.Unlock()
}

// Clear сбрасывает позицию после выхода или отката неудачного входа
func (pb *PositionBook) Clear() {
	pb.mu.Lock()
	pb.pos = models.Position{Kind: models.PositionNone}
	pb.mu.Unlock()
}

// Restore восстанавливает позицию при старте по остаткам на счёте
// Время входа и сумма неизвестны, позиция помечается нерасчётной
func (pb *PositionBook) Restore(kind string, legs []models.PositionLeg) {
	next := models.Position{
		Kind: kind,
		Legs: make([]models.PositionLeg, len(legs)),
	}
	copy(next.Legs, legs)
	if kind != models.PositionNone {
		next.AmountUnresolved = true
	}

	pb.mu.Lock()
	pb.pos = next
	pb.mu.Unlock()
}

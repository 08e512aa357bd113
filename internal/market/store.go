// Package market содержит кэш рыночных данных и клиент потока котировок.
package market

import (
	"sync"
	"time"
)

// Quote - последняя известная котировка бумаги
type Quote struct {
	Code      string    `json:"code"`
	Price     float64   `json:"price"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store - потокобезопасный кэш последних цен
//
// Семантика last-value: каждое обновление замещает предыдущее,
// истории нет. Писатель - горутина потока котировок, читатели -
// торговый цикл и оптимизатор корзины
type Store struct {
	mu     sync.RWMutex
	quotes map[string]Quote
	now    func() time.Time
}

// NewStore создаёт пустой кэш котировок
func NewStore() *Store {
	return &Store{
		quotes: make(map[string]Quote),
		now:    time.Now,
	}
}

// Update записывает новую цену бумаги
// Нулевые и отрицательные цены игнорируются: поток иногда отдаёт
// пустые поля в момент открытия сессии
func (s *Store) Update(code string, price float64) {
	if code == "" || price <= 0 {
		return
	}

	s.mu.Lock()
	s.quotes[code] = Quote{
		Code:      code,
		Price:     price,
		UpdatedAt: s.now(),
	}
	s.mu.Unlock()
}

// Get возвращает последнюю котировку бумаги
func (s *Store) Get(code string) (Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotes[code]
	return q, ok
}

// Snapshot возвращает карту код → цена по всем известным бумагам
func (s *Store) Snapshot() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]float64, len(s.quotes))
	for code, q := range s.quotes {
		out[code] = q.Price
	}
	return out
}

// Missing возвращает коды без пригодной котировки
//
// Котировка непригодна если её нет, цена не положительная или
// обновление старше maxAge (maxAge <= 0 отключает проверку свежести)
func (s *Store) Missing(codes []string, maxAge time.Duration) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var missing []string
	cutoff := s.now().Add(-maxAge)
	for _, code := range codes {
		q, ok := s.quotes[code]
		if !ok || q.Price <= 0 {
			missing = append(missing, code)
			continue
		}
		if maxAge > 0 && q.UpdatedAt.Before(cutoff) {
			missing = append(missing, code)
		}
	}
	return missing
}

// Complete проверяет что по всем кодам есть пригодная котировка
func (s *Store) Complete(codes []string, maxAge time.Duration) bool {
	return len(s.Missing(codes, maxAge)) == 0
}

// Len возвращает количество бумаг в кэше
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.quotes)
}

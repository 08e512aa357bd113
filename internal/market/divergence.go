package market

import (
	"sync"
	"time"
)

// Divergence - расхождение рыночной цены ETF и его NAV
//
// Diff = Price - NAV. Отрицательное значение означает что ETF
// торгуется дешевле стоимости корзины
type Divergence struct {
	Price     float64   `json:"price"`
	NAV       float64   `json:"nav"`
	Diff      float64   `json:"diff"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DivergenceMonitor хранит последние цену и NAV ETF
//
// Цена и NAV приходят разными сообщениями потока, монитор склеивает
// их в пару. Diff считается на чтении, не на записи: сигнальный цикл
// всегда видит согласованную пару значений
type DivergenceMonitor struct {
	mu        sync.RWMutex
	price     float64
	nav       float64
	updatedAt time.Time
	now       func() time.Time
}

// NewDivergenceMonitor создаёт пустой монитор
func NewDivergenceMonitor() *DivergenceMonitor {
	return &DivergenceMonitor{now: time.Now}
}

// SetPrice записывает рыночную цену ETF
func (m *DivergenceMonitor) SetPrice(price float64) {
	if price <= 0 {
		return
	}
	m.mu.Lock()
	m.price = price
	m.updatedAt = m.now()
	m.mu.Unlock()
}

// SetNAV записывает NAV ETF
func (m *DivergenceMonitor) SetNAV(nav float64) {
	if nav <= 0 {
		return
	}
	m.mu.Lock()
	m.nav = nav
	m.updatedAt = m.now()
	m.mu.Unlock()
}

// Current возвращает текущее расхождение
// ok == false пока не получены и цена, и NAV
func (m *DivergenceMonitor) Current() (Divergence, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.price <= 0 || m.nav <= 0 {
		return Divergence{}, false
	}
	return Divergence{
		Price:     m.price,
		NAV:       m.nav,
		Diff:      m.price - m.nav,
		UpdatedAt: m.updatedAt,
	}, true
}

package market

// Dispatcher раскладывает тики потока по кэшу цен и монитору дивергенции
//
// Сделки бумаг корзины идут в Store, сделки ETF и его NAV - в
// DivergenceMonitor. Цена ETF тоже дублируется в Store: оптимизатору
// она не нужна, но API статуса отдаёт все котировки из одного места
type Dispatcher struct {
	etfCode string
	store   *Store
	monitor *DivergenceMonitor
}

// NewDispatcher создаёт диспетчер тиков
func NewDispatcher(etfCode string, store *Store, monitor *DivergenceMonitor) *Dispatcher {
	return &Dispatcher{etfCode: etfCode, store: store, monitor: monitor}
}

// Handle обрабатывает один тик потока
func (d *Dispatcher) Handle(tick Tick) {
	switch tick.TrID {
	case TrTradePrice:
		d.store.Update(tick.Code, tick.Value)
		if tick.Code == d.etfCode {
			d.monitor.SetPrice(tick.Value)
		}
	case TrNAV:
		if tick.Code == d.etfCode {
			d.monitor.SetNAV(tick.Value)
		}
	}
}

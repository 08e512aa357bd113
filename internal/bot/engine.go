package bot

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"basketarb/internal/basket"
	"basketarb/internal/market"
	"basketarb/internal/models"
	"basketarb/internal/venue"
	"basketarb/pkg/utils"
)

// TradeLedger - приёмник записей о завершённых сделках
type TradeLedger interface {
	Record(ctx context.Context, trade *models.TradeRecord) error
}

// Notifier - приёмник текстовых уведомлений
// Отправка best-effort, ошибки доставки не влияют на торговлю
type Notifier interface {
	Notify(text string)
}

// EngineConfig содержит настройки торгового цикла
type EngineConfig struct {
	Thresholds Thresholds

	TickInterval time.Duration // период оценки сигнала
	PlanEvery    int           // пересчёт корзины каждый N-й тик

	QuoteMaxAge   time.Duration // допустимый возраст котировки для оптимизатора
	HedgeQuantity int           // количество ETF для хеджевой позиции
}

// DefaultEngineConfig возвращает настройки по умолчанию
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Thresholds:    Thresholds{Enter: -5, Exit: -9, Hedge: -13},
		TickInterval:  time.Second,
		PlanEvery:     5,
		QuoteMaxAge:   30 * time.Second,
		HedgeQuantity: 1,
	}
}

// Engine - торговый цикл
//
// Раз в тик оценивает расхождение цены ETF и NAV и при сигнале
// синхронно исполняет корзину или хедж. Исполнение блокирует цикл:
// два торговых действия никогда не идут одновременно, следующий тик
// просто ждёт завершения текущего
//
// План корзины пересчитывается раз в несколько тиков и потребляется
// ровно одним входом: после исполнения план сбрасывается, повторный
// вход ждёт свежего пересчёта по новым ценам
type Engine struct {
	cfg EngineConfig

	store    *market.Store
	monitor  *market.DivergenceMonitor
	executor *OrderExecutor
	book     *PositionBook
	venue    venue.Venue
	ledger   TradeLedger
	notifier Notifier
	log      *zap.SugaredLogger

	plan      *basket.Plan
	tickCount int

	// halted читается HTTP обработчиком статуса из чужих горутин
	halted atomic.Bool
}

// NewEngine создаёт торговый цикл
func NewEngine(
	cfg EngineConfig,
	store *market.Store,
	monitor *market.DivergenceMonitor,
	executor *OrderExecutor,
	book *PositionBook,
	v venue.Venue,
	ledger TradeLedger,
	notifier Notifier,
	logger *zap.SugaredLogger,
) *Engine {
	return &Engine{
		cfg:      cfg,
		store:    store,
		monitor:  monitor,
		executor: executor,
		book:     book,
		venue:    v,
		ledger:   ledger,
		notifier: notifier,
		log:      logger,
	}
}

// Run запускает цикл до отмены контекста
func (e *Engine) Run(ctx context.Context) {
	e.log.Infow("trading loop started",
		"tick_interval", e.cfg.TickInterval,
		"plan_every", e.cfg.PlanEvery)

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	// Контекст цикла останавливает только новые тики. Уже идущая
	// последовательность ордеров обрываться не должна: подтверждение
	// и цены добираются до конца, иначе исполненные ноги останутся
	// в неизвестном статусе. Опросы внутри исполнения и так ограничены
	// счётчиком попыток
	execCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			e.log.Infow("trading loop stopped")
			return
		case <-ticker.C:
			e.Tick(execCtx)
		}
	}
}

// Tick выполняет один шаг цикла: пересчёт плана по расписанию,
// оценку сигнала и, при необходимости, торговое действие
func (e *Engine) Tick(ctx context.Context) {
	if e.halted.Load() {
		return
	}
	e.tickCount++

	div, ok := e.monitor.Current()
	if !ok {
		// Фид ещё не дал обе величины
		return
	}
	RecordDivergence(div.Diff)

	if e.tickCount%e.cfg.PlanEvery == 1 || e.plan == nil {
		e.refreshPlan()
	}

	action := e.cfg.Thresholds.Evaluate(e.book.Kind(), div.Diff)
	if action == ActionNone {
		return
	}

	e.log.Infow("signal triggered",
		"action", action.String(),
		"divergence", div.Diff,
		"price", div.Price,
		"nav", div.NAV)

	switch action {
	case ActionEnterBasket:
		e.enterBasket(ctx)
	case ActionExitBasket:
		e.exitPosition(ctx, models.TradeReasonSignal)
	case ActionEnterHedge:
		e.enterHedge(ctx)
	case ActionExitHedge:
		e.exitPosition(ctx, models.TradeReasonSignal)
	}
}

// Halted возвращает true после принудительной распродажи
func (e *Engine) Halted() bool {
	return e.halted.Load()
}

// Resume снимает остановку перед новой торговой сессией
// План и счётчик тиков сбрасываются: вчерашние цены не годятся
func (e *Engine) Resume() {
	e.halted.Store(false)
	e.plan = nil
	e.tickCount = 0
}

// refreshPlan пересчитывает план корзины по текущему срезу цен
func (e *Engine) refreshPlan() {
	prices := e.store.Snapshot()
	UpdateSnapshotCompleteness(len(prices))

	missing := e.store.Missing(models.BasketCodes(), e.cfg.QuoteMaxAge)
	if len(missing) > 0 {
		// Неполный срез не повод останавливаться: вход без плана
		// всё равно не случится
		e.log.Debugw("snapshot incomplete", "missing", missing)
		return
	}

	plan, err := basket.ComputePlan(prices, models.BasketUniverse(), models.AnchorCode, models.AnchorQuantity)
	if err != nil {
		var incomplete *basket.IncompleteSnapshotError
		if errors.As(err, &incomplete) {
			e.log.Warnw("plan skipped, snapshot incomplete", "missing", incomplete.Missing)
		} else {
			e.log.Errorw("plan computation failed", "error", err)
		}
		return
	}

	e.plan = plan
	e.log.Debugw("basket plan refreshed",
		"total_cost", plan.TotalCost,
		"max_weight_error_pct", plan.MaxWeightErrorPercent)
}

// enterBasket покупает корзину по текущему плану
func (e *Engine) enterBasket(ctx context.Context) {
	if e.plan == nil {
		e.log.Warnw("enter basket skipped, no fresh plan")
		return
	}

	specs := make([]OrderSpec, 0, len(e.plan.Quantities))
	for _, code := range e.plan.SortedCodes() {
		inst, _ := models.InstrumentByCode(code)
		specs = append(specs, OrderSpec{
			Code:     code,
			Name:     inst.Name,
			Side:     venue.SideBuy,
			Quantity: e.plan.Quantities[code],
		})
	}

	// План потребляется этим входом независимо от исхода
	e.plan = nil

	e.executor.SetOnFirstConfirm(func(confirmedAt time.Time) {
		e.book.OpenOptimistic(models.PositionBasket, confirmedAt)
		UpdatePosition(models.PositionBasket)
	})
	report := e.executor.Execute(ctx, specs)
	e.executor.SetOnFirstConfirm(nil)

	if report.FilledCount() == 0 {
		// Ни одной подтверждённой ноги: позиция не менялась,
		// сигнал будет переоценён на следующем тике
		e.log.Errorw("basket entry failed, no legs filled",
			"failed", report.FailedCount())
		e.notify(fmt.Sprintf("Вход в корзину не исполнен: отказано ног %d", report.FailedCount()))
		return
	}

	amount, unresolved := report.Amount()
	e.book.Finalize(amount, unresolved, report.PositionLegs())

	e.log.Infow("basket entered",
		"amount", amount,
		"amount_unresolved", unresolved,
		"legs_filled", report.FilledCount(),
		"legs_failed", report.FailedCount())
	e.notify(fmt.Sprintf("Куплена корзина: ног %d, сумма %.0f", report.FilledCount(), amount))
}

// enterHedge покупает ETF как хеджевую позицию
func (e *Engine) enterHedge(ctx context.Context) {
	specs := []OrderSpec{{
		Code:     models.ETFCode,
		Name:     models.ETFName,
		Side:     venue.SideBuy,
		Quantity: e.cfg.HedgeQuantity,
	}}

	e.executor.SetOnFirstConfirm(func(confirmedAt time.Time) {
		e.book.OpenOptimistic(models.PositionHedge, confirmedAt)
		UpdatePosition(models.PositionHedge)
	})
	report := e.executor.Execute(ctx, specs)
	e.executor.SetOnFirstConfirm(nil)

	if report.FilledCount() == 0 {
		e.log.Errorw("hedge entry failed")
		e.notify("Вход в хедж не исполнен")
		return
	}

	amount, unresolved := report.Amount()
	e.book.Finalize(amount, unresolved, report.PositionLegs())

	e.log.Infow("hedge entered", "amount", amount, "amount_unresolved", unresolved)
	e.notify(fmt.Sprintf("Куплен ETF (хедж), сумма %.0f", amount))
}

// exitPosition продаёт все ноги текущей позиции
func (e *Engine) exitPosition(ctx context.Context, reason string) {
	pos := e.book.View()
	if !pos.IsOpen() {
		return
	}
	if len(pos.Legs) == 0 {
		// Позиция открыта, но состав ног неизвестен (например после
		// рестарта без дозаписи): точечная продажа невозможна,
		// закрыть её сможет только распродажа по остаткам счёта
		e.log.Warnw("exit skipped, position has no legs", "kind", pos.Kind)
		return
	}

	specs := make([]OrderSpec, 0, len(pos.Legs))
	for _, leg := range pos.Legs {
		specs = append(specs, OrderSpec{
			Code:     leg.Code,
			Name:     leg.Name,
			Side:     venue.SideSell,
			Quantity: leg.Quantity,
		})
	}

	// Оптимистичный сброс: первое подтверждение продажи означает,
	// что позиции в прежнем виде больше нет
	e.executor.SetOnFirstConfirm(func(time.Time) {
		e.book.Clear()
		UpdatePosition(models.PositionNone)
	})
	report := e.executor.Execute(ctx, specs)
	e.executor.SetOnFirstConfirm(nil)

	if report.FilledCount() == 0 {
		e.log.Errorw("exit failed, no legs filled",
			"kind", pos.Kind,
			"failed", report.FailedCount())
		e.notify(fmt.Sprintf("Выход из %s не исполнен", pos.Kind))
		return
	}

	e.recordTrade(ctx, pos, report, reason)
}

// recordTrade записывает завершённую сделку в журнал
func (e *Engine) recordTrade(ctx context.Context, pos models.Position, report *ExecReport, reason string) {
	exitAmount, exitUnresolved := report.Amount()

	profit := exitAmount - pos.EntryAmount
	unresolved := pos.AmountUnresolved || exitUnresolved
	if unresolved {
		// Часть сумм неизвестна, прибыль не считается достоверной
		e.log.Warnw("trade amount unresolved", "kind", pos.Kind)
	}

	trade := &models.TradeRecord{
		Kind:             pos.Kind,
		Reason:           reason,
		EntryTime:        pos.EntryTime,
		ExitTime:         time.Now(),
		EntryAmount:      pos.EntryAmount,
		ExitAmount:       exitAmount,
		Profit:           profit,
		ReturnPercent:    utils.ReturnPercent(pos.EntryAmount, exitAmount),
		AmountUnresolved: unresolved,
		LegsFilled:       report.FilledCount(),
		LegsFailed:       report.FailedCount(),
	}

	if err := e.ledger.Record(ctx, trade); err != nil {
		// Журнал fire-and-forget: сделка уже совершена
		e.log.Errorw("trade record failed", "error", err)
	}

	RecordTrade(pos.Kind, reason, profit)
	e.log.Infow("position closed",
		"kind", pos.Kind,
		"reason", reason,
		"entry_amount", pos.EntryAmount,
		"exit_amount", exitAmount,
		"profit", profit)
	e.notify(fmt.Sprintf("Закрыта позиция %s: результат %.0f (%.2f%%)",
		pos.Kind, profit, trade.ReturnPercent))
}

func (e *Engine) notify(text string) {
	if e.notifier != nil {
		e.notifier.Notify(text)
	}
}

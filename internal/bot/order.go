package bot

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"basketarb/internal/models"
	"basketarb/internal/venue"
	"basketarb/pkg/retry"
)

// OrderExecutor - исполнитель корзинных ордеров
//
// Исполнение идёт тремя фазами по всем ногам сразу:
//  1. отправка всех заявок (submit) - пока подтверждается первая нога,
//     остальные заявки уже стоят в биржевом стакане
//  2. подтверждение исполнения (confirm) - опрос списка неисполненных
//  3. получение цен исполнения (price) - опрос дневного журнала сделок
//
// Заявки рыночные, поэтому фаза отправки критична по времени, а фазы
// подтверждения и цен могут спокойно опрашивать брокера с интервалом
type OrderExecutor struct {
	venue venue.Venue
	cfg   ExecutorConfig
	log   *zap.SugaredLogger

	// вызывается один раз при первом подтверждённом исполнении
	onFirstConfirm func(confirmedAt time.Time)
}

// ExecutorConfig содержит настройки исполнителя
type ExecutorConfig struct {
	SubmitRetry retry.Config // повторы отправки заявки
	PriceRetry  retry.Config // повторы запроса цены исполнения

	ConfirmInterval time.Duration // интервал опроса неисполненных
	ConfirmAttempts int           // попыток подтверждения в обычном режиме

	// Попыток подтверждения при принудительной распродаже: в конце
	// сессии важнее дождаться исполнения, чем уложиться в минуту
	LiquidationConfirmAttempts int
}

// DefaultExecutorConfig возвращает настройки по умолчанию
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		SubmitRetry:                retry.OrderSubmitConfig(),
		PriceRetry:                 retry.FillPriceConfig(),
		ConfirmInterval:            time.Second,
		ConfirmAttempts:            60,
		LiquidationConfirmAttempts: 180,
	}
}

// OrderSpec - задание на одну ногу корзины
type OrderSpec struct {
	Code     string
	Name     string
	Side     string // venue.SideBuy или venue.SideSell
	Quantity int
}

// LegExecution - результат исполнения одной ноги
type LegExecution struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Side     string  `json:"side"`
	Quantity int     `json:"quantity"`
	Status   string  `json:"status"`
	OrderNo  string  `json:"order_no,omitempty"`
	Price    float64 `json:"price,omitempty"`

	Err error `json:"-"`
}

// ExecReport - итог исполнения корзины
type ExecReport struct {
	Legs       []LegExecution `json:"legs"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// NewOrderExecutor создаёт исполнитель
func NewOrderExecutor(v venue.Venue, cfg ExecutorConfig, logger *zap.SugaredLogger) *OrderExecutor {
	return &OrderExecutor{
		venue: v,
		cfg:   cfg,
		log:   logger,
	}
}

// SetOnFirstConfirm устанавливает callback первого подтверждения
// Торговый цикл по нему оптимистично фиксирует открытие позиции
func (oe *OrderExecutor) SetOnFirstConfirm(fn func(confirmedAt time.Time)) {
	oe.onFirstConfirm = fn
}

// Execute исполняет корзину в обычном режиме
func (oe *OrderExecutor) Execute(ctx context.Context, specs []OrderSpec) *ExecReport {
	return oe.execute(ctx, specs, oe.cfg.ConfirmAttempts)
}

// ExecuteLiquidation исполняет корзину в режиме распродажи
// с расширенным лимитом подтверждения
func (oe *OrderExecutor) ExecuteLiquidation(ctx context.Context, specs []OrderSpec) *ExecReport {
	return oe.execute(ctx, specs, oe.cfg.LiquidationConfirmAttempts)
}

func (oe *OrderExecutor) execute(ctx context.Context, specs []OrderSpec, confirmAttempts int) *ExecReport {
	report := &ExecReport{
		Legs:      make([]LegExecution, len(specs)),
		StartedAt: time.Now(),
	}
	for i, spec := range specs {
		report.Legs[i] = LegExecution{
			Code:     spec.Code,
			Name:     spec.Name,
			Side:     spec.Side,
			Quantity: spec.Quantity,
			Status:   models.LegSubmitting,
		}
	}

	// Фаза 1: отправляем все заявки до каких-либо подтверждений
	for i := range report.Legs {
		oe.submitLeg(ctx, &report.Legs[i])
	}

	// Фаза 2: подтверждаем исполнение принятых заявок
	firstConfirmFired := false
	for i := range report.Legs {
		leg := &report.Legs[i]
		if leg.Status != models.LegAccepted {
			continue
		}
		oe.confirmLeg(ctx, leg, confirmAttempts)

		if leg.Status == models.LegFilledUnpriced && !firstConfirmFired {
			firstConfirmFired = true
			if oe.onFirstConfirm != nil {
				oe.onFirstConfirm(time.Now())
			}
		}
	}

	// Фаза 3: получаем цены исполнения
	for i := range report.Legs {
		leg := &report.Legs[i]
		if leg.Status != models.LegFilledUnpriced {
			continue
		}
		oe.priceLeg(ctx, leg)
	}

	report.FinishedAt = time.Now()
	return report
}

// submitLeg отправляет заявку с повторами
func (oe *OrderExecutor) submitLeg(ctx context.Context, leg *LegExecution) {
	started := time.Now()

	orderNo, err := retry.DoWithResult(ctx, func() (string, error) {
		return oe.venue.SubmitMarketOrder(ctx, leg.Code, leg.Side, leg.Quantity)
	}, oe.cfg.SubmitRetry)
	if err != nil {
		oe.failLeg(leg, models.LegFailedSubmit, err)
		oe.log.Errorw("order submit failed",
			"code", leg.Code,
			"side", leg.Side,
			"error", err)
		return
	}

	leg.OrderNo = orderNo
	oe.setStatus(leg, models.LegAccepted)
	RecordOrderSubmitLatency(leg.Side, time.Since(started).Seconds())
}

// confirmLeg опрашивает список неисполненных заявок
// Уход заявки из списка означает полное исполнение:
// рыночная заявка не может остаться частично исполненной
func (oe *OrderExecutor) confirmLeg(ctx context.Context, leg *LegExecution, attempts int) {
	for attempt := 1; attempt <= attempts; attempt++ {
		outstanding, err := oe.venue.IsOrderOutstanding(ctx, leg.OrderNo)
		if err != nil {
			// Ошибка опроса не решает судьбу заявки, пробуем дальше
			oe.log.Warnw("outstanding check failed",
				"code", leg.Code,
				"order_no", leg.OrderNo,
				"attempt", attempt,
				"error", err)
		} else if !outstanding {
			oe.setStatus(leg, models.LegFilledUnpriced)
			return
		}

		select {
		case <-ctx.Done():
			oe.failLeg(leg, models.LegFailedConfirm, ctx.Err())
			return
		case <-time.After(oe.cfg.ConfirmInterval):
		}
	}

	oe.failLeg(leg, models.LegFailedConfirm, errors.New("confirm attempts exhausted"))
	RecordConfirmExhausted(leg.Code)
}

// priceLeg запрашивает цену исполнения с повторами
// Запись в журнале появляется с задержкой, ErrFillNotFound временная
func (oe *OrderExecutor) priceLeg(ctx context.Context, leg *LegExecution) {
	type fill struct {
		price float64
		qty   int
	}
	res, err := retry.DoWithResult(ctx, func() (fill, error) {
		price, qty, err := oe.venue.GetFillPrice(ctx, leg.OrderNo)
		return fill{price: price, qty: qty}, err
	}, oe.cfg.PriceRetry)
	if err != nil {
		// Бумага куплена/продана, но цена неизвестна
		oe.failLeg(leg, models.LegFailedPrice, err)
		oe.log.Warnw("fill price unresolved",
			"code", leg.Code,
			"order_no", leg.OrderNo,
			"error", err)
		RecordPriceExhausted(leg.Code)
		return
	}

	leg.Price = res.price
	if res.qty > 0 {
		leg.Quantity = res.qty
	}
	oe.setStatus(leg, models.LegFilledPriced)
}

func (oe *OrderExecutor) setStatus(leg *LegExecution, to string) {
	if !CanTransitionLeg(leg.Status, to) {
		oe.log.Errorw("invalid leg transition",
			"code", leg.Code,
			"from", leg.Status,
			"to", to)
		return
	}
	leg.Status = to
}

func (oe *OrderExecutor) failLeg(leg *LegExecution, to string, err error) {
	leg.Err = err
	oe.setStatus(leg, to)
	RecordLegFailure(to)
}

// ============================================================
// Сводные методы отчёта
// ============================================================

// FilledCount возвращает число реально исполненных ног
func (r *ExecReport) FilledCount() int {
	count := 0
	for _, leg := range r.Legs {
		if IsLegFilled(leg.Status) {
			count++
		}
	}
	return count
}

// FailedCount возвращает число ног, не дошедших до исполнения
func (r *ExecReport) FailedCount() int {
	count := 0
	for _, leg := range r.Legs {
		if leg.Status == models.LegFailedSubmit || leg.Status == models.LegFailedConfirm {
			count++
		}
	}
	return count
}

// AllFilled возвращает true, если исполнены все ноги
func (r *ExecReport) AllFilled() bool {
	return r.FilledCount() == len(r.Legs)
}

// Amount возвращает сумму исполнения по известным ценам
// Ноги без цены входят с нулём, unresolved помечает такую сумму
func (r *ExecReport) Amount() (amount float64, unresolved bool) {
	for _, leg := range r.Legs {
		switch leg.Status {
		case models.LegFilledPriced:
			amount += leg.Price * float64(leg.Quantity)
		case models.LegFailedPrice:
			unresolved = true
		}
	}
	return amount, unresolved
}

// PositionLegs возвращает исполненные ноги для фиксации позиции
func (r *ExecReport) PositionLegs() []models.PositionLeg {
	legs := make([]models.PositionLeg, 0, len(r.Legs))
	for _, leg := range r.Legs {
		if !IsLegFilled(leg.Status) {
			continue
		}
		legs = append(legs, models.PositionLeg{
			Code:       leg.Code,
			Name:       leg.Name,
			Quantity:   leg.Quantity,
			Price:      leg.Price,
			OrderNo:    leg.OrderNo,
			Unresolved: leg.Status == models.LegFailedPrice,
		})
	}
	return legs
}

package bot

import (
	"context"
	"fmt"
	"time"

	"basketarb/internal/models"
	"basketarb/internal/venue"
)

// LiquidateAll продаёт все бумаги на счёте и останавливает торговлю
//
// Путь аварийного закрытия и конца сессии: продаётся то, что реально
// лежит на счёте, а не то, что числится в локальной позиции. После
// рестарта или сбоя локальное состояние могло разойтись с брокером,
// остаткам счёта доверие всегда выше
func (e *Engine) LiquidateAll(ctx context.Context) error {
	e.halted.Store(true)

	holdings, err := e.venue.GetHoldings(ctx)
	if err != nil {
		e.notify("Распродажа не началась: остатки счёта недоступны")
		return fmt.Errorf("liquidation holdings lookup: %w", err)
	}

	pos := e.book.View()

	if len(holdings) == 0 {
		e.log.Infow("liquidation: account is already flat")
		e.book.Clear()
		UpdatePosition(models.PositionNone)
		return nil
	}

	specs := make([]OrderSpec, 0, len(holdings))
	for _, h := range holdings {
		specs = append(specs, OrderSpec{
			Code:     h.Code,
			Name:     h.Name,
			Side:     venue.SideSell,
			Quantity: h.Quantity,
		})
	}

	e.log.Infow("liquidation started", "holdings", len(specs))
	e.notify(fmt.Sprintf("Распродажа позиций: бумаг %d", len(specs)))

	e.executor.SetOnFirstConfirm(func(time.Time) {
		e.book.Clear()
		UpdatePosition(models.PositionNone)
	})
	report := e.executor.ExecuteLiquidation(ctx, specs)
	e.executor.SetOnFirstConfirm(nil)

	// Сделка записывается всегда: даже нулевые или неполные суммы
	// должны попасть в журнал, распродажа не бывает "не случившейся"
	if pos.IsOpen() {
		e.recordTrade(ctx, pos, report, models.TradeReasonLiquidation)
	}

	if !report.AllFilled() {
		err := fmt.Errorf("liquidation incomplete: %d of %d legs filled",
			report.FilledCount(), len(report.Legs))
		e.log.Errorw("liquidation incomplete",
			"filled", report.FilledCount(),
			"total", len(report.Legs))
		e.notify(fmt.Sprintf("Распродажа неполная: исполнено %d из %d",
			report.FilledCount(), len(report.Legs)))
		return err
	}

	e.log.Infow("liquidation complete", "legs", len(report.Legs))
	e.notify("Распродажа завершена, торговля остановлена")
	return nil
}

package bot

import (
	"context"
	"fmt"

	"basketarb/internal/models"
)

// DetectStartupPosition восстанавливает позицию по остаткам счёта
//
// Бот не считает позицию пустой после рестарта: если на счёте лежит
// ETF, это хедж, если лежат бумаги корзины - корзина. Время входа и
// сумма неизвестны, позиция помечается нерасчётной и закрывается
// обычными сигналами или распродажей
func (e *Engine) DetectStartupPosition(ctx context.Context) error {
	holdings, err := e.venue.GetHoldings(ctx)
	if err != nil {
		return fmt.Errorf("startup holdings lookup: %w", err)
	}

	var etfLegs, basketLegs []models.PositionLeg
	for _, h := range holdings {
		leg := models.PositionLeg{
			Code:       h.Code,
			Name:       h.Name,
			Quantity:   h.Quantity,
			Unresolved: true,
		}
		switch {
		case h.Code == models.ETFCode:
			etfLegs = append(etfLegs, leg)
		case models.IsBasketCode(h.Code):
			basketLegs = append(basketLegs, leg)
		default:
			// Посторонняя бумага на счёте не принадлежит боту
			e.log.Warnw("unrelated holding ignored",
				"code", h.Code,
				"name", h.Name,
				"quantity", h.Quantity)
		}
	}

	switch {
	case len(etfLegs) > 0:
		e.book.Restore(models.PositionHedge, etfLegs)
		UpdatePosition(models.PositionHedge)
		e.log.Infow("startup position detected", "kind", models.PositionHedge)
	case len(basketLegs) > 0:
		e.book.Restore(models.PositionBasket, basketLegs)
		UpdatePosition(models.PositionBasket)
		e.log.Infow("startup position detected",
			"kind", models.PositionBasket,
			"legs", len(basketLegs))
	default:
		e.book.Clear()
		UpdatePosition(models.PositionNone)
		e.log.Infow("startup position detected", "kind", models.PositionNone)
	}

	return nil
}

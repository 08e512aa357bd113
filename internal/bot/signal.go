package bot

import (
	"fmt"

	"basketarb/internal/models"
)

// Action - торговое действие по результату оценки расхождения
type Action int

const (
	ActionNone Action = iota
	ActionEnterBasket
	ActionExitBasket
	ActionEnterHedge
	ActionExitHedge
)

// String возвращает имя действия для логов
func (a Action) String() string {
	switch a {
	case ActionEnterBasket:
		return "enter_basket"
	case ActionExitBasket:
		return "exit_basket"
	case ActionEnterHedge:
		return "enter_hedge"
	case ActionExitHedge:
		return "exit_hedge"
	default:
		return "none"
	}
}

// Thresholds - пороги расхождения d = цена ETF - NAV
//
// Строгий порядок Hedge < Exit < Enter гарантирует, что один тик
// не даст одновременно сигнал входа в корзину и в хедж
type Thresholds struct {
	Enter float64 // вход в корзину: d >= Enter при пустой позиции
	Exit  float64 // выход: d <= Exit для корзины, d >= Exit для хеджа
	Hedge float64 // вход в хедж: d <= Hedge при пустой позиции
}

// Validate проверяет порядок порогов
func (t Thresholds) Validate() error {
	if !(t.Hedge < t.Exit && t.Exit < t.Enter) {
		return fmt.Errorf("thresholds must be ordered hedge < exit < enter, got hedge=%v exit=%v enter=%v",
			t.Hedge, t.Exit, t.Enter)
	}
	return nil
}

// Evaluate возвращает действие для текущей позиции и расхождения
//
// При открытой позиции сигналы входа игнорируются: повторный вход
// невозможен, пока позиция не закрыта
func (t Thresholds) Evaluate(positionKind string, diff float64) Action {
	switch positionKind {
	case models.PositionNone:
		if diff >= t.Enter {
			return ActionEnterBasket
		}
		if diff <= t.Hedge {
			return ActionEnterHedge
		}
	case models.PositionBasket:
		if diff <= t.Exit {
			return ActionExitBasket
		}
	case models.PositionHedge:
		if diff >= t.Exit {
			return ActionExitHedge
		}
	}
	return ActionNone
}

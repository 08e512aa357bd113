// Package basket рассчитывает состав корзины, реплицирующей ETF.
package basket

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"basketarb/internal/models"
)

// Ошибки оптимизатора
var (
	// ErrDegenerateWeight - вес якорной бумаги равен нулю,
	// обратный счёт размера инвестиции невозможен
	ErrDegenerateWeight = errors.New("anchor weight is zero")
)

// IncompleteSnapshotError - в снимке цен нет пригодной котировки
// по части бумаг корзины
type IncompleteSnapshotError struct {
	Missing []string
}

func (e *IncompleteSnapshotError) Error() string {
	return fmt.Sprintf("price snapshot incomplete: missing %v", e.Missing)
}

// Plan - рассчитанный план корзины
type Plan struct {
	// Quantities - код бумаги → количество акций к покупке
	Quantities map[string]int `json:"quantities"`
	// TotalCost - стоимость корзины по ценам снимка
	TotalCost float64 `json:"total_cost"`
	// MaxWeightErrorPercent - максимальное по бумагам относительное
	// отклонение фактического веса от целевого, в процентах.
	// Диагностика качества репликации: округление до целых акций
	// сильнее всего бьёт по дешёвым бумагам с малым количеством
	MaxWeightErrorPercent float64   `json:"max_weight_error_percent"`
	ComputedAt            time.Time `json:"computed_at"`
}

// ComputePlan рассчитывает количества акций корзины по снимку цен
//
// Алгоритм:
// 1. Рыночная стоимость бумаги = цена * эталонное количество в ETF
// 2. Целевой вес бумаги = её доля в суммарной рыночной стоимости
// 3. Якорная бумага фиксируется в anchorQty акций, общий размер
//    инвестиции восстанавливается из её веса: total = cost(anchor) / weight(anchor)
// 4. Остальные количества: max(1, round(total * weight / цена))
//
// Функция чистая: не читает глобальное состояние и не делает I/O
func ComputePlan(prices map[string]float64, universe []models.Instrument, anchorCode string, anchorQty int) (*Plan, error) {
	if len(universe) == 0 {
		return nil, errors.New("empty basket universe")
	}
	if anchorQty <= 0 {
		return nil, fmt.Errorf("anchor quantity must be positive, got %d", anchorQty)
	}

	// Проверка полноты снимка до любых расчётов
	var missing []string
	for _, inst := range universe {
		if p, ok := prices[inst.Code]; !ok || p <= 0 {
			missing = append(missing, inst.Code)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &IncompleteSnapshotError{Missing: missing}
	}

	// Целевые веса из эталонного состава ETF
	totalMarketValue := 0.0
	marketValues := make(map[string]float64, len(universe))
	for _, inst := range universe {
		mv := prices[inst.Code] * float64(inst.RefQuantity)
		marketValues[inst.Code] = mv
		totalMarketValue += mv
	}
	if totalMarketValue <= 0 {
		return nil, ErrDegenerateWeight
	}

	anchorWeight := marketValues[anchorCode] / totalMarketValue
	if anchorWeight == 0 {
		return nil, ErrDegenerateWeight
	}

	// Обратный счёт размера инвестиции от фиксированного якоря
	anchorCost := prices[anchorCode] * float64(anchorQty)
	totalInvestment := anchorCost / anchorWeight

	quantities := make(map[string]int, len(universe))
	totalCost := 0.0
	for _, inst := range universe {
		var qty int
		if inst.Code == anchorCode {
			qty = anchorQty
		} else {
			weight := marketValues[inst.Code] / totalMarketValue
			target := totalInvestment * weight
			qty = int(math.Round(target / prices[inst.Code]))
			if qty < 1 {
				qty = 1
			}
		}
		quantities[inst.Code] = qty
		totalCost += float64(qty) * prices[inst.Code]
	}

	// Ошибка весов после округления
	maxWeightError := 0.0
	for _, inst := range universe {
		targetWeight := marketValues[inst.Code] / totalMarketValue
		actualWeight := float64(quantities[inst.Code]) * prices[inst.Code] / totalCost
		errPct := math.Abs(actualWeight-targetWeight) / targetWeight * 100
		if errPct > maxWeightError {
			maxWeightError = errPct
		}
	}

	return &Plan{
		Quantities:            quantities,
		TotalCost:             totalCost,
		MaxWeightErrorPercent: maxWeightError,
		ComputedAt:            time.Now(),
	}, nil
}

// SortedCodes возвращает коды плана в детерминированном порядке
// Порядок исполнения ног воспроизводим между запусками
func (p *Plan) SortedCodes() []string {
	codes := make([]string, 0, len(p.Quantities))
	for code := range p.Quantities {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

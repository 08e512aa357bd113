package bot

import "basketarb/internal/models"

// ValidLegTransitions определяет допустимые переходы статуса ноги ордера
var ValidLegTransitions = map[string][]string{
	models.LegSubmitting:     {models.LegAccepted, models.LegFailedSubmit},
	models.LegAccepted:       {models.LegFilledUnpriced, models.LegFailedConfirm},
	models.LegFilledUnpriced: {models.LegFilledPriced, models.LegFailedPrice},
	models.LegFilledPriced:   {}, // терминальный
	models.LegFailedSubmit:   {}, // терминальный
	models.LegFailedConfirm:  {}, // терминальный
	models.LegFailedPrice:    {}, // терминальный
}

// CanTransitionLeg проверяет допустимость перехода статуса ноги
func CanTransitionLeg(from, to string) bool {
	allowed, ok := ValidLegTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsLegTerminal возвращает true, если статус ноги финальный
func IsLegTerminal(s string) bool {
	allowed, ok := ValidLegTransitions[s]
	return ok && len(allowed) == 0
}

// IsLegFailure возвращает true для статусов отказа
// FAILED_PRICE означает исполненную ногу с неизвестной ценой,
// для подсчёта исполнения она считается заполненной
func IsLegFailure(s string) bool {
	return s == models.LegFailedSubmit || s == models.LegFailedConfirm || s == models.LegFailedPrice
}

// IsLegFilled возвращает true, если бумага по ноге реально куплена/продана
// независимо от того, известна ли цена исполнения
func IsLegFilled(s string) bool {
	return s == models.LegFilledUnpriced || s == models.LegFilledPriced || s == models.LegFailedPrice
}

// LegStatusInfo возвращает описание статуса для UI
func LegStatusInfo(s string) string {
	switch s {
	case models.LegSubmitting:
		return "Отправка заявки брокеру..."
	case models.LegAccepted:
		return "Заявка принята (ожидание исполнения)"
	case models.LegFilledUnpriced:
		return "Исполнено (цена уточняется)"
	case models.LegFilledPriced:
		return "Исполнено"
	case models.LegFailedSubmit:
		return "Не удалось отправить заявку"
	case models.LegFailedConfirm:
		return "Исполнение не подтверждено"
	case models.LegFailedPrice:
		return "Исполнено, цена не получена"
	default:
		return "Неизвестный статус"
	}
}

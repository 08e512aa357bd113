package models

// Статусы ноги ордера
//
// Жизненный цикл:
// SUBMITTING → ACCEPTED → FILLED_UNPRICED → FILLED_PRICED
//
// Терминальные статусы отказа:
// - FAILED_SUBMIT: заявка не принята брокером после всех попыток
// - FAILED_CONFIRM: заявка принята, но исполнение не подтверждено за отведённые опросы
// - FAILED_PRICE: исполнение подтверждено, но цену сделки получить не удалось
const (
	LegSubmitting     = "SUBMITTING"
	LegAccepted       = "ACCEPTED"
	LegFilledUnpriced = "FILLED_UNPRICED"
	LegFilledPriced   = "FILLED_PRICED"
	LegFailedSubmit   = "FAILED_SUBMIT"
	LegFailedConfirm  = "FAILED_CONFIRM"
	LegFailedPrice    = "FAILED_PRICE"
)

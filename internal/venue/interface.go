// Package venue предоставляет интерфейс для работы с брокерским API
// (Korea Investment & Securities OpenAPI).
package venue

import (
	"context"
	"errors"
)

// Venue определяет операции брокера, нужные торговому ядру
type Venue interface {
	// SubmitMarketOrder отправляет рыночный ордер и возвращает номер заявки
	SubmitMarketOrder(ctx context.Context, code, side string, quantity int) (string, error)

	// IsOrderOutstanding проверяет, числится ли заявка в списке неисполненных
	// false означает полное исполнение либо отсутствие в списке
	IsOrderOutstanding(ctx context.Context, orderNo string) (bool, error)

	// GetFillPrice возвращает среднюю цену и количество исполнения заявки
	// Если запись об исполнении ещё не появилась, возвращает ErrFillNotFound
	GetFillPrice(ctx context.Context, orderNo string) (price float64, quantity int, err error)

	// GetHoldings возвращает список бумаг на счёте с ненулевым остатком
	GetHoldings(ctx context.Context) ([]Holding, error)
}

// Holding представляет позицию по бумаге на брокерском счёте
type Holding struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// ErrFillNotFound возвращается, когда запись об исполнении ещё не доступна
// Брокер публикует цену исполнения с задержкой, ошибка считается временной
var ErrFillNotFound = errors.New("fill record not found")

// VenueError представляет ошибку, возвращённую брокерским API
type VenueError struct {
	Endpoint string // путь запроса
	Code     string // rt_cd либо HTTP статус
	Message  string // msg1 из ответа
	Original error
}

func (e *VenueError) Error() string {
	return "kis " + e.Endpoint + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для поддержки errors.Is() и errors.As()
func (e *VenueError) Unwrap() error {
	return e.Original
}

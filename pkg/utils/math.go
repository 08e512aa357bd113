package utils

import (
	"math"
)

// math.go - математические утилиты стратегии
//
// Все функции чистые, без побочных эффектов

// ReturnPercent расчитывает доходность сделки в процентах
//
// Формула: (exit - entry) / entry × 100
//
// Возвращает 0 если entry <= 0 (сумма входа неизвестна,
// доходность не определена)
func ReturnPercent(entryAmount, exitAmount float64) float64 {
	if entryAmount <= 0 {
		return 0
	}
	return (exitAmount - entryAmount) / entryAmount * 100
}

// WinRatePercent расчитывает долю прибыльных сделок в процентах
func WinRatePercent(winTrades, totalTrades int) float64 {
	if totalTrades <= 0 {
		return 0
	}
	return float64(winTrades) / float64(totalTrades) * 100
}

// WeightPercent расчитывает долю части в целом, в процентах
//
// Используется для отчётов по весам корзины
func WeightPercent(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return part / total * 100
}

// Round2 округляет до двух знаков (денежные суммы в отчётах)
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// Abs возвращает абсолютное значение числа
func Abs(x float64) float64 {
	return math.Abs(x)
}

// Clamp ограничивает значение диапазоном [min, max]
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

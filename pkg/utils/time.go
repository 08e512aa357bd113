package utils

import (
	"fmt"
	"time"
)

// time.go - утилиты времени торговой сессии
//
// Биржа работает по местному времени площадки (KRX: Asia/Seoul),
// все границы сессии считаются в её timezone

// ParseClock разбирает время дня в формате "HH:MM"
func ParseClock(value string) (hour, minute int, err error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock value %q: %w", value, err)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

// ClockAt возвращает момент с указанным временем дня в дате и timezone t
func ClockAt(t time.Time, hour, minute int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
}

// IsWeekend проверяет выходной день
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// NextBusinessDay возвращает ту же точку времени в следующий рабочий день
// Праздники биржи не учитываются: в праздник цикл просто не получит
// котировок и простоит сессию вхолостую
func NextBusinessDay(t time.Time) time.Time {
	next := t.AddDate(0, 0, 1)
	for IsWeekend(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// FormatDuration форматирует продолжительность в человекочитаемый формат
//
// Примеры: "45s", "5m30s", "2h15m"
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	return d.Round(time.Second).String()
}

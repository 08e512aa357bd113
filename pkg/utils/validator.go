package utils

import (
	"fmt"
	"strings"
)

// validator.go - валидация входных данных конфигурации

// ValidateInstrumentCode проверяет формат кода бумаги KRX (6 цифр)
func ValidateInstrumentCode(code string) error {
	if len(code) != 6 {
		return fmt.Errorf("instrument code must be 6 digits, got %q", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return fmt.Errorf("instrument code must be numeric, got %q", code)
		}
	}
	return nil
}

// ValidateAccountNumber проверяет формат брокерского счёта "XXXXXXXX-XX"
// (8 цифр номера + 2 цифры кода продукта)
func ValidateAccountNumber(account string) error {
	parts := strings.Split(account, "-")
	if len(parts) != 2 || len(parts[0]) != 8 || len(parts[1]) != 2 {
		return fmt.Errorf("account number must match XXXXXXXX-XX, got %q", account)
	}
	for _, part := range parts {
		for _, r := range part {
			if r < '0' || r > '9' {
				return fmt.Errorf("account number must be numeric, got %q", account)
			}
		}
	}
	return nil
}

// ValidateWebhookURL проверяет URL вебхука уведомлений
// Пустой URL допустим - уведомления просто выключены
func ValidateWebhookURL(url string) error {
	if url == "" {
		return nil
	}
	if !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("webhook url must use https, got %q", url)
	}
	return nil
}

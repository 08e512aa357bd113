package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestDo_SucceedsAfterFailures проверяет успех после нескольких отказов
func TestDo_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, Config{MaxRetries: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1.0})

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

// TestDo_ExhaustsRetries проверяет что возвращается последняя ошибка
func TestDo_ExhaustsRetries(t *testing.T) {
	attempts := 0
	wantErr := errors.New("always fails")

	err := Do(context.Background(), func() error {
		attempts++
		return wantErr
	}, Config{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1.0})

	if !errors.Is(err, wantErr) {
		t.Errorf("Do() error = %v, want %v", err, wantErr)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

// TestDo_PermanentStopsRetries проверяет что PermanentError обрывает попытки
func TestDo_PermanentStopsRetries(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func() error {
		attempts++
		return Permanent(errors.New("rejected by broker"))
	}, Config{
		MaxRetries:   5,
		InitialDelay: time.Millisecond,
		RetryIf:      IsRetryable,
	})

	if err == nil {
		t.Fatal("Do() error = nil, want permanent error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retries for permanent)", attempts)
	}
}

// TestDo_ContextCancellation проверяет остановку по отмене контекста
func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := Do(ctx, func() error {
		attempts++
		cancel()
		return errors.New("transient")
	}, Config{MaxRetries: 10, InitialDelay: 50 * time.Millisecond, Multiplier: 1.0})

	if err == nil {
		t.Fatal("Do() error = nil after context cancel")
	}
	if attempts > 2 {
		t.Errorf("attempts = %d, want early stop after cancel", attempts)
	}
}

// TestDoWithResult проверяет возврат значения после retry
func TestDoWithResult(t *testing.T) {
	attempts := 0
	orderNo, err := DoWithResult(context.Background(), func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("transient")
		}
		return "0000117057", nil
	}, Config{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1.0})

	if err != nil {
		t.Fatalf("DoWithResult() error = %v", err)
	}
	if orderNo != "0000117057" {
		t.Errorf("orderNo = %s, want 0000117057", orderNo)
	}
}

// TestCalculateDelay_FixedInterval проверяет что Multiplier=1 даёт
// постоянную задержку (режим опроса брокера)
func TestCalculateDelay_FixedInterval(t *testing.T) {
	cfg := OrderSubmitConfig()
	cfg.validate()

	for attempt := 0; attempt < 5; attempt++ {
		delay := cfg.calculateDelay(attempt)
		if delay != 500*time.Millisecond {
			t.Errorf("calculateDelay(%d) = %v, want 500ms", attempt, delay)
		}
	}
}

// TestCalculateDelay_ExponentialCapped проверяет ограничение MaxDelay
func TestCalculateDelay_ExponentialCapped(t *testing.T) {
	cfg := Config{InitialDelay: time.Second, MaxDelay: 4 * time.Second, Multiplier: 2.0}
	cfg.validate()

	if d := cfg.calculateDelay(0); d != time.Second {
		t.Errorf("calculateDelay(0) = %v, want 1s", d)
	}
	if d := cfg.calculateDelay(10); d != 4*time.Second {
		t.Errorf("calculateDelay(10) = %v, want capped 4s", d)
	}
}

// TestPresets проверяет параметры доменных пресетов
func TestPresets(t *testing.T) {
	if cfg := OrderSubmitConfig(); cfg.MaxRetries != 5 || cfg.InitialDelay != 500*time.Millisecond {
		t.Errorf("OrderSubmitConfig() = %+v", cfg)
	}
	if cfg := FillPriceConfig(); cfg.MaxRetries != 5 || cfg.InitialDelay != 2200*time.Millisecond {
		t.Errorf("FillPriceConfig() = %+v", cfg)
	}
}

// TestIsRetryable проверяет классификацию ошибок
func TestIsRetryable(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain error", err: base, want: true},
		{name: "permanent", err: Permanent(base), want: false},
		{name: "temporary", err: Temporary(base), want: true},
		{name: "wrapped permanent", err: errors.Join(errors.New("ctx"), Permanent(base)), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestWrapperErrors_Unwrap проверяет прозрачность обёрток для errors.Is
func TestWrapperErrors_Unwrap(t *testing.T) {
	base := errors.New("boom")

	if !errors.Is(Permanent(base), base) {
		t.Error("errors.Is(Permanent(base), base) = false")
	}
	if !errors.Is(Temporary(base), base) {
		t.Error("errors.Is(Temporary(base), base) = false")
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) != nil")
	}
	if Temporary(nil) != nil {
		t.Error("Temporary(nil) != nil")
	}
}

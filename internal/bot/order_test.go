package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"basketarb/internal/models"
	"basketarb/internal/venue"
	"basketarb/pkg/retry"
	"basketarb/pkg/utils"
)

// fakeVenue - брокер для тестов
type fakeVenue struct {
	mu sync.Mutex

	nextOrderNo int
	submitted   []fakeOrder

	failSubmit   map[string]bool // code: отправка всегда падает
	neverConfirm map[string]bool // code: заявка вечно в неисполненных
	pendingPolls map[string]int  // code: заявка висит в неисполненных первые N опросов
	noPrice      map[string]bool // code: цена исполнения не появляется

	prices   map[string]float64 // code: цена исполнения
	holdings []venue.Holding
}

type fakeOrder struct {
	orderNo  string
	code     string
	side     string
	quantity int
}

func newFakeVenue() *fakeVenue {
	return &fakeVenue{
		failSubmit:   make(map[string]bool),
		neverConfirm: make(map[string]bool),
		pendingPolls: make(map[string]int),
		noPrice:      make(map[string]bool),
		prices:       make(map[string]float64),
	}
}

func (f *fakeVenue) SubmitMarketOrder(ctx context.Context, code, side string, quantity int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failSubmit[code] {
		return "", errors.New("submit rejected")
	}

	f.nextOrderNo++
	orderNo := fmt.Sprintf("ON-%04d", f.nextOrderNo)
	f.submitted = append(f.submitted, fakeOrder{
		orderNo:  orderNo,
		code:     code,
		side:     side,
		quantity: quantity,
	})
	return orderNo, nil
}

func (f *fakeVenue) IsOrderOutstanding(ctx context.Context, orderNo string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.findOrder(orderNo)
	if !ok {
		return false, nil
	}
	if f.pendingPolls[order.code] > 0 {
		f.pendingPolls[order.code]--
		return true, nil
	}
	return f.neverConfirm[order.code], nil
}

func (f *fakeVenue) GetFillPrice(ctx context.Context, orderNo string) (float64, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.findOrder(orderNo)
	if !ok || f.noPrice[order.code] {
		return 0, 0, venue.ErrFillNotFound
	}
	price, ok := f.prices[order.code]
	if !ok {
		return 0, 0, venue.ErrFillNotFound
	}
	return price, order.quantity, nil
}

func (f *fakeVenue) GetHoldings(ctx context.Context) ([]venue.Holding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]venue.Holding, len(f.holdings))
	copy(out, f.holdings)
	return out, nil
}

func (f *fakeVenue) findOrder(orderNo string) (fakeOrder, bool) {
	for _, o := range f.submitted {
		if o.orderNo == orderNo {
			return o, true
		}
	}
	return fakeOrder{}, false
}

func (f *fakeVenue) submittedCodes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	codes := make([]string, len(f.submitted))
	for i, o := range f.submitted {
		codes[i] = o.code
	}
	return codes
}

// testExecutorConfig - быстрые интервалы, те же лимиты попыток
func testExecutorConfig() ExecutorConfig {
	fast := retry.Config{MaxRetries: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1.0}
	return ExecutorConfig{
		SubmitRetry:                fast,
		PriceRetry:                 fast,
		ConfirmInterval:            time.Millisecond,
		ConfirmAttempts:            3,
		LiquidationConfirmAttempts: 6,
	}
}

func newTestExecutor(f *fakeVenue) *OrderExecutor {
	return NewOrderExecutor(f, testExecutorConfig(), utils.NopLogger())
}

// TestExecutor_AllLegsFilled проверяет счастливый путь для корзины
func TestExecutor_AllLegsFilled(t *testing.T) {
	f := newFakeVenue()
	f.prices["005930"] = 71000
	f.prices["028260"] = 120500

	exec := newTestExecutor(f)

	specs := []OrderSpec{
		{Code: "005930", Name: "Samsung Electronics", Side: venue.SideBuy, Quantity: 10},
		{Code: "028260", Name: "Samsung C&T", Side: venue.SideBuy, Quantity: 2},
	}
	report := exec.Execute(context.Background(), specs)

	if !report.AllFilled() {
		t.Fatalf("AllFilled() = false, legs: %+v", report.Legs)
	}
	for _, leg := range report.Legs {
		if leg.Status != models.LegFilledPriced {
			t.Errorf("leg %s status = %s, want FILLED_PRICED", leg.Code, leg.Status)
		}
	}

	amount, unresolved := report.Amount()
	want := 71000*10.0 + 120500*2.0
	if amount != want || unresolved {
		t.Errorf("Amount() = (%v, %v), want (%v, false)", amount, unresolved, want)
	}
}

// TestExecutor_SubmitAllBeforeConfirm проверяет, что все заявки
// отправлены до начала подтверждений
func TestExecutor_SubmitAllBeforeConfirm(t *testing.T) {
	f := newFakeVenue()
	f.prices["A00001"] = 100
	f.prices["A00002"] = 200
	f.prices["A00003"] = 300

	exec := newTestExecutor(f)

	specs := []OrderSpec{
		{Code: "A00001", Side: venue.SideBuy, Quantity: 1},
		{Code: "A00002", Side: venue.SideBuy, Quantity: 1},
		{Code: "A00003", Side: venue.SideBuy, Quantity: 1},
	}

	var firstConfirmAt time.Time
	exec.SetOnFirstConfirm(func(at time.Time) { firstConfirmAt = at })

	report := exec.Execute(context.Background(), specs)

	if got := f.submittedCodes(); len(got) != 3 {
		t.Fatalf("submitted %d orders, want 3", len(got))
	}
	if firstConfirmAt.IsZero() {
		t.Error("onFirstConfirm was not fired")
	}
	if !report.AllFilled() {
		t.Errorf("AllFilled() = false")
	}

	// Все заявки получили номер до первого подтверждения: порядок
	// фаз гарантирует, что заявки стояли в стакане одновременно
	for _, leg := range report.Legs {
		if leg.OrderNo == "" {
			t.Errorf("leg %s has no order number", leg.Code)
		}
	}
}

// TestExecutor_SubmitFailure проверяет исключение ноги после
// исчерпания попыток отправки
func TestExecutor_SubmitFailure(t *testing.T) {
	f := newFakeVenue()
	f.prices["A00001"] = 100
	f.failSubmit["B00002"] = true

	exec := newTestExecutor(f)

	specs := []OrderSpec{
		{Code: "A00001", Side: venue.SideBuy, Quantity: 1},
		{Code: "B00002", Side: venue.SideBuy, Quantity: 1},
	}
	report := exec.Execute(context.Background(), specs)

	if report.Legs[0].Status != models.LegFilledPriced {
		t.Errorf("healthy leg status = %s, want FILLED_PRICED", report.Legs[0].Status)
	}
	if report.Legs[1].Status != models.LegFailedSubmit {
		t.Errorf("failing leg status = %s, want FAILED_SUBMIT", report.Legs[1].Status)
	}
	if report.FilledCount() != 1 || report.FailedCount() != 1 {
		t.Errorf("FilledCount/FailedCount = %d/%d, want 1/1",
			report.FilledCount(), report.FailedCount())
	}

	// Отправка failing ноги делалась ровно лимит раз
	// (в submitted попадают только успешные, проверяем по счётчику)
	if len(f.submittedCodes()) != 1 {
		t.Errorf("submitted orders = %d, want 1", len(f.submittedCodes()))
	}
}

// TestExecutor_ConfirmTimeout проверяет исход FAILED_CONFIRM:
// неизвестный результат, нога не считается исполненной
func TestExecutor_ConfirmTimeout(t *testing.T) {
	f := newFakeVenue()
	f.neverConfirm["A00001"] = true

	exec := newTestExecutor(f)

	var confirmFired bool
	exec.SetOnFirstConfirm(func(time.Time) { confirmFired = true })

	report := exec.Execute(context.Background(), []OrderSpec{
		{Code: "A00001", Side: venue.SideBuy, Quantity: 1},
	})

	if report.Legs[0].Status != models.LegFailedConfirm {
		t.Errorf("leg status = %s, want FAILED_CONFIRM", report.Legs[0].Status)
	}
	if report.FilledCount() != 0 {
		t.Errorf("FilledCount() = %d, want 0", report.FilledCount())
	}
	if confirmFired {
		t.Error("onFirstConfirm fired for unconfirmed leg")
	}
}

// TestExecutor_PriceTimeout проверяет исход FAILED_PRICE:
// нога исполнена, сумма неизвестна и входит нулём
func TestExecutor_PriceTimeout(t *testing.T) {
	f := newFakeVenue()
	f.prices["A00001"] = 100
	f.noPrice["B00002"] = true

	exec := newTestExecutor(f)

	var confirmFired bool
	exec.SetOnFirstConfirm(func(time.Time) { confirmFired = true })

	report := exec.Execute(context.Background(), []OrderSpec{
		{Code: "A00001", Side: venue.SideBuy, Quantity: 2},
		{Code: "B00002", Side: venue.SideBuy, Quantity: 3},
	})

	if report.Legs[1].Status != models.LegFailedPrice {
		t.Errorf("unpriced leg status = %s, want FAILED_PRICE", report.Legs[1].Status)
	}
	if !confirmFired {
		t.Error("onFirstConfirm must fire: fills are confirmed")
	}

	// Обе ноги исполнены, но сумма содержит только оценённую
	if report.FilledCount() != 2 {
		t.Errorf("FilledCount() = %d, want 2", report.FilledCount())
	}
	amount, unresolved := report.Amount()
	if amount != 200 {
		t.Errorf("Amount() = %v, want 200 (unpriced leg contributes 0)", amount)
	}
	if !unresolved {
		t.Error("Amount() unresolved = false, want true")
	}

	// В ногах позиции неоценённая нога помечена
	legs := report.PositionLegs()
	if len(legs) != 2 {
		t.Fatalf("PositionLegs() = %d legs, want 2", len(legs))
	}
	if legs[1].Unresolved != true || legs[0].Unresolved != false {
		t.Errorf("PositionLegs() unresolved flags = %v/%v, want false/true",
			legs[0].Unresolved, legs[1].Unresolved)
	}
}

// TestExecutor_LiquidationUsesExtendedLimit проверяет, что режим
// распродажи опрашивает подтверждение дольше обычного
func TestExecutor_LiquidationUsesExtendedLimit(t *testing.T) {
	f := newFakeVenue()
	f.prices["A00001"] = 100

	cfg := testExecutorConfig()
	exec := NewOrderExecutor(f, cfg, utils.NopLogger())

	report := exec.ExecuteLiquidation(context.Background(), []OrderSpec{
		{Code: "A00001", Side: venue.SideSell, Quantity: 1},
	})
	if !report.AllFilled() {
		t.Errorf("liquidation AllFilled() = false")
	}
}

// TestExecutor_ContextCancellation проверяет завершение по контексту
func TestExecutor_ContextCancellation(t *testing.T) {
	f := newFakeVenue()
	f.neverConfirm["A00001"] = true

	cfg := testExecutorConfig()
	cfg.ConfirmInterval = 50 * time.Millisecond
	cfg.ConfirmAttempts = 1000
	exec := NewOrderExecutor(f, cfg, utils.NopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	report := exec.Execute(ctx, []OrderSpec{
		{Code: "A00001", Side: venue.SideBuy, Quantity: 1},
	})
	if report.Legs[0].Status != models.LegFailedConfirm {
		t.Errorf("leg status = %s, want FAILED_CONFIRM on cancellation", report.Legs[0].Status)
	}
}

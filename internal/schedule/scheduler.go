// Package schedule управляет суточным циклом торговой сессии.
package schedule

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"basketarb/pkg/utils"
)

// Trader - управляемый торговый цикл
type Trader interface {
	// Run крутит цикл до отмены контекста
	Run(ctx context.Context)
	// LiquidateAll продает все позиции и останавливает торговлю
	LiquidateAll(ctx context.Context) error
	// Resume снимает остановку перед новой сессией
	Resume()
}

// Config содержит расписание торговой сессии
type Config struct {
	OpenAt   string // время начала торговли, "HH:MM"
	CutoffAt string // время принудительной распродажи, "HH:MM"
	Timezone string // IANA-зона биржи, по умолчанию Asia/Seoul
}

// DefaultConfig возвращает расписание KRX
func DefaultConfig() Config {
	return Config{
		OpenAt:   "09:00",
		CutoffAt: "15:15",
		Timezone: "Asia/Seoul",
	}
}

// Scheduler гоняет торговый цикл по расписанию биржи
//
// Суточный цикл: дождаться открытия, торговать до времени распродажи,
// распродать остатки, ждать следующего торгового дня. Выходные
// пропускаются, праздники биржи не учитываются: в праздник поток
// котировок пуст и цикл просто бездействует до распродажи
type Scheduler struct {
	trader Trader
	log    *zap.SugaredLogger

	loc                      *time.Location
	openHour, openMinute     int
	cutoffHour, cutoffMinute int

	now func() time.Time
}

// NewScheduler создает планировщик по расписанию cfg
func NewScheduler(cfg Config, trader Trader, logger *zap.SugaredLogger) (*Scheduler, error) {
	openHour, openMinute, err := utils.ParseClock(cfg.OpenAt)
	if err != nil {
		return nil, fmt.Errorf("invalid open time: %w", err)
	}
	cutoffHour, cutoffMinute, err := utils.ParseClock(cfg.CutoffAt)
	if err != nil {
		return nil, fmt.Errorf("invalid cutoff time: %w", err)
	}
	if cutoffHour*60+cutoffMinute <= openHour*60+openMinute {
		return nil, fmt.Errorf("cutoff %s must be after open %s", cfg.CutoffAt, cfg.OpenAt)
	}

	tz := cfg.Timezone
	if tz == "" {
		tz = "Asia/Seoul"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}

	return &Scheduler{
		trader:       trader,
		log:          logger,
		loc:          loc,
		openHour:     openHour,
		openMinute:   openMinute,
		cutoffHour:   cutoffHour,
		cutoffMinute: cutoffMinute,
		now:          time.Now,
	}, nil
}

// NextOpen возвращает ближайшее открытие сессии после t
func (s *Scheduler) NextOpen(t time.Time) time.Time {
	t = t.In(s.loc)
	open := utils.ClockAt(t, s.openHour, s.openMinute)
	if !t.Before(open) {
		open = utils.ClockAt(t.AddDate(0, 0, 1), s.openHour, s.openMinute)
	}
	for utils.IsWeekend(open) {
		open = utils.NextBusinessDay(open)
	}
	return open
}

// CutoffFor возвращает время распродажи торгового дня, которому
// принадлежит момент открытия open
func (s *Scheduler) CutoffFor(open time.Time) time.Time {
	return utils.ClockAt(open.In(s.loc), s.cutoffHour, s.cutoffMinute)
}

// InSession возвращает true, если t внутри торгового окна
func (s *Scheduler) InSession(t time.Time) bool {
	t = t.In(s.loc)
	if utils.IsWeekend(t) {
		return false
	}
	open := utils.ClockAt(t, s.openHour, s.openMinute)
	cutoff := utils.ClockAt(t, s.cutoffHour, s.cutoffMinute)
	return !t.Before(open) && t.Before(cutoff)
}

// Run гоняет суточный цикл до отмены контекста
func (s *Scheduler) Run(ctx context.Context) {
	for {
		now := s.now().In(s.loc)

		var open time.Time
		if s.InSession(now) {
			open = now
		} else {
			open = s.NextOpen(now)
			s.log.Infow("waiting for market open",
				"open_at", open.Format("2006-01-02 15:04"))
			if !sleepUntil(ctx, open, s.now) {
				return
			}
		}

		cutoff := s.CutoffFor(open)
		s.log.Infow("trading session started",
			"cutoff_at", cutoff.Format("15:04"))

		s.trader.Resume()
		s.runSession(ctx, cutoff)

		if ctx.Err() != nil {
			return
		}

		// Конец сессии: распродажа по общему контексту, не сессионному
		if err := s.trader.LiquidateAll(ctx); err != nil {
			s.log.Errorw("end-of-day liquidation failed", "error", err)
		}
		s.log.Infow("trading session closed")
	}
}

// runSession крутит торговый цикл до времени распродажи
func (s *Scheduler) runSession(ctx context.Context, cutoff time.Time) {
	sessionCtx, cancel := context.WithDeadline(ctx, cutoff)
	defer cancel()

	s.trader.Run(sessionCtx)
}

// sleepUntil ждет момента t, false при отмене контекста
func sleepUntil(ctx context.Context, t time.Time, now func() time.Time) bool {
	d := t.Sub(now())
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

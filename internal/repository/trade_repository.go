package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"basketarb/internal/models"
)

// Ошибки репозитория журнала сделок
var (
	ErrTradeNotFound = errors.New("trade not found")
)

// TradeRepository - работа с таблицей trades
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// EnsureSchema создает таблицу журнала при необходимости
func (r *TradeRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS trades (
			id SERIAL PRIMARY KEY,
			kind VARCHAR(10) NOT NULL,
			reason VARCHAR(20) NOT NULL,
			entry_time TIMESTAMP,
			exit_time TIMESTAMP NOT NULL,
			entry_amount DECIMAL(20, 2) NOT NULL DEFAULT 0,
			exit_amount DECIMAL(20, 2) NOT NULL DEFAULT 0,
			profit DECIMAL(20, 2) NOT NULL DEFAULT 0,
			return_percent DECIMAL(10, 4) NOT NULL DEFAULT 0,
			amount_unresolved BOOLEAN NOT NULL DEFAULT false,
			legs_filled INT NOT NULL DEFAULT 0,
			legs_failed INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT NOW()
		)`

	_, err := r.db.ExecContext(ctx, query)
	return err
}

// Record записывает завершенную сделку
func (r *TradeRepository) Record(ctx context.Context, trade *models.TradeRecord) error {
	query := `
		INSERT INTO trades (
			kind, reason, entry_time, exit_time,
			entry_amount, exit_amount, profit, return_percent,
			amount_unresolved, legs_filled, legs_failed, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	trade.CreatedAt = time.Now()

	return r.db.QueryRowContext(
		ctx,
		query,
		trade.Kind,
		trade.Reason,
		trade.EntryTime,
		trade.ExitTime,
		trade.EntryAmount,
		trade.ExitAmount,
		trade.Profit,
		trade.ReturnPercent,
		trade.AmountUnresolved,
		trade.LegsFilled,
		trade.LegsFailed,
		trade.CreatedAt,
	).Scan(&trade.ID)
}

// GetByID возвращает сделку по ID
func (r *TradeRepository) GetByID(ctx context.Context, id int) (*models.TradeRecord, error) {
	query := `
		SELECT id, kind, reason, entry_time, exit_time,
		       entry_amount, exit_amount, profit, return_percent,
		       amount_unresolved, legs_filled, legs_failed, created_at
		FROM trades
		WHERE id = $1`

	trade := &models.TradeRecord{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&trade.ID,
		&trade.Kind,
		&trade.Reason,
		&trade.EntryTime,
		&trade.ExitTime,
		&trade.EntryAmount,
		&trade.ExitAmount,
		&trade.Profit,
		&trade.ReturnPercent,
		&trade.AmountUnresolved,
		&trade.LegsFilled,
		&trade.LegsFailed,
		&trade.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}

	return trade, nil
}

// GetRecent возвращает последние сделки, свежие первыми
func (r *TradeRepository) GetRecent(ctx context.Context, limit int) ([]*models.TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, kind, reason, entry_time, exit_time,
		       entry_amount, exit_amount, profit, return_percent,
		       amount_unresolved, legs_filled, legs_failed, created_at
		FROM trades
		ORDER BY exit_time DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*models.TradeRecord
	for rows.Next() {
		trade := &models.TradeRecord{}
		err := rows.Scan(
			&trade.ID,
			&trade.Kind,
			&trade.Reason,
			&trade.EntryTime,
			&trade.ExitTime,
			&trade.EntryAmount,
			&trade.ExitAmount,
			&trade.Profit,
			&trade.ReturnPercent,
			&trade.AmountUnresolved,
			&trade.LegsFilled,
			&trade.LegsFailed,
			&trade.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return trades, nil
}

// GetSummary возвращает сводную статистику по журналу
//
// Сделки с неполными суммами входят в счетчики, но их прибыль
// ориентировочная - это отражено уже в самих записях
func (r *TradeRepository) GetSummary(ctx context.Context) (*models.TradeSummary, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(profit), 0),
		       COUNT(*) FILTER (WHERE profit > 0)
		FROM trades`

	summary := &models.TradeSummary{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&summary.TotalTrades,
		&summary.TotalProfit,
		&summary.WinTrades,
	)
	if err != nil {
		return nil, err
	}

	if summary.TotalTrades > 0 {
		summary.WinRatePercent = float64(summary.WinTrades) / float64(summary.TotalTrades) * 100
	}

	return summary, nil
}

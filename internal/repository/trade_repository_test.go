package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"basketarb/internal/models"
)

// ============================================================
// TradeRepository Tests
// ============================================================

func TestNewTradeRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewTradeRepository(db)
	if repo == nil {
		t.Fatal("NewTradeRepository returned nil")
	}
	if repo.db != db {
		t.Error("db not set correctly")
	}
}

func TestTradeRepositoryEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS trades`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewTradeRepository(db)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Errorf("EnsureSchema() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTradeRepositoryRecord(t *testing.T) {
	tests := []struct {
		name        string
		trade       *models.TradeRecord
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name: "success",
			trade: &models.TradeRecord{
				Kind:          models.PositionBasket,
				Reason:        models.TradeReasonSignal,
				EntryTime:     time.Date(2025, 3, 14, 9, 31, 0, 0, time.UTC),
				ExitTime:      time.Date(2025, 3, 14, 11, 2, 0, 0, time.UTC),
				EntryAmount:   951000,
				ExitAmount:    963500,
				Profit:        12500,
				ReturnPercent: 1.31,
				LegsFilled:    15,
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO trades`).
					WithArgs(
						"BASKET", "signal",
						sqlmock.AnyArg(), sqlmock.AnyArg(),
						951000.0, 963500.0, 12500.0, 1.31,
						false, 15, 0, sqlmock.AnyArg(),
					).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
			},
		},
		{
			name: "unresolved liquidation",
			trade: &models.TradeRecord{
				Kind:             models.PositionHedge,
				Reason:           models.TradeReasonLiquidation,
				ExitTime:         time.Now(),
				AmountUnresolved: true,
				LegsFilled:       1,
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO trades`).
					WithArgs(
						"HEDGE", "liquidation",
						sqlmock.AnyArg(), sqlmock.AnyArg(),
						0.0, 0.0, 0.0, 0.0,
						true, 1, 0, sqlmock.AnyArg(),
					).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(8))
			},
		},
		{
			name: "database error",
			trade: &models.TradeRecord{
				Kind:     models.PositionBasket,
				Reason:   models.TradeReasonSignal,
				ExitTime: time.Now(),
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO trades`).
					WillReturnError(errors.New("connection refused"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewTradeRepository(db)
			err = repo.Record(context.Background(), tt.trade)

			if tt.expectError && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.expectError {
				if err != nil {
					t.Errorf("Record() error = %v", err)
				}
				if tt.trade.ID == 0 {
					t.Error("trade ID not set after insert")
				}
				if tt.trade.CreatedAt.IsZero() {
					t.Error("CreatedAt not set")
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func tradeColumns() []string {
	return []string{
		"id", "kind", "reason", "entry_time", "exit_time",
		"entry_amount", "exit_amount", "profit", "return_percent",
		"amount_unresolved", "legs_filled", "legs_failed", "created_at",
	}
}

func TestTradeRepositoryGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM trades WHERE id = \$1`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(tradeColumns()).
			AddRow(7, "BASKET", "signal", now.Add(-time.Hour), now,
				951000.0, 963500.0, 12500.0, 1.31, false, 15, 0, now))

	repo := NewTradeRepository(db)
	trade, err := repo.GetByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if trade.ID != 7 || trade.Kind != "BASKET" || trade.Profit != 12500 {
		t.Errorf("unexpected trade: %+v", trade)
	}
}

func TestTradeRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM trades WHERE id = \$1`).
		WithArgs(404).
		WillReturnError(sql.ErrNoRows)

	repo := NewTradeRepository(db)
	_, err = repo.GetByID(context.Background(), 404)
	if !errors.Is(err, ErrTradeNotFound) {
		t.Errorf("GetByID() error = %v, want ErrTradeNotFound", err)
	}
}

func TestTradeRepositoryGetRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM trades ORDER BY exit_time DESC`).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(tradeColumns()).
			AddRow(9, "HEDGE", "signal", now.Add(-time.Hour), now,
				55000.0, 55400.0, 400.0, 0.73, false, 1, 0, now).
			AddRow(8, "BASKET", "liquidation", now.Add(-3*time.Hour), now.Add(-2*time.Hour),
				951000.0, 940000.0, -11000.0, -1.16, true, 14, 1, now))

	repo := NewTradeRepository(db)
	trades, err := repo.GetRecent(context.Background(), 2)
	if err != nil {
		t.Fatalf("GetRecent() error = %v", err)
	}

	if len(trades) != 2 {
		t.Fatalf("GetRecent() = %d trades, want 2", len(trades))
	}
	if trades[0].ID != 9 || trades[1].ID != 8 {
		t.Errorf("wrong order: %d, %d", trades[0].ID, trades[1].ID)
	}
	if !trades[1].AmountUnresolved {
		t.Error("unresolved flag lost on scan")
	}
}

func TestTradeRepositoryGetRecentDefaultLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM trades ORDER BY exit_time DESC`).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows(tradeColumns()))

	repo := NewTradeRepository(db)
	trades, err := repo.GetRecent(context.Background(), 0)
	if err != nil {
		t.Fatalf("GetRecent() error = %v", err)
	}
	if len(trades) != 0 {
		t.Errorf("GetRecent() = %d trades, want 0", len(trades))
	}
}

func TestTradeRepositoryGetSummary(t *testing.T) {
	tests := []struct {
		name        string
		total       int
		profit      float64
		wins        int
		wantWinRate float64
	}{
		{name: "mixed results", total: 10, profit: 4200.50, wins: 7, wantWinRate: 70},
		{name: "empty journal", total: 0, profit: 0, wins: 0, wantWinRate: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			mock.ExpectQuery(`SELECT COUNT`).
				WillReturnRows(sqlmock.NewRows([]string{"count", "sum", "wins"}).
					AddRow(tt.total, tt.profit, tt.wins))

			repo := NewTradeRepository(db)
			summary, err := repo.GetSummary(context.Background())
			if err != nil {
				t.Fatalf("GetSummary() error = %v", err)
			}

			if summary.TotalTrades != tt.total || summary.TotalProfit != tt.profit {
				t.Errorf("summary = %+v", summary)
			}
			if summary.WinRatePercent != tt.wantWinRate {
				t.Errorf("WinRatePercent = %v, want %v", summary.WinRatePercent, tt.wantWinRate)
			}
		})
	}
}

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"

	"github.com/iho/goconsolidation/internal/domain"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDate(s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

func beginTx(t *testing.T, mockPool pgxmock.PgxPoolIface) *Tx {
	t.Helper()
	tx, err := newTxManagerWithPool(mockPool).Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	return tx.(*Tx)
}

var balanceColumns = []string{"balance_date", "total_credits", "total_debits", "net_balance", "version", "last_updated", "created_at"}

func TestDailyBalanceRepositoryGetByDate(t *testing.T) {
	mockPool := newMockPool(t)
	date := mustDate(t, "2024-03-01")
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mockPool.ExpectQuery("FROM daily_balances").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(balanceColumns).
			AddRow(date, "150.00", "40.50", "109.50", int64(3), now, now))

	repo := NewDailyBalanceRepository(mockPool)
	got, err := repo.GetByDate(context.Background(), date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !got.Date.Equal(date) {
		t.Fatalf("expected date %s, got %s", date, got.Date)
	}
	if !got.TotalCredits.Equal(decimal.RequireFromString("150")) {
		t.Fatalf("expected credits 150, got %s", got.TotalCredits)
	}
	if !got.NetBalance.Equal(decimal.RequireFromString("109.5")) {
		t.Fatalf("expected net 109.5, got %s", got.NetBalance)
	}
	if got.Version != 3 {
		t.Fatalf("expected version 3, got %d", got.Version)
	}

	assertExpectations(t, mockPool)
}

func TestDailyBalanceRepositoryGetByDateNotFound(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectQuery("FROM daily_balances").
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	repo := NewDailyBalanceRepository(mockPool)
	_, err := repo.GetByDate(context.Background(), mustDate(t, "2024-03-01"))
	if !errors.Is(err, domain.ErrDailyBalanceNotFound) {
		t.Fatalf("expected ErrDailyBalanceNotFound, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestDailyBalanceRepositoryUpsertInsertsNewDay(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBeginTx(readCommitted)
	mockPool.ExpectExec("INSERT INTO daily_balances").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx := beginTx(t, mockPool)
	repo := NewDailyBalanceRepository(mockPool)

	balance := domain.NewDailyBalance(mustDate(t, "2024-03-01"), time.Now())
	if err := balance.Apply(domain.EntryKindCredit, decimal.NewFromInt(100), time.Now()); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if err := repo.Upsert(context.Background(), tx, balance); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance.Version != 1 {
		t.Fatalf("expected version 1 after insert, got %d", balance.Version)
	}

	assertExpectations(t, mockPool)
}

func TestDailyBalanceRepositoryUpsertInsertRace(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBeginTx(readCommitted)
	mockPool.ExpectExec("INSERT INTO daily_balances").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	tx := beginTx(t, mockPool)
	repo := NewDailyBalanceRepository(mockPool)

	balance := domain.NewDailyBalance(mustDate(t, "2024-03-01"), time.Now())
	err := repo.Upsert(context.Background(), tx, balance)
	if !errors.Is(err, domain.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}
	if balance.Version != 0 {
		t.Fatalf("version must not change on conflict, got %d", balance.Version)
	}

	assertExpectations(t, mockPool)
}

func TestDailyBalanceRepositoryUpsertVersionGuard(t *testing.T) {
	tests := []struct {
		name        string
		affected    int64
		wantErr     error
		wantVersion int64
	}{
		{name: "version matches", affected: 1, wantVersion: 5},
		{name: "stale version", affected: 0, wantErr: domain.ErrConcurrencyConflict, wantVersion: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPool := newMockPool(t)
			mockPool.ExpectBeginTx(readCommitted)
			mockPool.ExpectExec("UPDATE daily_balances").
				WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), int64(4)).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			tx := beginTx(t, mockPool)
			repo := NewDailyBalanceRepository(mockPool)

			balance := domain.NewDailyBalance(mustDate(t, "2024-03-01"), time.Now())
			balance.Version = 4

			err := repo.Upsert(context.Background(), tx, balance)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if balance.Version != tt.wantVersion {
				t.Fatalf("expected version %d, got %d", tt.wantVersion, balance.Version)
			}

			assertExpectations(t, mockPool)
		})
	}
}

func TestDailyBalanceRepositoryUpsertRejectsBrokenInvariant(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBeginTx(readCommitted)

	tx := beginTx(t, mockPool)
	repo := NewDailyBalanceRepository(mockPool)

	balance := domain.NewDailyBalance(mustDate(t, "2024-03-01"), time.Now())
	balance.TotalCredits = decimal.NewFromInt(10)

	err := repo.Upsert(context.Background(), tx, balance)
	if !errors.Is(err, domain.ErrBalanceInvariant) {
		t.Fatalf("expected ErrBalanceInvariant, got %v", err)
	}

	assertExpectations(t, mockPool)
}

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iho/goconsolidation/internal/domain"
	"github.com/iho/goconsolidation/internal/infrastructure/postgres/generated"
	"github.com/iho/goconsolidation/internal/usecase"
)

// DailyBalanceRepository implements usecase.DailyBalanceRepository.
type DailyBalanceRepository struct {
	queries *generated.Queries
}

// NewDailyBalanceRepository creates a new DailyBalanceRepository.
func NewDailyBalanceRepository(db generated.DBTX) *DailyBalanceRepository {
	return &DailyBalanceRepository{
		queries: generated.New(db),
	}
}

// GetByDate retrieves the balance for a date.
func (r *DailyBalanceRepository) GetByDate(ctx context.Context, date time.Time) (*domain.DailyBalance, error) {
	return getDailyBalance(ctx, r.queries, date)
}

// GetByDateTx retrieves the balance for a date inside a transaction.
func (r *DailyBalanceRepository) GetByDateTx(ctx context.Context, tx usecase.Transaction, date time.Time) (*domain.DailyBalance, error) {
	pgxTx, err := unwrapTx(tx)
	if err != nil {
		return nil, err
	}
	return getDailyBalance(ctx, generated.New(pgxTx), date)
}

// GetByDateRange retrieves balances in [start, end] ordered by date.
func (r *DailyBalanceRepository) GetByDateRange(ctx context.Context, start, end time.Time) ([]*domain.DailyBalance, error) {
	rows, err := r.queries.ListDailyBalancesInRange(ctx, generated.ListDailyBalancesInRangeParams{
		StartDate: dateToPgDate(start),
		EndDate:   dateToPgDate(end),
	})
	if err != nil {
		return nil, err
	}

	balances := make([]*domain.DailyBalance, 0, len(rows))
	for _, row := range rows {
		balances = append(balances, rowToDailyBalance(row))
	}

	return balances, nil
}

// Upsert inserts a new balance or updates an existing one guarded by its version.
func (r *DailyBalanceRepository) Upsert(ctx context.Context, tx usecase.Transaction, balance *domain.DailyBalance) error {
	if err := balance.CheckInvariant(); err != nil {
		return err
	}

	pgxTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	queries := generated.New(pgxTx)

	var affected int64
	if balance.IsNew() {
		affected, err = queries.InsertDailyBalance(ctx, generated.InsertDailyBalanceParams{
			BalanceDate:  dateToPgDate(balance.Date),
			TotalCredits: decimalToNumeric(balance.TotalCredits),
			TotalDebits:  decimalToNumeric(balance.TotalDebits),
			LastUpdated:  timeToPgTimestamptz(balance.LastUpdated),
			CreatedAt:    timeToPgTimestamptz(balance.CreatedAt),
		})
	} else {
		affected, err = queries.UpdateDailyBalance(ctx, generated.UpdateDailyBalanceParams{
			BalanceDate:     dateToPgDate(balance.Date),
			TotalCredits:    decimalToNumeric(balance.TotalCredits),
			TotalDebits:     decimalToNumeric(balance.TotalDebits),
			LastUpdated:     timeToPgTimestamptz(balance.LastUpdated),
			ExpectedVersion: balance.Version,
		})
	}
	if err != nil {
		return err
	}

	if affected == 0 {
		return domain.ErrConcurrencyConflict
	}

	balance.Version++
	return nil
}

func getDailyBalance(ctx context.Context, queries *generated.Queries, date time.Time) (*domain.DailyBalance, error) {
	row, err := queries.GetDailyBalance(ctx, dateToPgDate(date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDailyBalanceNotFound
		}
		return nil, err
	}

	return rowToDailyBalance(row), nil
}

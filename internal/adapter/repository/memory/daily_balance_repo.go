package memory

import (
	"context"
	"time"

	"github.com/iho/goconsolidation/internal/domain"
	"github.com/iho/goconsolidation/internal/usecase"
)

// DailyBalanceRepository implements usecase.DailyBalanceRepository.
type DailyBalanceRepository struct {
	store *Store
}

// NewDailyBalanceRepository creates a new DailyBalanceRepository.
func NewDailyBalanceRepository(store *Store) *DailyBalanceRepository {
	return &DailyBalanceRepository{store: store}
}

// GetByDate retrieves the committed balance for date.
func (r *DailyBalanceRepository) GetByDate(ctx context.Context, date time.Time) (*domain.DailyBalance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b, ok := r.store.get(domain.NormalizeDate(date))
	if !ok {
		return nil, domain.ErrDailyBalanceNotFound
	}
	return b, nil
}

// GetByDateTx retrieves the balance for date as seen by tx.
func (r *DailyBalanceRepository) GetByDateTx(ctx context.Context, tx usecase.Transaction, date time.Time) (*domain.DailyBalance, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	date = domain.NormalizeDate(date)

	t.mu.Lock()
	if err := t.active(); err != nil {
		t.mu.Unlock()
		return nil, err
	}
	if w, ok := t.writes[date]; ok {
		t.mu.Unlock()
		return w.balance.Clone(), nil
	}
	t.mu.Unlock()

	return r.GetByDate(ctx, date)
}

// GetByDateRange retrieves balances in [start, end] ordered by date.
func (r *DailyBalanceRepository) GetByDateRange(ctx context.Context, start, end time.Time) ([]*domain.DailyBalance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.store.rangeOf(domain.NormalizeDate(start), domain.NormalizeDate(end)), nil
}

// Upsert stages balance in tx after checking its version against the committed one.
func (r *DailyBalanceRepository) Upsert(ctx context.Context, tx usecase.Transaction, balance *domain.DailyBalance) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := balance.CheckInvariant(); err != nil {
		return err
	}

	date := domain.NormalizeDate(balance.Date)

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.active(); err != nil {
		return err
	}

	expected := balance.Version
	if w, ok := t.writes[date]; ok {
		// A second write in the same tx builds on the first one.
		if w.balance.Version != expected {
			return domain.ErrConcurrencyConflict
		}
		expected = w.expected
	} else {
		r.store.mu.RLock()
		current := r.store.version(date)
		r.store.mu.RUnlock()
		if current != expected {
			return domain.ErrConcurrencyConflict
		}
	}

	staged := balance.Clone()
	staged.Date = date
	staged.Version = balance.Version + 1
	t.writes[date] = stagedBalance{balance: staged, expected: expected}
	balance.Version = staged.Version

	return nil
}

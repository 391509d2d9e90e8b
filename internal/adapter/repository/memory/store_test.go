package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/goconsolidation/internal/domain"
)

var (
	day1 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	day3 = time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	now  = time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
)

func balanceWith(t *testing.T, date time.Time, credits, debits int64) *domain.DailyBalance {
	t.Helper()
	b := domain.NewDailyBalance(date, now)
	if credits > 0 {
		require.NoError(t, b.Apply(domain.EntryKindCredit, decimal.NewFromInt(credits), now))
	}
	if debits > 0 {
		require.NoError(t, b.Apply(domain.EntryKindDebit, decimal.NewFromInt(debits), now))
	}
	return b
}

func TestUpsertInsertsAndCommits(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewDailyBalanceRepository(store)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	b := balanceWith(t, day1, 100, 0)
	require.NoError(t, repo.Upsert(ctx, tx, b))
	assert.Equal(t, int64(1), b.Version)

	_, err = repo.GetByDate(ctx, day1)
	assert.ErrorIs(t, err, domain.ErrDailyBalanceNotFound, "uncommitted write must not be visible")

	staged, err := repo.GetByDateTx(ctx, tx, day1)
	require.NoError(t, err)
	assert.True(t, staged.TotalCredits.Equal(decimal.NewFromInt(100)))

	require.NoError(t, tx.Commit(ctx))

	got, err := repo.GetByDate(ctx, day1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.True(t, got.NetBalance.Equal(decimal.NewFromInt(100)))
}

func TestRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewDailyBalanceRepository(store)
	processed := NewProcessedEventRepository(store)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, tx, balanceWith(t, day1, 50, 0)))
	fresh, err := processed.MarkProcessed(ctx, tx, domain.EventMeta{EventID: "evt-1"}, now)
	require.NoError(t, err)
	require.True(t, fresh)
	require.NoError(t, tx.Rollback(ctx))

	_, err = repo.GetByDate(ctx, day1)
	assert.ErrorIs(t, err, domain.ErrDailyBalanceNotFound)

	seen, err := processed.IsProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	assert.ErrorIs(t, tx.Commit(ctx), ErrTxDone)
}

func TestUpsertStaleVersionConflicts(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewDailyBalanceRepository(store)
	store.Seed(balanceWith(t, day1, 100, 0))

	// Two writers read the same version.
	tx1, _ := store.Begin(ctx)
	tx2, _ := store.Begin(ctx)

	b1, err := repo.GetByDateTx(ctx, tx1, day1)
	require.NoError(t, err)
	b2, err := repo.GetByDateTx(ctx, tx2, day1)
	require.NoError(t, err)

	require.NoError(t, b1.Apply(domain.EntryKindCredit, decimal.NewFromInt(10), now))
	require.NoError(t, b2.Apply(domain.EntryKindDebit, decimal.NewFromInt(5), now))

	stale := b2.Clone()

	require.NoError(t, repo.Upsert(ctx, tx1, b1))
	require.NoError(t, repo.Upsert(ctx, tx2, b2))

	require.NoError(t, tx1.Commit(ctx))
	assert.ErrorIs(t, tx2.Commit(ctx), domain.ErrConcurrencyConflict)

	got, err := repo.GetByDate(ctx, day1)
	require.NoError(t, err)
	assert.True(t, got.TotalCredits.Equal(decimal.NewFromInt(110)))
	assert.True(t, got.TotalDebits.IsZero())
	assert.Equal(t, int64(2), got.Version)

	// A write built on the stale version is rejected before commit.
	tx3, _ := store.Begin(ctx)
	assert.ErrorIs(t, repo.Upsert(ctx, tx3, stale), domain.ErrConcurrencyConflict)
}

func TestUpsertRejectsConcurrentInsert(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewDailyBalanceRepository(store)

	tx1, _ := store.Begin(ctx)
	tx2, _ := store.Begin(ctx)

	require.NoError(t, repo.Upsert(ctx, tx1, balanceWith(t, day1, 10, 0)))
	require.NoError(t, repo.Upsert(ctx, tx2, balanceWith(t, day1, 20, 0)))

	require.NoError(t, tx1.Commit(ctx))
	assert.ErrorIs(t, tx2.Commit(ctx), domain.ErrConcurrencyConflict)
}

func TestUpsertTwiceInOneTransaction(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewDailyBalanceRepository(store)

	tx, _ := store.Begin(ctx)
	b := balanceWith(t, day1, 10, 0)
	require.NoError(t, repo.Upsert(ctx, tx, b))
	require.NoError(t, b.Apply(domain.EntryKindCredit, decimal.NewFromInt(5), now))
	require.NoError(t, repo.Upsert(ctx, tx, b))
	require.NoError(t, tx.Commit(ctx))

	got, err := repo.GetByDate(ctx, day1)
	require.NoError(t, err)
	assert.True(t, got.TotalCredits.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, int64(2), got.Version)
}

func TestUpsertChecksInvariant(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewDailyBalanceRepository(store)

	tx, _ := store.Begin(ctx)
	b := domain.NewDailyBalance(day1, now)
	b.TotalDebits = decimal.NewFromInt(3)

	assert.ErrorIs(t, repo.Upsert(ctx, tx, b), domain.ErrBalanceInvariant)
}

func TestGetByDateRangeIsOrderedAndInclusive(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewDailyBalanceRepository(store)
	store.Seed(
		balanceWith(t, day3, 3, 0),
		balanceWith(t, day1, 1, 0),
		balanceWith(t, day2, 2, 0),
		balanceWith(t, day3.AddDate(0, 0, 1), 4, 0),
	)

	got, err := repo.GetByDateRange(ctx, day1, day3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].Date.Equal(day1))
	assert.True(t, got[1].Date.Equal(day2))
	assert.True(t, got[2].Date.Equal(day3))

	empty, err := repo.GetByDateRange(ctx, day3.AddDate(0, 1, 0), day3.AddDate(0, 2, 0))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestReturnedBalancesAreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewDailyBalanceRepository(store)
	store.Seed(balanceWith(t, day1, 10, 0))

	got, err := repo.GetByDate(ctx, day1)
	require.NoError(t, err)
	got.TotalCredits = decimal.NewFromInt(999)

	again, err := repo.GetByDate(ctx, day1)
	require.NoError(t, err)
	assert.True(t, again.TotalCredits.Equal(decimal.NewFromInt(10)))
}

func TestMarkProcessedDeduplicates(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	processed := NewProcessedEventRepository(store)
	meta := domain.EventMeta{EventID: "evt-1", Type: domain.EventTypeEntryRegistered}

	tx1, _ := store.Begin(ctx)
	fresh, err := processed.MarkProcessed(ctx, tx1, meta, now)
	require.NoError(t, err)
	assert.True(t, fresh)

	again, err := processed.MarkProcessed(ctx, tx1, meta, now)
	require.NoError(t, err)
	assert.False(t, again, "same tx must not claim twice")

	// A concurrent tx claiming the same id loses at commit.
	tx2, _ := store.Begin(ctx)
	fresh2, err := processed.MarkProcessed(ctx, tx2, meta, now)
	require.NoError(t, err)
	assert.True(t, fresh2)

	require.NoError(t, tx1.Commit(ctx))
	assert.ErrorIs(t, tx2.Commit(ctx), domain.ErrConcurrencyConflict)

	tx3, _ := store.Begin(ctx)
	fresh3, err := processed.MarkProcessed(ctx, tx3, meta, now)
	require.NoError(t, err)
	assert.False(t, fresh3)
}

func TestPurgeBefore(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	processed := NewProcessedEventRepository(store)

	tx, _ := store.Begin(ctx)
	_, err := processed.MarkProcessed(ctx, tx, domain.EventMeta{EventID: "old"}, now.Add(-48*time.Hour))
	require.NoError(t, err)
	_, err = processed.MarkProcessed(ctx, tx, domain.EventMeta{EventID: "new"}, now)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	n, err := processed.PurgeBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	oldSeen, _ := processed.IsProcessed(ctx, "old")
	newSeen, _ := processed.IsProcessed(ctx, "new")
	assert.False(t, oldSeen)
	assert.True(t, newSeen)
}

func TestForeignTransactionRejected(t *testing.T) {
	ctx := context.Background()
	repo := NewDailyBalanceRepository(NewStore())

	_, err := repo.GetByDateTx(ctx, foreignTx{}, day1)
	assert.Error(t, err)
}

type foreignTx struct{}

func (foreignTx) Commit(context.Context) error   { return nil }
func (foreignTx) Rollback(context.Context) error { return nil }

package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/goconsolidation/internal/adapter/repository/memory"
	redisRepo "github.com/iho/goconsolidation/internal/adapter/repository/redis"
	"github.com/iho/goconsolidation/internal/domain"
	"github.com/iho/goconsolidation/internal/usecase"
	"github.com/iho/goconsolidation/internal/usecase/mocks"
)

func seeded(date time.Time, credits, debits int64) *domain.DailyBalance {
	b := domain.NewDailyBalance(date, clock)
	b.TotalCredits = decimal.NewFromInt(credits)
	b.TotalDebits = decimal.NewFromInt(debits)
	b.NetBalance = b.TotalCredits.Sub(b.TotalDebits)
	return b
}

func TestBalanceQuery_RangeReportPopulated(t *testing.T) {
	d := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	store := memory.NewStore()
	store.Seed(
		seeded(d.AddDate(0, 0, -1), 100, 20),
		seeded(d, 50, 10),
		seeded(d.AddDate(0, 0, 1), 30, 15),
		seeded(d.AddDate(0, 0, 2), 70, 25),
		seeded(d.AddDate(0, 0, 3), 999, 0),
	)
	uc := usecase.NewBalanceQueryUseCase(memory.NewDailyBalanceRepository(store), nil, 0, nil, zerolog.Nop())

	report, err := uc.GetRangeReport(context.Background(), usecase.GetRangeReportInput{
		StartDate: d,
		EndDate:   d.AddDate(0, 0, 2),
	})
	require.NoError(t, err)

	assert.True(t, report.OpeningBalance.Equal(decimal.NewFromInt(80)), "opening %s", report.OpeningBalance)
	assert.True(t, report.TotalCredits.Equal(decimal.NewFromInt(150)))
	assert.True(t, report.TotalDebits.Equal(decimal.NewFromInt(50)))
	assert.True(t, report.ClosingBalance.Equal(decimal.NewFromInt(180)), "closing %s", report.ClosingBalance)
	require.Len(t, report.Days, 3)
	assert.Equal(t, d, report.Days[0].Date)
}

func TestBalanceQuery_RangeReportEmpty(t *testing.T) {
	uc := usecase.NewBalanceQueryUseCase(memory.NewDailyBalanceRepository(memory.NewStore()), nil, 0, nil, zerolog.Nop())

	report, err := uc.GetRangeReport(context.Background(), usecase.GetRangeReportInput{
		StartDate: dayA,
		EndDate:   dayB,
	})
	require.NoError(t, err)

	assert.True(t, report.OpeningBalance.IsZero())
	assert.True(t, report.TotalCredits.IsZero())
	assert.True(t, report.TotalDebits.IsZero())
	assert.True(t, report.ClosingBalance.IsZero())
	assert.Empty(t, report.Days)
}

func TestBalanceQuery_RangeReportWithGaps(t *testing.T) {
	store := memory.NewStore()
	store.Seed(seeded(dayA.AddDate(0, 0, 3), 10, 0))
	uc := usecase.NewBalanceQueryUseCase(memory.NewDailyBalanceRepository(store), nil, 0, nil, zerolog.Nop())

	report, err := uc.GetRangeReport(context.Background(), usecase.GetRangeReportInput{
		StartDate: dayA,
		EndDate:   dayA.AddDate(0, 0, 5),
	})
	require.NoError(t, err)
	assert.True(t, report.OpeningBalance.IsZero())
	assert.True(t, report.ClosingBalance.Equal(decimal.NewFromInt(10)))
	assert.Len(t, report.Days, 1)
}

func TestBalanceQuery_RangeReportRejectsInvertedRange(t *testing.T) {
	uc := usecase.NewBalanceQueryUseCase(memory.NewDailyBalanceRepository(memory.NewStore()), nil, 0, nil, zerolog.Nop())

	_, err := uc.GetRangeReport(context.Background(), usecase.GetRangeReportInput{StartDate: dayB, EndDate: dayA})
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)
}

func TestBalanceQuery_RangeReportPropagatesStoreErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockDailyBalanceRepository(ctrl)
	boom := errors.New("connection reset")
	repo.EXPECT().GetByDate(gomock.Any(), dayA.AddDate(0, 0, -1)).Return(nil, boom)

	uc := usecase.NewBalanceQueryUseCase(repo, nil, 0, nil, zerolog.Nop())
	_, err := uc.GetRangeReport(context.Background(), usecase.GetRangeReportInput{StartDate: dayA, EndDate: dayB})
	assert.ErrorIs(t, err, boom)
}

func TestBalanceQuery_GetDailyBalanceUsesCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockDailyBalanceRepository(ctrl)
	cache := mocks.NewMockBalanceCache(ctrl)
	observer := mocks.NewMockProjectionObserver(ctrl)

	stored := seeded(dayA, 10, 4)
	stored.Version = 3

	gomock.InOrder(
		cache.EXPECT().Get(gomock.Any(), dayA).Return(nil, false, nil),
		observer.EXPECT().CacheLookup(false),
		repo.EXPECT().GetByDate(gomock.Any(), dayA).Return(stored, nil),
		cache.EXPECT().Set(gomock.Any(), stored, time.Minute).Return(nil),
		cache.EXPECT().Get(gomock.Any(), dayA).Return(stored, true, nil),
		observer.EXPECT().CacheLookup(true),
	)

	uc := usecase.NewBalanceQueryUseCase(repo, cache, time.Minute, observer, zerolog.Nop())

	got, err := uc.GetDailyBalance(context.Background(), dayA.Add(13*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, stored, got)

	got, err = uc.GetDailyBalance(context.Background(), dayA)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Version)
}

func TestBalanceQuery_GetDailyBalanceCacheFailureFallsThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockDailyBalanceRepository(ctrl)
	cache := mocks.NewMockBalanceCache(ctrl)

	cache.EXPECT().Get(gomock.Any(), dayA).Return(nil, false, errors.New("redis down"))
	repo.EXPECT().GetByDate(gomock.Any(), dayA).Return(nil, domain.ErrDailyBalanceNotFound)

	uc := usecase.NewBalanceQueryUseCase(repo, cache, 0, nil, zerolog.Nop())

	_, err := uc.GetDailyBalance(context.Background(), dayA)
	assert.ErrorIs(t, err, domain.ErrDailyBalanceNotFound)
}

// racingBalances runs afterRead once, between the store read and the cache fill.
type racingBalances struct {
	*memory.DailyBalanceRepository
	once      sync.Once
	afterRead func()
}

func (r *racingBalances) GetByDate(ctx context.Context, date time.Time) (*domain.DailyBalance, error) {
	b, err := r.DailyBalanceRepository.GetByDate(ctx, date)
	r.once.Do(r.afterRead)
	return b, err
}

func TestBalanceQuery_CacheFillDoesNotOverwriteNewerCommit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()
	cache := redisRepo.NewBalanceCache(client)

	f := newProjectionFixture(t, func(cfg *usecase.ProjectionConfig) { cfg.Cache = cache })
	f.seed(dayA, 100, 0)

	balances := &racingBalances{
		DailyBalanceRepository: f.balances,
		afterRead: func() {
			_, err := f.uc.HandleRegistered(context.Background(), meta("evt-1"), domain.EntryRegistered{
				EntryID: "entry-2", Date: dayA, Kind: domain.EntryKindCredit, Amount: decimal.NewFromInt(50),
			})
			require.NoError(t, err)
		},
	}
	uc := usecase.NewBalanceQueryUseCase(balances, cache, time.Minute, nil, zerolog.Nop())

	first, err := uc.GetDailyBalance(context.Background(), dayA)
	require.NoError(t, err)
	assert.True(t, first.TotalCredits.Equal(decimal.NewFromInt(100)))

	second, err := uc.GetDailyBalance(context.Background(), dayA)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Version)
	assertTotals(t, second, 150, 0)
	assertTotals(t, f.balance(t, dayA), 150, 0)
}

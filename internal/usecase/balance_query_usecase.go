package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/goconsolidation/internal/domain"
)

// BalanceQueryUseCase serves the daily balance and range report reads.
type BalanceQueryUseCase struct {
	balances DailyBalanceRepository
	cache    BalanceCache
	cacheTTL time.Duration
	observer ProjectionObserver
	logger   zerolog.Logger
}

// NewBalanceQueryUseCase creates a new BalanceQueryUseCase. cache and observer may be nil.
func NewBalanceQueryUseCase(
	balances DailyBalanceRepository,
	cache BalanceCache,
	cacheTTL time.Duration,
	observer ProjectionObserver,
	logger zerolog.Logger,
) *BalanceQueryUseCase {
	if cacheTTL == 0 {
		cacheTTL = DefaultBalanceCacheTTL
	}
	if observer == nil {
		observer = noopObserver{}
	}

	return &BalanceQueryUseCase{
		balances: balances,
		cache:    cache,
		cacheTTL: cacheTTL,
		observer: observer,
		logger:   logger,
	}
}

// GetDailyBalance returns the aggregate for date or domain.ErrDailyBalanceNotFound.
func (uc *BalanceQueryUseCase) GetDailyBalance(ctx context.Context, date time.Time) (*domain.DailyBalance, error) {
	date = domain.NormalizeDate(date)

	if uc.cache != nil {
		cached, ok, err := uc.cache.Get(ctx, date)
		switch {
		case err != nil:
			uc.logger.Warn().Err(err).Time("date", date).Msg("balance cache read failed")
		case ok:
			uc.observer.CacheLookup(true)
			return cached, nil
		default:
			uc.observer.CacheLookup(false)
		}
	}

	balance, err := uc.balances.GetByDate(ctx, date)
	if err != nil {
		if errors.Is(err, domain.ErrDailyBalanceNotFound) {
			uc.logger.Debug().Time("date", date).Msg("daily balance not found")
		}
		return nil, err
	}

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, balance, uc.cacheTTL); err != nil {
			uc.logger.Warn().Err(err).Time("date", date).Msg("balance cache write failed")
		}
	}

	return balance, nil
}

// GetRangeReportInput represents input for a range report.
type GetRangeReportInput struct {
	StartDate time.Time
	EndDate   time.Time
}

// GetRangeReport sums the days in [StartDate, EndDate] on top of the previous
// day's closing balance.
func (uc *BalanceQueryUseCase) GetRangeReport(ctx context.Context, input GetRangeReportInput) (*domain.RangeReport, error) {
	start := domain.NormalizeDate(input.StartDate)
	end := domain.NormalizeDate(input.EndDate)
	if start.After(end) {
		return nil, domain.ErrInvalidDateRange
	}

	opening := decimal.Zero
	prior, err := uc.balances.GetByDate(ctx, start.AddDate(0, 0, -1))
	switch {
	case err == nil:
		opening = prior.NetBalance
	case errors.Is(err, domain.ErrDailyBalanceNotFound):
	default:
		return nil, err
	}

	days, err := uc.balances.GetByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	report := domain.NewRangeReport(start, end, opening, days)

	if len(days) == 0 {
		uc.logger.Warn().
			Str("start", start.Format(domain.DateLayout)).
			Str("end", end.Format(domain.DateLayout)).
			Msg("no daily balances in range")
	}

	return report, nil
}

package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/goconsolidation/internal/domain"
)

// ReconciliationUseCase audits stored daily balances.
type ReconciliationUseCase struct {
	balances DailyBalanceRepository
	logger   zerolog.Logger
	now      func() time.Time
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(balances DailyBalanceRepository, logger zerolog.Logger) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		balances: balances,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Discrepancy is one stored day that fails its invariant.
type Discrepancy struct {
	Date         time.Time
	TotalCredits decimal.Decimal
	TotalDebits  decimal.Decimal
	NetBalance   decimal.Decimal
	Reason       string
}

// ReconciliationReport represents the result of a reconciliation run
type ReconciliationReport struct {
	StartDate     time.Time
	EndDate       time.Time
	CheckedDays   int
	Discrepancies []Discrepancy
	Consistent    bool
	CheckedAt     time.Time
}

// ReconcileRange checks every stored day in [start, end] for non-negative
// accumulators and net == credits - debits.
func (uc *ReconciliationUseCase) ReconcileRange(ctx context.Context, start, end time.Time) (*ReconciliationReport, error) {
	start = domain.NormalizeDate(start)
	end = domain.NormalizeDate(end)
	if start.After(end) {
		return nil, domain.ErrInvalidDateRange
	}

	days, err := uc.balances.GetByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	report := &ReconciliationReport{
		StartDate:     start,
		EndDate:       end,
		CheckedDays:   len(days),
		Discrepancies: make([]Discrepancy, 0),
		CheckedAt:     uc.now(),
	}

	for _, day := range days {
		if err := day.CheckInvariant(); err != nil {
			report.Discrepancies = append(report.Discrepancies, Discrepancy{
				Date:         day.Date,
				TotalCredits: day.TotalCredits,
				TotalDebits:  day.TotalDebits,
				NetBalance:   day.NetBalance,
				Reason:       err.Error(),
			})
		}
	}
	report.Consistent = len(report.Discrepancies) == 0

	if !report.Consistent {
		uc.logger.Error().
			Str("start", start.Format(domain.DateLayout)).
			Str("end", end.Format(domain.DateLayout)).
			Int("discrepancies", len(report.Discrepancies)).
			Msg("daily balance inconsistency detected")
	}

	return report, nil
}

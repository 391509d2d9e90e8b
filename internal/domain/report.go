package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RangeReport summarizes the cash flow over an inclusive range of days.
type RangeReport struct {
	StartDate      time.Time
	EndDate        time.Time
	OpeningBalance decimal.Decimal
	TotalCredits   decimal.Decimal
	TotalDebits    decimal.Decimal
	ClosingBalance decimal.Decimal
	Days           []*DailyBalance
}

// NewRangeReport folds days into a report. opening is the net balance of the day
// before start, or zero when that day has no aggregate.
func NewRangeReport(start, end time.Time, opening decimal.Decimal, days []*DailyBalance) *RangeReport {
	credits := decimal.Zero
	debits := decimal.Zero
	for _, d := range days {
		credits = credits.Add(d.TotalCredits)
		debits = debits.Add(d.TotalDebits)
	}

	return &RangeReport{
		StartDate:      NormalizeDate(start),
		EndDate:        NormalizeDate(end),
		OpeningBalance: opening,
		TotalCredits:   credits,
		TotalDebits:    debits,
		ClosingBalance: opening.Add(credits).Sub(debits),
		Days:           days,
	}
}

package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used on the wire and in logs.
const DateLayout = "2006-01-02"

// NormalizeDate drops the time of day, keeping t's calendar date as UTC midnight.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// DailyBalance is the consolidated aggregate of every entry dated on one day.
type DailyBalance struct {
	Date         time.Time
	TotalCredits decimal.Decimal
	TotalDebits  decimal.Decimal
	NetBalance   decimal.Decimal
	LastUpdated  time.Time
	CreatedAt    time.Time
	// Version is the optimistic concurrency token. Zero means never stored.
	Version int64
}

// NewDailyBalance returns an empty aggregate for date.
func NewDailyBalance(date, now time.Time) *DailyBalance {
	return &DailyBalance{
		Date:         NormalizeDate(date),
		TotalCredits: decimal.Zero,
		TotalDebits:  decimal.Zero,
		NetBalance:   decimal.Zero,
		LastUpdated:  now,
		CreatedAt:    now,
	}
}

// IsNew reports whether the aggregate has never been persisted.
func (b *DailyBalance) IsNew() bool {
	return b.Version == 0
}

// Apply adds an entry's amount to the matching accumulator.
func (b *DailyBalance) Apply(kind EntryKind, amount decimal.Decimal, now time.Time) error {
	k, err := validateDelta(kind, amount)
	if err != nil {
		return err
	}

	switch k {
	case EntryKindCredit:
		b.TotalCredits = b.TotalCredits.Add(amount)
	case EntryKindDebit:
		b.TotalDebits = b.TotalDebits.Add(amount)
	}

	b.touch(now)
	return nil
}

// Revert removes an entry's amount from the matching accumulator.
// The aggregate is left untouched when the revert would go below zero.
func (b *DailyBalance) Revert(kind EntryKind, amount decimal.Decimal, now time.Time) error {
	k, err := validateDelta(kind, amount)
	if err != nil {
		return err
	}

	switch k {
	case EntryKindCredit:
		next := b.TotalCredits.Sub(amount)
		if next.IsNegative() {
			return fmt.Errorf("%w: credits %s - %s on %s", ErrNegativeAccumulator,
				b.TotalCredits, amount, b.Date.Format(DateLayout))
		}
		b.TotalCredits = next
	case EntryKindDebit:
		next := b.TotalDebits.Sub(amount)
		if next.IsNegative() {
			return fmt.Errorf("%w: debits %s - %s on %s", ErrNegativeAccumulator,
				b.TotalDebits, amount, b.Date.Format(DateLayout))
		}
		b.TotalDebits = next
	}

	b.touch(now)
	return nil
}

// ApplyAdjustment applies a, or reverses it when reverse is set.
func (b *DailyBalance) ApplyAdjustment(a Adjustment, reverse bool, now time.Time) error {
	if reverse {
		return b.Revert(a.Kind, a.Amount, now)
	}
	return b.Apply(a.Kind, a.Amount, now)
}

// CheckInvariant verifies the stored net balance and accumulator signs.
func (b *DailyBalance) CheckInvariant() error {
	if b.TotalCredits.IsNegative() || b.TotalDebits.IsNegative() {
		return ErrNegativeAccumulator
	}
	if !b.NetBalance.Equal(b.TotalCredits.Sub(b.TotalDebits)) {
		return fmt.Errorf("%w: net %s != %s - %s", ErrBalanceInvariant,
			b.NetBalance, b.TotalCredits, b.TotalDebits)
	}
	return nil
}

// Clone returns a copy safe to mutate.
func (b *DailyBalance) Clone() *DailyBalance {
	c := *b
	return &c
}

func (b *DailyBalance) touch(now time.Time) {
	b.NetBalance = b.TotalCredits.Sub(b.TotalDebits)
	b.LastUpdated = now
}

func validateDelta(kind EntryKind, amount decimal.Decimal) (EntryKind, error) {
	k, err := kind.normalized()
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntryKind, string(kind))
	}
	if !amount.IsPositive() {
		return "", fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	return k, nil
}

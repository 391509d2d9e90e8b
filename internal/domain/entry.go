package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind is the direction of a ledger entry.
type EntryKind string

const (
	EntryKindCredit EntryKind = "Credit"
	EntryKindDebit  EntryKind = "Debit"
)

// ParseEntryKind parses a kind case-insensitively.
func ParseEntryKind(s string) (EntryKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "credit":
		return EntryKindCredit, nil
	case "debit":
		return EntryKindDebit, nil
	default:
		return "", ErrInvalidEntryKind
	}
}

// Valid reports whether k is Credit or Debit.
func (k EntryKind) Valid() bool {
	_, err := ParseEntryKind(string(k))
	return err == nil
}

// normalized returns the canonical spelling of k, or an error.
func (k EntryKind) normalized() (EntryKind, error) {
	return ParseEntryKind(string(k))
}

// EntrySnapshot captures the fields of an entry at one point in time.
// Snapshots travel in pairs on update events and are never persisted here.
type EntrySnapshot struct {
	Date        time.Time       `json:"date"`
	ID          string          `json:"id"`
	Kind        EntryKind       `json:"kind"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Notes       string          `json:"notes,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
}

// Equal reports structural equality over every field.
func (s EntrySnapshot) Equal(o EntrySnapshot) bool {
	return s.ID == o.ID &&
		s.Amount.Equal(o.Amount) &&
		s.Kind == o.Kind &&
		NormalizeDate(s.Date).Equal(NormalizeDate(o.Date)) &&
		s.Description == o.Description &&
		s.Category == o.Category &&
		s.Notes == o.Notes
}

// SameEconomics reports whether both snapshots contribute the same delta to the
// same day. Description, category and notes are ignored.
func (s EntrySnapshot) SameEconomics(o EntrySnapshot) bool {
	return s.Amount.Equal(o.Amount) &&
		strings.EqualFold(string(s.Kind), string(o.Kind)) &&
		NormalizeDate(s.Date).Equal(NormalizeDate(o.Date))
}

// Contribution returns the adjustment this entry adds to its day.
func (s EntrySnapshot) Contribution() Adjustment {
	return NewAdjustment(s.Date, s.Kind, s.Amount)
}

// Adjustment is one entry's contribution to a day's aggregate.
type Adjustment struct {
	Date   time.Time
	Kind   EntryKind
	Amount decimal.Decimal
}

// NewAdjustment builds an adjustment with a normalized date.
func NewAdjustment(date time.Time, kind EntryKind, amount decimal.Decimal) Adjustment {
	return Adjustment{
		Date:   NormalizeDate(date),
		Kind:   kind,
		Amount: amount,
	}
}

// Validate checks the date, kind and amount against the event contract.
func (a Adjustment) Validate() error {
	if a.Date.IsZero() {
		return fmt.Errorf("%w: missing entry date", ErrMalformedEvent)
	}
	if _, err := a.Kind.normalized(); err != nil {
		return err
	}
	return ValidateAmount(a.Amount)
}

// ValidateAt runs Validate and also rejects days after the calendar day of now.
func (a Adjustment) ValidateAt(now time.Time) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.Date.After(NormalizeDate(now)) {
		return fmt.Errorf("%w: %s", ErrFutureDate, a.Date.Format(DateLayout))
	}
	return nil
}

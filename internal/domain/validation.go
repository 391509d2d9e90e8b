package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrAmountTooLarge  = errors.New("amount exceeds maximum allowed")
	ErrAmountPrecision = errors.New("amount has more decimal places than allowed")
	ErrInvalidIDFormat = errors.New("invalid ID format")
)

// Validation constants. Amounts are stored as NUMERIC(18, 2).
const (
	MaxAmountScale = 2
	MaxEntryAmount = "9999999999999999.99"
	MaxEventIDLen  = 128
)

var maxEntryAmount = decimal.RequireFromString(MaxEntryAmount)

// ValidateAmount validates an entry amount against what the store can hold
// exactly. Rounding on write would break compensation, so excess precision is
// rejected rather than rounded.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	if amount.GreaterThan(maxEntryAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxEntryAmount)
	}

	if !amount.Equal(amount.Truncate(MaxAmountScale)) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrAmountPrecision, amount, MaxAmountScale)
	}

	return nil
}

// ValidateEventID validates an event identifier.
func ValidateEventID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidIDFormat)
	}

	if len(id) > MaxEventIDLen {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidIDFormat, MaxEventIDLen)
	}

	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: contains whitespace or control characters", ErrInvalidIDFormat)
		}
	}

	return nil
}

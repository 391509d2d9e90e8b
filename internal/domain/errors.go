package domain

import "errors"

var (
	// Balance errors
	ErrDailyBalanceNotFound = errors.New("daily balance not found")
	ErrConcurrencyConflict  = errors.New("daily balance was modified concurrently")
	ErrNegativeAccumulator  = errors.New("daily balance accumulator cannot be negative")
	ErrBalanceInvariant     = errors.New("net balance does not match credits minus debits")

	// ErrMissingAggregate marks a revert whose target day was never projected.
	// It is recovered locally and only reported as an anomaly.
	ErrMissingAggregate = errors.New("no daily balance to revert against")

	// Event contract errors
	ErrInvalidEntryKind = errors.New("invalid entry kind")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrUnknownEventType = errors.New("unknown event type")
	ErrMalformedEvent   = errors.New("malformed event")

	// Query errors
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidDateRange = errors.New("start date must not be after end date")
	ErrFutureDate       = errors.New("date cannot be in the future")
	ErrRangeTooLong     = errors.New("date range exceeds maximum length")
)

// IsPermanent reports whether err is a contract violation that no amount of
// redelivery can fix.
func IsPermanent(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidEntryKind),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrAmountTooLarge),
		errors.Is(err, ErrAmountPrecision),
		errors.Is(err, ErrInvalidIDFormat),
		errors.Is(err, ErrUnknownEventType),
		errors.Is(err, ErrMalformedEvent),
		errors.Is(err, ErrFutureDate),
		errors.Is(err, ErrNegativeAccumulator),
		errors.Is(err, ErrBalanceInvariant):
		return true
	}
	return false
}

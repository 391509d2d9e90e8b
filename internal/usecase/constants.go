package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for one projection attempt.
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultDedupTTL is how long applied event ids stay in the fast dedup path.
	DefaultDedupTTL = 7 * 24 * time.Hour

	// DefaultBalanceCacheTTL is how long a cached daily balance is served.
	DefaultBalanceCacheTTL = 5 * time.Minute

	// IdempotencyPendingMarker is stored under an idempotency key while its
	// first request is still running.
	IdempotencyPendingMarker = "processing"
)

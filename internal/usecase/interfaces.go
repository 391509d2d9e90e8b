package usecase

import (
	"context"
	"time"

	"github.com/iho/goconsolidation/internal/domain"
)

// DailyBalanceRepository defines data access for daily balances.
type DailyBalanceRepository interface {
	GetByDate(ctx context.Context, date time.Time) (*domain.DailyBalance, error)
	GetByDateTx(ctx context.Context, tx Transaction, date time.Time) (*domain.DailyBalance, error)
	GetByDateRange(ctx context.Context, start, end time.Time) ([]*domain.DailyBalance, error)
	// Upsert inserts a new balance (Version == 0) or updates one whose stored
	// version still equals balance.Version. It returns domain.ErrConcurrencyConflict
	// otherwise and bumps balance.Version on success.
	Upsert(ctx context.Context, tx Transaction, balance *domain.DailyBalance) error
}

// ProcessedEventRepository records which events have been applied.
type ProcessedEventRepository interface {
	// MarkProcessed records the event inside tx and reports whether it was new.
	MarkProcessed(ctx context.Context, tx Transaction, event domain.EventMeta, processedAt time.Time) (bool, error)
	IsProcessed(ctx context.Context, eventID string) (bool, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation while it fails with a retryable error.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// BalanceCache caches daily balances for the point query.
type BalanceCache interface {
	Get(ctx context.Context, date time.Time) (*domain.DailyBalance, bool, error)
	// Set stores balance unless the same or a newer version of its day is cached.
	Set(ctx context.Context, balance *domain.DailyBalance, ttl time.Duration) error
	Delete(ctx context.Context, dates ...time.Time) error
}

// EventDeduplicator is a fast path in front of the processed events ledger.
type EventDeduplicator interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Remember(ctx context.Context, eventID string, ttl time.Duration) error
}

// IdempotencyStore remembers responses of mutating HTTP requests by key.
type IdempotencyStore interface {
	// CheckAndSet claims key. It returns true and the stored value when the
	// key was already claimed.
	CheckAndSet(ctx context.Context, key string, ttl time.Duration) (bool, []byte, error)
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// ProjectionObserver receives projection telemetry.
type ProjectionObserver interface {
	EventProcessed(eventType string, outcome string, duration time.Duration)
	ConcurrencyConflict(eventType string)
	Anomaly(kind string)
	CacheLookup(hit bool)
}

type noopObserver struct{}

func (noopObserver) EventProcessed(string, string, time.Duration) {}
func (noopObserver) ConcurrencyConflict(string)                   {}
func (noopObserver) Anomaly(string)                               {}
func (noopObserver) CacheLookup(bool)                             {}

package postgres

import (
	"context"
	"time"

	"github.com/iho/goconsolidation/internal/domain"
	"github.com/iho/goconsolidation/internal/infrastructure/postgres/generated"
	"github.com/iho/goconsolidation/internal/usecase"
)

// ProcessedEventRepository implements usecase.ProcessedEventRepository.
type ProcessedEventRepository struct {
	queries *generated.Queries
}

// NewProcessedEventRepository creates a new ProcessedEventRepository.
func NewProcessedEventRepository(db generated.DBTX) *ProcessedEventRepository {
	return &ProcessedEventRepository{
		queries: generated.New(db),
	}
}

// MarkProcessed records the event in tx. A concurrent insert of the same id
// blocks until the other transaction finishes and then reports false.
func (r *ProcessedEventRepository) MarkProcessed(ctx context.Context, tx usecase.Transaction, event domain.EventMeta, processedAt time.Time) (bool, error) {
	pgxTx, err := unwrapTx(tx)
	if err != nil {
		return false, err
	}

	affected, err := generated.New(pgxTx).InsertProcessedEvent(ctx, generated.InsertProcessedEventParams{
		EventID:       event.EventID,
		EventType:     event.Type,
		CorrelationID: event.CorrelationID,
		OccurredAt:    timeToPgTimestamptz(event.OccurredAt),
		ProcessedAt:   timeToPgTimestamptz(processedAt),
	})
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

// IsProcessed reports whether the event id has been recorded.
func (r *ProcessedEventRepository) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	return r.queries.ProcessedEventExists(ctx, eventID)
}

// PurgeBefore deletes records processed before cutoff.
func (r *ProcessedEventRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.queries.DeleteProcessedEventsBefore(ctx, timeToPgTimestamptz(cutoff))
}

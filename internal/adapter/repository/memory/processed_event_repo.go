package memory

import (
	"context"
	"time"

	"github.com/iho/goconsolidation/internal/domain"
	"github.com/iho/goconsolidation/internal/usecase"
)

// ProcessedEventRepository implements usecase.ProcessedEventRepository.
type ProcessedEventRepository struct {
	store *Store
}

// NewProcessedEventRepository creates a new ProcessedEventRepository.
func NewProcessedEventRepository(store *Store) *ProcessedEventRepository {
	return &ProcessedEventRepository{store: store}
}

// MarkProcessed stages the event id in tx. It returns false when the id is
// already committed or staged.
func (r *ProcessedEventRepository) MarkProcessed(ctx context.Context, tx usecase.Transaction, event domain.EventMeta, processedAt time.Time) (bool, error) {
	t, err := asTx(tx)
	if err != nil {
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.active(); err != nil {
		return false, err
	}
	if _, ok := t.processed[event.EventID]; ok {
		return false, nil
	}

	processed, err := r.IsProcessed(ctx, event.EventID)
	if err != nil || processed {
		return false, err
	}

	t.processed[event.EventID] = processedRecord{meta: event, processedAt: processedAt}
	return true, nil
}

// IsProcessed reports whether the event id has been committed.
func (r *ProcessedEventRepository) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	_, ok := r.store.processed[eventID]
	return ok, nil
}

// PurgeBefore forgets events processed before cutoff.
func (r *ProcessedEventRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var n int64
	for id, rec := range r.store.processed {
		if rec.processedAt.Before(cutoff) {
			delete(r.store.processed, id)
			n++
		}
	}
	return n, nil
}

// Package memory is an in-process implementation of the balance store with the
// same optimistic concurrency semantics as the postgres repositories.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iho/goconsolidation/internal/domain"
	"github.com/iho/goconsolidation/internal/usecase"
)

// ErrTxDone is returned when a finished transaction is used again.
var ErrTxDone = errors.New("memory: transaction already committed or rolled back")

// Store holds committed daily balances and processed event ids.
type Store struct {
	mu        sync.RWMutex
	balances  map[time.Time]*domain.DailyBalance
	processed map[string]processedRecord
}

type processedRecord struct {
	meta        domain.EventMeta
	processedAt time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		balances:  make(map[time.Time]*domain.DailyBalance),
		processed: make(map[string]processedRecord),
	}
}

// Seed stores balances as already committed. Intended for tests and fixtures.
func (s *Store) Seed(balances ...*domain.DailyBalance) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range balances {
		c := b.Clone()
		c.Date = domain.NormalizeDate(c.Date)
		if c.Version == 0 {
			c.Version = 1
		}
		s.balances[c.Date] = c
	}
}

// Begin starts a new transaction.
func (s *Store) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{
		store:     s,
		writes:    make(map[time.Time]stagedBalance),
		processed: make(map[string]processedRecord),
	}, nil
}

type stagedBalance struct {
	balance  *domain.DailyBalance
	expected int64
}

// Tx buffers writes until Commit.
type Tx struct {
	mu        sync.Mutex
	store     *Store
	writes    map[time.Time]stagedBalance
	processed map[string]processedRecord
	done      bool
}

// Commit validates every staged write against the committed state and applies
// them atomically.
func (t *Tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return ErrTxDone
	}
	t.done = true

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for date, w := range t.writes {
		if s.version(date) != w.expected {
			return domain.ErrConcurrencyConflict
		}
	}
	for id := range t.processed {
		if _, ok := s.processed[id]; ok {
			return domain.ErrConcurrencyConflict
		}
	}

	for date, w := range t.writes {
		s.balances[date] = w.balance
	}
	for id, rec := range t.processed {
		s.processed[id] = rec
	}

	return nil
}

// Rollback discards staged writes. It is a no-op after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.done = true
	return nil
}

func (t *Tx) active() error {
	if t.done {
		return ErrTxDone
	}
	return nil
}

// version returns the committed version of date, zero when absent.
// Callers hold s.mu.
func (s *Store) version(date time.Time) int64 {
	if b, ok := s.balances[date]; ok {
		return b.Version
	}
	return 0
}

func (s *Store) get(date time.Time) (*domain.DailyBalance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.balances[date]
	if !ok {
		return nil, false
	}
	return b.Clone(), true
}

func (s *Store) rangeOf(start, end time.Time) []*domain.DailyBalance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.DailyBalance, 0)
	for date, b := range s.balances {
		if date.Before(start) || date.After(end) {
			continue
		}
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	return out
}

func asTx(tx usecase.Transaction) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok {
		return nil, errors.New("memory: foreign transaction")
	}
	return t, nil
}

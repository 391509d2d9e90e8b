package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/goconsolidation/internal/domain"
)

// ProjectionOutcome describes what an event did to the projection.
type ProjectionOutcome string

const (
	OutcomeApplied   ProjectionOutcome = "applied"
	OutcomeNoChange  ProjectionOutcome = "no_change"
	OutcomeDuplicate ProjectionOutcome = "duplicate"
	OutcomeRejected  ProjectionOutcome = "rejected"
	OutcomeFailed    ProjectionOutcome = "failed"
)

// ProjectionResult reports how one event was projected.
type ProjectionResult struct {
	Plan      *ProjectionPlan
	EventID   string
	EventType string
	Outcome   ProjectionOutcome
	Anomalies []error
	Attempts  int
}

// ProjectionConfig holds the dependencies of ProjectionUseCase.
type ProjectionConfig struct {
	TxManager  TransactionManager
	Balances   DailyBalanceRepository
	Processed  ProcessedEventRepository
	Retrier    Retrier
	Cache      BalanceCache       // optional
	Dedup      EventDeduplicator  // optional
	Observer   ProjectionObserver // optional
	Logger     zerolog.Logger
	DedupTTL   time.Duration
	CacheTTL   time.Duration
	TxTimeout  time.Duration
	Clock      func() time.Time
}

// ProjectionUseCase folds ledger entry events into daily balances.
type ProjectionUseCase struct {
	txManager TransactionManager
	balances  DailyBalanceRepository
	processed ProcessedEventRepository
	retrier   Retrier
	cache     BalanceCache
	dedup     EventDeduplicator
	observer  ProjectionObserver
	logger    zerolog.Logger
	dedupTTL  time.Duration
	cacheTTL  time.Duration
	txTimeout time.Duration
	now       func() time.Time
}

// NewProjectionUseCase creates a new ProjectionUseCase.
func NewProjectionUseCase(cfg ProjectionConfig) *ProjectionUseCase {
	if cfg.Observer == nil {
		cfg.Observer = noopObserver{}
	}
	if cfg.DedupTTL == 0 {
		cfg.DedupTTL = DefaultDedupTTL
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultBalanceCacheTTL
	}
	if cfg.TxTimeout == 0 {
		cfg.TxTimeout = DefaultTransactionTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}

	return &ProjectionUseCase{
		txManager: cfg.TxManager,
		balances:  cfg.Balances,
		processed: cfg.Processed,
		retrier:   cfg.Retrier,
		cache:     cfg.Cache,
		dedup:     cfg.Dedup,
		observer:  cfg.Observer,
		logger:    cfg.Logger,
		dedupTTL:  cfg.DedupTTL,
		cacheTTL:  cfg.CacheTTL,
		txTimeout: cfg.TxTimeout,
		now:       cfg.Clock,
	}
}

// Handle decodes an envelope and dispatches it to the matching handler.
func (uc *ProjectionUseCase) Handle(ctx context.Context, env domain.Envelope) (*ProjectionResult, error) {
	if err := env.Validate(); err != nil {
		uc.observer.EventProcessed(env.Type, string(OutcomeRejected), 0)
		return nil, err
	}

	meta := env.Meta()

	switch env.Type {
	case domain.EventTypeEntryRegistered:
		var e domain.EntryRegistered
		if err := env.DecodeInto(&e); err != nil {
			return nil, err
		}
		return uc.HandleRegistered(ctx, meta, e)
	case domain.EventTypeEntryUpdated:
		var e domain.EntryUpdated
		if err := env.DecodeInto(&e); err != nil {
			return nil, err
		}
		return uc.HandleUpdated(ctx, meta, e)
	case domain.EventTypeEntryDeleted:
		var e domain.EntryDeleted
		if err := env.DecodeInto(&e); err != nil {
			return nil, err
		}
		return uc.HandleDeleted(ctx, meta, e)
	}

	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEventType, env.Type)
}

// HandleRegistered adds a newly created entry to its day.
func (uc *ProjectionUseCase) HandleRegistered(ctx context.Context, meta domain.EventMeta, e domain.EntryRegistered) (*ProjectionResult, error) {
	meta.Type = domain.EventTypeEntryRegistered
	return uc.project(ctx, meta, PlanRegistered(e))
}

// HandleUpdated moves an entry's contribution from its old state to its new one.
func (uc *ProjectionUseCase) HandleUpdated(ctx context.Context, meta domain.EventMeta, e domain.EntryUpdated) (*ProjectionResult, error) {
	meta.Type = domain.EventTypeEntryUpdated
	return uc.project(ctx, meta, PlanUpdated(e))
}

// HandleDeleted removes a deleted entry from its day.
func (uc *ProjectionUseCase) HandleDeleted(ctx context.Context, meta domain.EventMeta, e domain.EntryDeleted) (*ProjectionResult, error) {
	meta.Type = domain.EventTypeEntryDeleted
	return uc.project(ctx, meta, PlanDeleted(e))
}

func (uc *ProjectionUseCase) project(ctx context.Context, meta domain.EventMeta, plan *ProjectionPlan) (*ProjectionResult, error) {
	start := time.Now()
	log := uc.logger.With().
		Str("event_id", meta.EventID).
		Str("event_type", meta.Type).
		Str("correlation_id", meta.CorrelationID).
		Logger()

	result := &ProjectionResult{
		EventID:   meta.EventID,
		EventType: meta.Type,
		Plan:      plan,
	}

	if meta.EventID == "" {
		uc.observer.EventProcessed(meta.Type, string(OutcomeRejected), time.Since(start))
		return nil, fmt.Errorf("%w: missing event id", domain.ErrMalformedEvent)
	}

	if err := plan.Validate(uc.now()); err != nil {
		result.Outcome = OutcomeRejected
		uc.observer.EventProcessed(meta.Type, string(result.Outcome), time.Since(start))
		log.Error().Err(err).Msg("event violates entry contract")
		return result, err
	}

	if plan.Empty() {
		result.Outcome = OutcomeNoChange
		uc.observer.EventProcessed(meta.Type, string(result.Outcome), time.Since(start))
		log.Debug().Msg("no balance relevant change")
		return result, nil
	}

	if uc.seen(ctx, log, meta.EventID) {
		result.Outcome = OutcomeDuplicate
		uc.observer.EventProcessed(meta.Type, string(result.Outcome), time.Since(start))
		log.Info().Msg("event already applied")
		return result, nil
	}

	err := uc.retrier.Retry(ctx, func() error {
		result.Attempts++
		outcome, err := uc.attempt(ctx, meta, plan)
		if err != nil {
			if errors.Is(err, domain.ErrConcurrencyConflict) {
				uc.observer.ConcurrencyConflict(meta.Type)
			}
			return err
		}
		result.Outcome = outcome
		return nil
	})
	if err != nil {
		result.Outcome = OutcomeFailed
		if domain.IsPermanent(err) {
			result.Outcome = OutcomeRejected
			log.Error().Err(err).Int("attempts", result.Attempts).Msg("event rejected")
		} else {
			log.Warn().Err(err).Int("attempts", result.Attempts).Msg("projection failed, event will be redelivered")
		}
		uc.observer.EventProcessed(meta.Type, string(result.Outcome), time.Since(start))
		return result, fmt.Errorf("project %s %s: %w", meta.Type, meta.EventID, err)
	}

	if result.Outcome == OutcomeApplied {
		result.Anomalies = plan.Anomalies()
		for _, anomaly := range result.Anomalies {
			uc.observer.Anomaly("missing_aggregate")
			log.Warn().Err(anomaly).Msg("revert target missing, treated as zero contribution")
		}
		uc.refreshCache(ctx, log, plan)
	}

	uc.remember(ctx, log, meta.EventID)
	uc.observer.EventProcessed(meta.Type, string(result.Outcome), time.Since(start))

	log.Info().
		Str("outcome", string(result.Outcome)).
		Int("attempts", result.Attempts).
		Int("days", len(plan.Touched())).
		Msg("event projected")

	return result, nil
}

// attempt runs one read-modify-write cycle in its own transaction.
func (uc *ProjectionUseCase) attempt(ctx context.Context, meta domain.EventMeta, plan *ProjectionPlan) (ProjectionOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.txTimeout)
	defer cancel()

	plan.reset()
	now := uc.now()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	fresh, err := uc.processed.MarkProcessed(ctx, tx, meta, now)
	if err != nil {
		return "", err
	}
	if !fresh {
		return OutcomeDuplicate, nil
	}

	err = plan.execute(func(date time.Time) (*domain.DailyBalance, error) {
		return uc.balances.GetByDateTx(ctx, tx, date)
	}, now)
	if err != nil {
		return "", err
	}

	for _, balance := range plan.Touched() {
		if err := uc.balances.Upsert(ctx, tx, balance); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}

	return OutcomeApplied, nil
}

func (uc *ProjectionUseCase) seen(ctx context.Context, log zerolog.Logger, eventID string) bool {
	if uc.dedup == nil {
		return false
	}
	seen, err := uc.dedup.Seen(ctx, eventID)
	if err != nil {
		log.Warn().Err(err).Msg("dedup lookup failed, falling back to processed events ledger")
		return false
	}
	return seen
}

func (uc *ProjectionUseCase) remember(ctx context.Context, log zerolog.Logger, eventID string) {
	if uc.dedup == nil {
		return
	}
	if err := uc.dedup.Remember(ctx, eventID, uc.dedupTTL); err != nil {
		log.Warn().Err(err).Msg("failed to remember applied event")
	}
}

// refreshCache writes the committed aggregates so a reader filling the cache
// with an older version cannot overwrite them. Days that could not be written
// are evicted instead.
func (uc *ProjectionUseCase) refreshCache(ctx context.Context, log zerolog.Logger, plan *ProjectionPlan) {
	if uc.cache == nil {
		return
	}

	written := make(map[string]bool)
	for _, balance := range plan.Touched() {
		if err := uc.cache.Set(ctx, balance, uc.cacheTTL); err != nil {
			log.Warn().Err(err).Str("date", balance.Date.Format(domain.DateLayout)).Msg("failed to refresh cached balance")
			continue
		}
		written[balance.Date.Format(domain.DateLayout)] = true
	}

	var stale []time.Time
	for _, date := range plan.Dates() {
		if !written[date.Format(domain.DateLayout)] {
			stale = append(stale, date)
		}
	}
	if len(stale) == 0 {
		return
	}
	if err := uc.cache.Delete(ctx, stale...); err != nil {
		log.Warn().Err(err).Msg("failed to evict cached balances")
	}
}

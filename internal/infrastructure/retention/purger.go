package retention

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// EventPurger deletes processed event records older than a cutoff.
type EventPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Purger periodically trims the processed events ledger. Records older than
// the retention window can no longer be deduplicated, so the window must
// exceed the broker's redelivery horizon.
type Purger struct {
	repo      EventPurger
	logger    zerolog.Logger
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

// Config for Purger.
type Config struct {
	Repo      EventPurger
	Logger    zerolog.Logger
	Retention time.Duration // How long processed event ids are kept
	Interval  time.Duration // Purge interval
}

// NewPurger creates a new Purger.
func NewPurger(cfg Config) *Purger {
	if cfg.Retention == 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}

	return &Purger{
		repo:      cfg.Repo,
		logger:    cfg.Logger,
		retention: cfg.Retention,
		interval:  cfg.Interval,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start runs the purge loop until the context is cancelled.
func (p *Purger) Start(ctx context.Context) error {
	p.logger.Info().
		Dur("retention", p.retention).
		Dur("interval", p.interval).
		Msg("processed events purger started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("processed events purger shutting down")
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.purge(ctx); err != nil {
				p.logger.Error().Err(err).Msg("error purging processed events")
			}
		}
	}
}

func (p *Purger) purge(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.retention)

	n, err := p.repo.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		p.logger.Info().
			Int64("count", n).
			Time("cutoff", cutoff).
			Msg("purged processed events")
	}

	return n, nil
}

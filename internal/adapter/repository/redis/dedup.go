package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventDeduplicator implements usecase.EventDeduplicator using Redis keys with TTL.
// The processed events ledger stays authoritative; this only saves a transaction
// for redelivered messages.
type EventDeduplicator struct {
	client *redis.Client
	prefix string
}

// NewEventDeduplicator creates a new EventDeduplicator.
func NewEventDeduplicator(client *redis.Client) *EventDeduplicator {
	return &EventDeduplicator{
		client: client,
		prefix: "processed-event:",
	}
}

// Seen reports whether the event id was remembered.
func (d *EventDeduplicator) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.prefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Remember stores the event id for ttl.
func (d *EventDeduplicator) Remember(ctx context.Context, eventID string, ttl time.Duration) error {
	return d.client.Set(ctx, d.prefix+eventID, time.Now().UTC().Format(time.RFC3339Nano), ttl).Err()
}

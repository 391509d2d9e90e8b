package redisstream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/iho/goconsolidation/internal/domain"
)

// Stream message fields.
const (
	FieldEnvelope  = "envelope"
	FieldEventID   = "event_id"
	FieldEventType = "event_type"
	FieldReason    = "reason"
	FieldSourceID  = "source_id"
	FieldStream    = "source_stream"
)

// Publisher appends event envelopes to a Redis stream.
type Publisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewPublisher creates a new Publisher. maxLen <= 0 leaves the stream untrimmed.
func NewPublisher(client *redis.Client, stream string, maxLen int64) *Publisher {
	return &Publisher{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

// Publish adds env to the stream and returns the stream message id.
func (p *Publisher) Publish(ctx context.Context, env domain.Envelope) (string, error) {
	if err := env.Validate(); err != nil {
		return "", err
	}

	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			FieldEnvelope:  string(data),
			FieldEventID:   env.EventID,
			FieldEventType: env.Type,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", p.stream, err)
	}

	return id, nil
}

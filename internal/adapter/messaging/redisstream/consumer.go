package redisstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iho/goconsolidation/internal/domain"
	"github.com/iho/goconsolidation/internal/infrastructure/logger"
	"github.com/iho/goconsolidation/internal/usecase"
)

// EventHandler projects one envelope.
type EventHandler interface {
	Handle(ctx context.Context, env domain.Envelope) (*usecase.ProjectionResult, error)
}

// Observer receives consumer telemetry.
type Observer interface {
	MessageDeadLettered(reason string)
}

// Config for Consumer.
type Config struct {
	Client           *redis.Client
	Handler          EventHandler
	Observer         Observer // optional
	Logger           zerolog.Logger
	Stream           string
	Group            string
	Consumer         string
	DeadLetterStream string
	Workers          int
	BatchSize        int64
	Block            time.Duration // negative disables blocking
	ClaimInterval    time.Duration
	MinIdle          time.Duration // pending time before a message is reclaimed
	MaxDeliveries    int64
}

// Consumer reads envelopes from a Redis stream consumer group and feeds them
// to the projection. Messages are acknowledged once applied, deduplicated or
// dead-lettered; transient failures stay pending and are reclaimed later.
type Consumer struct {
	client        *redis.Client
	handler       EventHandler
	observer      Observer
	logger        zerolog.Logger
	stream        string
	group         string
	consumer      string
	deadLetter    string
	workers       int
	batchSize     int64
	block         time.Duration
	claimInterval time.Duration
	minIdle       time.Duration
	maxDeliveries int64
}

// NewConsumer creates a new Consumer.
func NewConsumer(cfg Config) *Consumer {
	if cfg.Stream == "" {
		cfg.Stream = "entries.events"
	}
	if cfg.Group == "" {
		cfg.Group = "consolidation"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "consolidation-1"
	}
	if cfg.DeadLetterStream == "" {
		cfg.DeadLetterStream = cfg.Stream + ".dlq"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.Block == 0 {
		cfg.Block = 2 * time.Second
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = 30 * time.Second
	}
	if cfg.MinIdle <= 0 {
		cfg.MinIdle = time.Minute
	}
	if cfg.MaxDeliveries <= 0 {
		cfg.MaxDeliveries = 10
	}

	return &Consumer{
		client:        cfg.Client,
		handler:       cfg.Handler,
		observer:      cfg.Observer,
		logger:        cfg.Logger,
		stream:        cfg.Stream,
		group:         cfg.Group,
		consumer:      cfg.Consumer,
		deadLetter:    cfg.DeadLetterStream,
		workers:       cfg.Workers,
		batchSize:     cfg.BatchSize,
		block:         cfg.Block,
		claimInterval: cfg.ClaimInterval,
		minIdle:       cfg.MinIdle,
		maxDeliveries: cfg.MaxDeliveries,
	}
}

// EnsureGroup creates the consumer group (and stream) if missing.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s on %s: %w", c.group, c.stream, err)
	}
	return nil
}

// Start runs the workers and the reclaim loop until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}

	c.logger.Info().
		Str("stream", c.stream).
		Str("group", c.group).
		Int("workers", c.workers).
		Msg("stream consumer started")

	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < c.workers; i++ {
		name := fmt.Sprintf("%s-%d", c.consumer, i)
		g.Go(func() error {
			return c.work(ctx, name)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(c.claimInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if _, err := c.Reclaim(ctx); err != nil && ctx.Err() == nil {
					c.logger.Error().Err(err).Msg("reclaim pending messages failed")
				}
			}
		}
	})

	err := g.Wait()
	c.logger.Info().Msg("stream consumer shutting down")
	return err
}

func (c *Consumer) work(ctx context.Context, name string) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		if _, err := c.Poll(ctx, name); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error().Err(err).Str("consumer", name).Msg("read from stream failed")

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// Poll reads one batch of new messages as consumer name and processes them.
// It returns how many messages were read.
func (c *Consumer) Poll(ctx context.Context, name string) (int, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: name,
		Streams:  []string{c.stream, ">"},
		Count:    c.batchSize,
		Block:    c.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	n := 0
	for _, s := range streams {
		for _, msg := range s.Messages {
			n++
			c.process(ctx, msg)
		}
	}
	return n, nil
}

// Reclaim takes over messages pending longer than MinIdle. Messages delivered
// MaxDeliveries times are dead-lettered; the rest are processed again.
func (c *Consumer) Reclaim(ctx context.Context) (int, error) {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.stream,
		Group:  c.group,
		Idle:   c.minIdle,
		Start:  "-",
		End:    "+",
		Count:  c.batchSize,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("xpending %s: %w", c.stream, err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	var exhausted, retry []string
	for _, p := range pending {
		if p.RetryCount >= c.maxDeliveries {
			exhausted = append(exhausted, p.ID)
		} else {
			retry = append(retry, p.ID)
		}
	}

	reclaimer := c.consumer + "-reclaim"
	n := 0

	if len(exhausted) > 0 {
		msgs, err := c.claim(ctx, reclaimer, exhausted)
		if err != nil {
			return n, err
		}
		for _, msg := range msgs {
			n++
			c.deadLetterAndAck(ctx, msg, fmt.Sprintf("exceeded %d deliveries", c.maxDeliveries))
		}
	}

	if len(retry) > 0 {
		msgs, err := c.claim(ctx, reclaimer, retry)
		if err != nil {
			return n, err
		}
		for _, msg := range msgs {
			n++
			c.process(ctx, msg)
		}
	}

	return n, nil
}

func (c *Consumer) claim(ctx context.Context, name string, ids []string) ([]redis.XMessage, error) {
	msgs, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: name,
		MinIdle:  c.minIdle,
		Messages: ids,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xclaim %s: %w", c.stream, err)
	}
	return msgs, nil
}

func (c *Consumer) process(ctx context.Context, msg redis.XMessage) {
	log := c.logger.With().Str("message_id", msg.ID).Logger()

	raw, ok := msg.Values[FieldEnvelope].(string)
	if !ok {
		log.Error().Msg("stream message without envelope")
		c.deadLetterAndAck(ctx, msg, "missing envelope field")
		return
	}

	env, err := domain.ParseEnvelope([]byte(raw))
	if err != nil {
		log.Error().Err(err).Msg("malformed envelope")
		c.deadLetterAndAck(ctx, msg, err.Error())
		return
	}

	hctx := logger.WithCorrelationID(ctx, log, env.CorrelationID)

	_, err = c.handler.Handle(hctx, env)
	switch {
	case err == nil:
		c.ack(ctx, msg.ID)
	case domain.IsPermanent(err):
		c.deadLetterAndAck(ctx, msg, err.Error())
	default:
		log.Warn().Err(err).
			Str("event_id", env.EventID).
			Str("event_type", env.Type).
			Msg("projection failed, message left pending for redelivery")
	}
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, c.stream, c.group, id).Err(); err != nil {
		c.logger.Error().Err(err).Str("message_id", id).Msg("xack failed")
	}
}

func (c *Consumer) deadLetterAndAck(ctx context.Context, msg redis.XMessage, reason string) {
	values := make(map[string]any, len(msg.Values)+3)
	for k, v := range msg.Values {
		values[k] = v
	}
	values[FieldReason] = reason
	values[FieldSourceID] = msg.ID
	values[FieldStream] = c.stream

	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: c.deadLetter, Values: values}).Err(); err != nil {
		// Leave the message pending; the reclaim loop will try again.
		c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("dead-letter publish failed")
		return
	}

	if c.observer != nil {
		c.observer.MessageDeadLettered(deadLetterReason(reason))
	}
	c.logger.Error().
		Str("message_id", msg.ID).
		Str("dead_letter_stream", c.deadLetter).
		Str("reason", reason).
		Msg("message dead-lettered")

	c.ack(ctx, msg.ID)
}

// deadLetterReason keeps metric label cardinality bounded.
func deadLetterReason(reason string) string {
	switch {
	case strings.Contains(reason, "exceeded"):
		return "max_deliveries"
	case strings.Contains(reason, "envelope"), strings.Contains(reason, domain.ErrMalformedEvent.Error()):
		return "malformed"
	default:
		return "rejected"
	}
}

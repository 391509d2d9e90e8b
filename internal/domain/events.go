package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Event types emitted by the ledger entry service.
const (
	EventTypeEntryRegistered = "entry.registered"
	EventTypeEntryUpdated    = "entry.updated"
	EventTypeEntryDeleted    = "entry.deleted"
)

// Envelope is the serialized form of every consumed event.
type Envelope struct {
	OccurredAt    time.Time       `json:"occurred_at"`
	EventID       string          `json:"event_id"`
	Type          string          `json:"type"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventMeta is the envelope without its payload.
type EventMeta struct {
	OccurredAt    time.Time
	EventID       string
	Type          string
	CorrelationID string
}

// Meta returns the envelope metadata.
func (e Envelope) Meta() EventMeta {
	return EventMeta{
		OccurredAt:    e.OccurredAt,
		EventID:       e.EventID,
		Type:          e.Type,
		CorrelationID: e.CorrelationID,
	}
}

// EntryRegistered payload
type EntryRegistered struct {
	Date    time.Time       `json:"date"`
	EntryID string          `json:"entry_id"`
	Kind    EntryKind       `json:"kind"`
	Amount  decimal.Decimal `json:"amount"`
}

// Contribution returns the delta the new entry adds.
func (e EntryRegistered) Contribution() Adjustment {
	return NewAdjustment(e.Date, e.Kind, e.Amount)
}

// EntryUpdated payload
type EntryUpdated struct {
	EntryID string        `json:"entry_id"`
	Before  EntrySnapshot `json:"before"`
	After   EntrySnapshot `json:"after"`
}

// EntryDeleted payload
type EntryDeleted struct {
	Date    time.Time       `json:"date"`
	EntryID string          `json:"entry_id"`
	Kind    EntryKind       `json:"kind"`
	Amount  decimal.Decimal `json:"amount"`
}

// Contribution returns the delta the deleted entry had added.
func (e EntryDeleted) Contribution() Adjustment {
	return NewAdjustment(e.Date, e.Kind, e.Amount)
}

// NewEnvelope serializes payload into an envelope of the given type.
func NewEnvelope(eventID, eventType, correlationID string, occurredAt time.Time, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return Envelope{
		EventID:       eventID,
		Type:          eventType,
		CorrelationID: correlationID,
		OccurredAt:    occurredAt,
		Payload:       raw,
	}, nil
}

// Validate checks the fields every envelope must carry.
func (e Envelope) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("%w: missing event id", ErrMalformedEvent)
	}
	if err := ValidateEventID(e.EventID); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	switch e.Type {
	case EventTypeEntryRegistered, EventTypeEntryUpdated, EventTypeEntryDeleted:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventType, e.Type)
	}
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrMalformedEvent)
	}
	return nil
}

// DecodeInto unmarshals the payload into target.
func (e Envelope) DecodeInto(target any) error {
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMalformedEvent, e.Type, err)
	}
	return nil
}

// ParseEnvelope decodes and validates a serialized envelope.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

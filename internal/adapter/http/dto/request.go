package dto

import (
	"encoding/json"
	"time"

	"github.com/iho/goconsolidation/internal/domain"
)

// SubmitEventRequest represents an entry event posted over HTTP. EventID,
// CorrelationID and OccurredAt are filled in by the server when absent.
type SubmitEventRequest struct {
	EventID       string          `json:"event_id,omitempty"`
	Type          string          `json:"type"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	OccurredAt    *time.Time      `json:"occurred_at,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// ToEnvelope converts the request to a domain envelope.
func (r *SubmitEventRequest) ToEnvelope(newID func() string, correlationID string, now time.Time) domain.Envelope {
	env := domain.Envelope{
		EventID:       r.EventID,
		Type:          r.Type,
		CorrelationID: r.CorrelationID,
		OccurredAt:    now,
		Payload:       r.Payload,
	}
	if env.EventID == "" {
		env.EventID = newID()
	}
	if env.CorrelationID == "" {
		env.CorrelationID = correlationID
	}
	if r.OccurredAt != nil {
		env.OccurredAt = *r.OccurredAt
	}
	return env
}

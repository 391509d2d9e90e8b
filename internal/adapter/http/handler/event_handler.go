package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/iho/goconsolidation/internal/adapter/http/dto"
	"github.com/iho/goconsolidation/internal/domain"
	"github.com/iho/goconsolidation/internal/infrastructure/logger"
	"github.com/iho/goconsolidation/internal/usecase"
)

// EventService defines the behavior needed by EventHandler.
type EventService interface {
	Handle(ctx context.Context, env domain.Envelope) (*usecase.ProjectionResult, error)
}

// EventHandler ingests entry events synchronously.
type EventHandler struct {
	projectionUC EventService
	idGen        usecase.IDGenerator
	now          func() time.Time
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(projectionUC EventService, idGen usecase.IDGenerator) *EventHandler {
	return &EventHandler{
		projectionUC: projectionUC,
		idGen:        idGen,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Submit projects one event. Applied events answer 202, duplicates and
// no-ops 200, contract violations 422 and transient failures 503.
func (h *EventHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req dto.SubmitEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	env := req.ToEnvelope(h.idGen.Generate, logger.CorrelationID(r.Context()), h.now())

	result, err := h.projectionUC.Handle(r.Context(), env)
	if err != nil {
		status := mapDomainError(err)
		if status == http.StatusInternalServerError {
			status = http.StatusServiceUnavailable
		}
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", "1")
			logger.Ctx(r.Context()).Warn().Err(err).Str("event_id", env.EventID).Msg("event projection failed")
		}
		writeError(w, status, "failed to project event", err.Error())
		return
	}

	status := http.StatusOK
	if result.Outcome == usecase.OutcomeApplied {
		status = http.StatusAccepted
	}

	writeJSON(w, status, dto.EventResultFromUseCase(result))
}

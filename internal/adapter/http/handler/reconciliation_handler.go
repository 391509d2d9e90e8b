package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/iho/goconsolidation/internal/adapter/http/dto"
	"github.com/iho/goconsolidation/internal/domain"
	"github.com/iho/goconsolidation/internal/infrastructure/logger"
	"github.com/iho/goconsolidation/internal/usecase"
)

// Reconciler audits stored daily balances.
type Reconciler interface {
	ReconcileRange(ctx context.Context, start, end time.Time) (*usecase.ReconciliationReport, error)
}

// ReconciliationHandler exposes the daily balance audit.
type ReconciliationHandler struct {
	reconciler Reconciler
	maxDays    int
	now        func() time.Time
}

// NewReconciliationHandler creates a new ReconciliationHandler.
func NewReconciliationHandler(reconciler Reconciler, maxDays int) *ReconciliationHandler {
	if maxDays <= 0 {
		maxDays = 30
	}
	return &ReconciliationHandler{
		reconciler: reconciler,
		maxDays:    maxDays,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile checks ?start..?end. It answers 200 when every day is consistent
// and 409 with the discrepancies otherwise.
func (h *ReconciliationHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r, domain.NormalizeDate(h.now()), h.maxDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date range", err.Error())
		return
	}

	report, err := h.reconciler.ReconcileRange(r.Context(), start, end)
	if err != nil {
		status := mapDomainError(err)
		if status >= http.StatusInternalServerError {
			logger.Ctx(r.Context()).Error().Err(err).Msg("reconciliation failed")
		}
		writeError(w, status, "failed to reconcile", err.Error())
		return
	}

	status := http.StatusOK
	if !report.Consistent {
		status = http.StatusConflict
	}
	writeJSON(w, status, dto.ReconciliationFromUseCase(report))
}

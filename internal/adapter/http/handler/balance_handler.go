package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/goconsolidation/internal/adapter/http/dto"
	"github.com/iho/goconsolidation/internal/domain"
	"github.com/iho/goconsolidation/internal/infrastructure/logger"
	"github.com/iho/goconsolidation/internal/usecase"
)

// BalanceService defines the behavior needed by BalanceHandler.
type BalanceService interface {
	GetDailyBalance(ctx context.Context, date time.Time) (*domain.DailyBalance, error)
	GetRangeReport(ctx context.Context, input usecase.GetRangeReportInput) (*domain.RangeReport, error)
}

// BalanceHandler serves daily balances and range reports.
type BalanceHandler struct {
	balanceUC BalanceService
	maxDays   int
	now       func() time.Time
}

// NewBalanceHandler creates a new BalanceHandler. Reports may span at most maxDays days.
func NewBalanceHandler(balanceUC BalanceService, maxDays int) *BalanceHandler {
	if maxDays <= 0 {
		maxDays = 30
	}
	return &BalanceHandler{
		balanceUC: balanceUC,
		maxDays:   maxDays,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the balance of one day.
func (h *BalanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	date, err := domain.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err.Error())
		return
	}
	if date.After(h.today()) {
		writeError(w, http.StatusBadRequest, "invalid date", domain.ErrFutureDate.Error())
		return
	}

	balance, err := h.balanceUC.GetDailyBalance(r.Context(), date)
	if err != nil {
		status := mapDomainError(err)
		if status >= http.StatusInternalServerError {
			logger.Ctx(r.Context()).Error().Err(err).Str("date", date.Format(domain.DateLayout)).Msg("get daily balance failed")
		}
		writeError(w, status, "failed to get daily balance", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceFromDomain(balance))
}

// Report returns the consolidated report for ?start=YYYY-MM-DD&end=YYYY-MM-DD.
func (h *BalanceHandler) Report(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r, h.today(), h.maxDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date range", err.Error())
		return
	}

	report, err := h.balanceUC.GetRangeReport(r.Context(), usecase.GetRangeReportInput{
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		status := mapDomainError(err)
		if status >= http.StatusInternalServerError {
			logger.Ctx(r.Context()).Error().Err(err).Msg("range report failed")
		}
		writeError(w, status, "failed to build report", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ReportFromDomain(report))
}

// parseRange reads ?start and ?end and bounds them by today and maxDays.
func parseRange(r *http.Request, today time.Time, maxDays int) (time.Time, time.Time, error) {
	q := r.URL.Query()

	start, err := domain.ParseDate(q.Get("start"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start: %w", err)
	}
	end, err := domain.ParseDate(q.Get("end"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end: %w", err)
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, domain.ErrInvalidDateRange
	}
	if end.After(today) {
		return time.Time{}, time.Time{}, fmt.Errorf("end: %w", domain.ErrFutureDate)
	}
	if days := int(end.Sub(start).Hours()/24) + 1; days > maxDays {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %d days requested, at most %d", domain.ErrRangeTooLong, days, maxDays)
	}

	return start, end, nil
}

func (h *BalanceHandler) today() time.Time {
	return domain.NormalizeDate(h.now())
}

package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/goconsolidation/internal/domain"
	"github.com/iho/goconsolidation/internal/usecase"
)

// BalanceResponse represents a daily balance in API responses.
type BalanceResponse struct {
	Date         string          `json:"date"`
	TotalCredits decimal.Decimal `json:"total_credits"`
	TotalDebits  decimal.Decimal `json:"total_debits"`
	NetBalance   decimal.Decimal `json:"net_balance"`
	Version      int64           `json:"version"`
	LastUpdated  time.Time       `json:"last_updated"`
}

// BalanceFromDomain converts a domain daily balance to response.
func BalanceFromDomain(b *domain.DailyBalance) *BalanceResponse {
	return &BalanceResponse{
		Date:         b.Date.Format(domain.DateLayout),
		TotalCredits: b.TotalCredits,
		TotalDebits:  b.TotalDebits,
		NetBalance:   b.NetBalance,
		Version:      b.Version,
		LastUpdated:  b.LastUpdated,
	}
}

// ReportResponse represents a range report in API responses.
type ReportResponse struct {
	StartDate      string             `json:"start_date"`
	EndDate        string             `json:"end_date"`
	OpeningBalance decimal.Decimal    `json:"opening_balance"`
	TotalCredits   decimal.Decimal    `json:"total_credits"`
	TotalDebits    decimal.Decimal    `json:"total_debits"`
	ClosingBalance decimal.Decimal    `json:"closing_balance"`
	Days           []*BalanceResponse `json:"days"`
}

// ReportFromDomain converts a domain range report to response.
func ReportFromDomain(r *domain.RangeReport) *ReportResponse {
	days := make([]*BalanceResponse, len(r.Days))
	for i, d := range r.Days {
		days[i] = BalanceFromDomain(d)
	}

	return &ReportResponse{
		StartDate:      r.StartDate.Format(domain.DateLayout),
		EndDate:        r.EndDate.Format(domain.DateLayout),
		OpeningBalance: r.OpeningBalance,
		TotalCredits:   r.TotalCredits,
		TotalDebits:    r.TotalDebits,
		ClosingBalance: r.ClosingBalance,
		Days:           days,
	}
}

// LegResponse describes one leg of a projection plan.
type LegResponse struct {
	Action string          `json:"action"`
	Status string          `json:"status"`
	Date   string          `json:"date"`
	Kind   string          `json:"kind"`
	Amount decimal.Decimal `json:"amount"`
}

// EventResultResponse reports how a submitted event was projected.
type EventResultResponse struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	Outcome   string         `json:"outcome"`
	Attempts  int            `json:"attempts,omitempty"`
	Anomalies []string       `json:"anomalies,omitempty"`
	Legs      []*LegResponse `json:"legs,omitempty"`
}

// EventResultFromUseCase converts a projection result to response.
func EventResultFromUseCase(r *usecase.ProjectionResult) *EventResultResponse {
	resp := &EventResultResponse{
		EventID:   r.EventID,
		EventType: r.EventType,
		Outcome:   string(r.Outcome),
		Attempts:  r.Attempts,
	}
	for _, a := range r.Anomalies {
		resp.Anomalies = append(resp.Anomalies, a.Error())
	}
	if r.Plan != nil {
		for _, leg := range r.Plan.Legs {
			resp.Legs = append(resp.Legs, &LegResponse{
				Action: string(leg.Action),
				Status: string(leg.Status),
				Date:   leg.Adjustment.Date.Format(domain.DateLayout),
				Kind:   string(leg.Adjustment.Kind),
				Amount: leg.Adjustment.Amount,
			})
		}
	}
	return resp
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// DiscrepancyResponse describes one inconsistent day.
type DiscrepancyResponse struct {
	Date         string          `json:"date"`
	TotalCredits decimal.Decimal `json:"total_credits"`
	TotalDebits  decimal.Decimal `json:"total_debits"`
	NetBalance   decimal.Decimal `json:"net_balance"`
	Reason       string          `json:"reason"`
}

// ReconciliationResponse represents an audit run in API responses.
type ReconciliationResponse struct {
	StartDate     string                 `json:"start_date"`
	EndDate       string                 `json:"end_date"`
	CheckedDays   int                    `json:"checked_days"`
	Consistent    bool                   `json:"consistent"`
	Discrepancies []*DiscrepancyResponse `json:"discrepancies"`
	CheckedAt     time.Time              `json:"checked_at"`
}

// ReconciliationFromUseCase converts a reconciliation report to response.
func ReconciliationFromUseCase(r *usecase.ReconciliationReport) *ReconciliationResponse {
	resp := &ReconciliationResponse{
		StartDate:     r.StartDate.Format(domain.DateLayout),
		EndDate:       r.EndDate.Format(domain.DateLayout),
		CheckedDays:   r.CheckedDays,
		Consistent:    r.Consistent,
		Discrepancies: make([]*DiscrepancyResponse, 0, len(r.Discrepancies)),
		CheckedAt:     r.CheckedAt,
	}
	for _, d := range r.Discrepancies {
		resp.Discrepancies = append(resp.Discrepancies, &DiscrepancyResponse{
			Date:         d.Date.Format(domain.DateLayout),
			TotalCredits: d.TotalCredits,
			TotalDebits:  d.TotalDebits,
			NetBalance:   d.NetBalance,
			Reason:       d.Reason,
		})
	}
	return resp
}

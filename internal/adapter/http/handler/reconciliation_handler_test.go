package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/goconsolidation/internal/adapter/http/dto"
	"github.com/iho/goconsolidation/internal/usecase"
)

type reconcilerFunc func(ctx context.Context, start, end time.Time) (*usecase.ReconciliationReport, error)

func (f reconcilerFunc) ReconcileRange(ctx context.Context, start, end time.Time) (*usecase.ReconciliationReport, error) {
	return f(ctx, start, end)
}

func serveReconcile(fn reconcilerFunc, target string) *httptest.ResponseRecorder {
	h := NewReconciliationHandler(fn, 30)
	h.now = func() time.Time { return fixedNow }

	rec := httptest.NewRecorder()
	h.Reconcile(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestReconciliationHandler_Consistent(t *testing.T) {
	rec := serveReconcile(func(ctx context.Context, start, end time.Time) (*usecase.ReconciliationReport, error) {
		return &usecase.ReconciliationReport{StartDate: start, EndDate: end, CheckedDays: 3, Consistent: true}, nil
	}, "/balances/reconciliation?start=2024-03-01&end=2024-03-03")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp dto.ReconciliationResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Consistent || resp.CheckedDays != 3 || resp.StartDate != "2024-03-01" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestReconciliationHandler_Discrepancies(t *testing.T) {
	day := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	rec := serveReconcile(func(ctx context.Context, start, end time.Time) (*usecase.ReconciliationReport, error) {
		return &usecase.ReconciliationReport{
			StartDate:   start,
			EndDate:     end,
			CheckedDays: 1,
			Discrepancies: []usecase.Discrepancy{{
				Date:         day,
				TotalCredits: decimal.NewFromInt(10),
				NetBalance:   decimal.NewFromInt(9),
				Reason:       "net balance does not match credits minus debits",
			}},
		}, nil
	}, "/balances/reconciliation?start=2024-03-02&end=2024-03-02")

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var resp dto.ReconciliationResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Discrepancies) != 1 || resp.Discrepancies[0].Date != "2024-03-02" {
		t.Fatalf("unexpected discrepancies: %+v", resp.Discrepancies)
	}
}

func TestReconciliationHandler_BadRange(t *testing.T) {
	called := false
	fn := func(ctx context.Context, start, end time.Time) (*usecase.ReconciliationReport, error) {
		called = true
		return nil, nil
	}

	for _, target := range []string{
		"/balances/reconciliation?start=2024-03-05&end=2024-03-01",
		"/balances/reconciliation?start=2024-01-01&end=2024-03-01",
		"/balances/reconciliation?start=2024-03-01&end=2024-04-01",
		"/balances/reconciliation?start=bad&end=2024-03-01",
	} {
		if rec := serveReconcile(fn, target); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, rec.Code)
		}
	}
	if called {
		t.Fatal("reconciler must not be called for an invalid range")
	}
}

func TestReconciliationHandler_StoreError(t *testing.T) {
	rec := serveReconcile(func(ctx context.Context, start, end time.Time) (*usecase.ReconciliationReport, error) {
		return nil, errors.New("connection reset")
	}, "/balances/reconciliation?start=2024-03-01&end=2024-03-02")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

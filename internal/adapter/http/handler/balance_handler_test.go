package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/goconsolidation/internal/adapter/http/dto"
	"github.com/iho/goconsolidation/internal/domain"
	"github.com/iho/goconsolidation/internal/usecase"
)

type balanceServiceStub struct {
	getFn    func(ctx context.Context, date time.Time) (*domain.DailyBalance, error)
	reportFn func(ctx context.Context, input usecase.GetRangeReportInput) (*domain.RangeReport, error)
}

func (s *balanceServiceStub) GetDailyBalance(ctx context.Context, date time.Time) (*domain.DailyBalance, error) {
	return s.getFn(ctx, date)
}

func (s *balanceServiceStub) GetRangeReport(ctx context.Context, input usecase.GetRangeReportInput) (*domain.RangeReport, error) {
	return s.reportFn(ctx, input)
}

var fixedNow = time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

func newBalanceHandler(stub *balanceServiceStub) *BalanceHandler {
	h := NewBalanceHandler(stub, 30)
	h.now = func() time.Time { return fixedNow }
	return h
}

func serveBalance(h *BalanceHandler, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/balances/report", h.Report)
	r.Get("/balances/{date}", h.Get)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestBalanceHandler_Get_Success(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var captured time.Time

	h := newBalanceHandler(&balanceServiceStub{
		getFn: func(ctx context.Context, date time.Time) (*domain.DailyBalance, error) {
			captured = date
			b := domain.NewDailyBalance(date, fixedNow)
			_ = b.Apply(domain.EntryKindCredit, decimal.NewFromInt(100), fixedNow)
			b.Version = 1
			return b, nil
		},
	})

	rec := serveBalance(h, "/balances/2024-03-01")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !captured.Equal(day) {
		t.Fatalf("expected date %s, got %s", day, captured)
	}

	var resp dto.BalanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Date != "2024-03-01" || !resp.NetBalance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestBalanceHandler_Get_Errors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		want   int
	}{
		{name: "not found", target: "/balances/2024-03-01", err: domain.ErrDailyBalanceNotFound, want: http.StatusNotFound},
		{name: "store failure", target: "/balances/2024-03-01", err: errors.New("db down"), want: http.StatusInternalServerError},
		{name: "invalid date", target: "/balances/03-01-2024", want: http.StatusBadRequest},
		{name: "future date", target: "/balances/2024-03-16", want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newBalanceHandler(&balanceServiceStub{
				getFn: func(ctx context.Context, date time.Time) (*domain.DailyBalance, error) {
					if tt.err == nil {
						t.Fatalf("service must not be called")
					}
					return nil, tt.err
				},
			})

			rec := serveBalance(h, tt.target)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestBalanceHandler_Get_TodayIsAllowed(t *testing.T) {
	h := newBalanceHandler(&balanceServiceStub{
		getFn: func(ctx context.Context, date time.Time) (*domain.DailyBalance, error) {
			return domain.NewDailyBalance(date, fixedNow), nil
		},
	})

	if rec := serveBalance(h, "/balances/2024-03-15"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for today, got %d", rec.Code)
	}
}

func TestBalanceHandler_Report_Success(t *testing.T) {
	var captured usecase.GetRangeReportInput
	h := newBalanceHandler(&balanceServiceStub{
		reportFn: func(ctx context.Context, input usecase.GetRangeReportInput) (*domain.RangeReport, error) {
			captured = input
			return domain.NewRangeReport(input.StartDate, input.EndDate, decimal.NewFromInt(80), nil), nil
		},
	})

	rec := serveBalance(h, "/balances/report?start=2024-03-01&end=2024-03-10")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.StartDate.Format(domain.DateLayout) != "2024-03-01" || captured.EndDate.Format(domain.DateLayout) != "2024-03-10" {
		t.Fatalf("unexpected input: %+v", captured)
	}

	var resp dto.ReportResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.OpeningBalance.Equal(decimal.NewFromInt(80)) || !resp.ClosingBalance.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("unexpected balances: %+v", resp)
	}
	if len(resp.Days) != 0 {
		t.Fatalf("expected no days, got %d", len(resp.Days))
	}
}

func TestBalanceHandler_Report_Validation(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{name: "missing start", target: "/balances/report?end=2024-03-10"},
		{name: "bad end", target: "/balances/report?start=2024-03-01&end=tomorrow"},
		{name: "start after end", target: "/balances/report?start=2024-03-10&end=2024-03-01"},
		{name: "end in future", target: "/balances/report?start=2024-03-10&end=2024-03-16"},
		{name: "too long", target: "/balances/report?start=2024-02-01&end=2024-03-10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newBalanceHandler(&balanceServiceStub{
				reportFn: func(ctx context.Context, input usecase.GetRangeReportInput) (*domain.RangeReport, error) {
					t.Fatalf("service must not be called")
					return nil, nil
				},
			})

			if rec := serveBalance(h, tt.target); rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestBalanceHandler_Report_MaxWindowIsInclusive(t *testing.T) {
	h := newBalanceHandler(&balanceServiceStub{
		reportFn: func(ctx context.Context, input usecase.GetRangeReportInput) (*domain.RangeReport, error) {
			return domain.NewRangeReport(input.StartDate, input.EndDate, decimal.Zero, nil), nil
		},
	})

	// 2024-02-15 .. 2024-03-15 is 30 days inclusive.
	if rec := serveBalance(h, "/balances/report?start=2024-02-15&end=2024-03-15"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := serveBalance(h, "/balances/report?start=2024-02-14&end=2024-03-15"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for 31 days, got %d", rec.Code)
	}
}

package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseEntryKind(t *testing.T) {
	tests := []struct {
		in      string
		want    EntryKind
		wantErr bool
	}{
		{in: "Credit", want: EntryKindCredit},
		{in: "DEBIT", want: EntryKindDebit},
		{in: " debit ", want: EntryKindDebit},
		{in: "refund", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEntryKind(tt.in)
			if tt.wantErr {
				if err != ErrInvalidEntryKind {
					t.Fatalf("expected ErrInvalidEntryKind, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseEntryKind(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestEntrySnapshot_Comparison(t *testing.T) {
	base := EntrySnapshot{
		ID:          "entry-1",
		Amount:      decimal.NewFromInt(20),
		Kind:        EntryKindCredit,
		Date:        time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC),
		Description: "coffee beans",
		Category:    "supplies",
	}

	cosmetic := base
	cosmetic.Description = "coffee beans (2kg)"
	cosmetic.Category = "inventory"
	cosmetic.Date = base.Date.Add(3 * time.Hour)

	if base.Equal(cosmetic) {
		t.Fatal("snapshots with different descriptions must not be equal")
	}
	if !base.SameEconomics(cosmetic) {
		t.Fatal("cosmetic edit on the same day must keep the same economics")
	}

	moved := base
	moved.Date = base.Date.AddDate(0, 0, 1)
	if base.SameEconomics(moved) {
		t.Fatal("date change must change economics")
	}

	resized := base
	resized.Amount = decimal.RequireFromString("20.01")
	if base.SameEconomics(resized) {
		t.Fatal("amount change must change economics")
	}

	flipped := base
	flipped.Kind = EntryKindDebit
	if base.SameEconomics(flipped) {
		t.Fatal("kind change must change economics")
	}

	scaled := base
	scaled.Amount = decimal.RequireFromString("20.00")
	if !base.Equal(scaled) {
		t.Fatal("20 and 20.00 are the same amount")
	}
}

func TestEntrySnapshot_Contribution(t *testing.T) {
	s := EntrySnapshot{
		Amount: decimal.NewFromInt(7),
		Kind:   EntryKindDebit,
		Date:   time.Date(2025, 5, 20, 18, 45, 0, 0, time.UTC),
	}

	adj := s.Contribution()

	if !adj.Date.Equal(time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("contribution date not normalized: %s", adj.Date)
	}
	if adj.Kind != EntryKindDebit || !adj.Amount.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("unexpected contribution %+v", adj)
	}
	if err := adj.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestAdjustment_Validate(t *testing.T) {
	if err := NewAdjustment(testNow, "Other", decimal.NewFromInt(1)).Validate(); err != ErrInvalidEntryKind {
		t.Fatalf("expected ErrInvalidEntryKind, got %v", err)
	}
	if err := NewAdjustment(testNow, EntryKindCredit, decimal.Zero).Validate(); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := NewAdjustment(time.Time{}, EntryKindCredit, decimal.NewFromInt(1)).Validate(); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent for a missing date, got %v", err)
	}
}

func TestAdjustment_ValidateAt(t *testing.T) {
	today := NewAdjustment(testNow, EntryKindCredit, decimal.NewFromInt(1))
	if err := today.ValidateAt(testNow); err != nil {
		t.Fatalf("same day must be accepted: %v", err)
	}

	tomorrow := NewAdjustment(testNow.AddDate(0, 0, 1), EntryKindCredit, decimal.NewFromInt(1))
	err := tomorrow.ValidateAt(testNow)
	if !errors.Is(err, ErrFutureDate) {
		t.Fatalf("expected ErrFutureDate, got %v", err)
	}
	if !IsPermanent(err) {
		t.Fatal("future dated entries must not be retried")
	}
}

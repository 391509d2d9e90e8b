package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewRangeReport(t *testing.T) {
	day := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)
	mk := func(offset int, credits, debits int64) *DailyBalance {
		b := NewDailyBalance(day.AddDate(0, 0, offset), testNow)
		b.TotalCredits = decimal.NewFromInt(credits)
		b.TotalDebits = decimal.NewFromInt(debits)
		b.NetBalance = b.TotalCredits.Sub(b.TotalDebits)
		return b
	}

	t.Run("populated", func(t *testing.T) {
		days := []*DailyBalance{mk(0, 50, 10), mk(1, 30, 15), mk(2, 70, 25)}

		r := NewRangeReport(day, day.AddDate(0, 0, 2), decimal.NewFromInt(80), days)

		assert.True(t, r.OpeningBalance.Equal(decimal.NewFromInt(80)))
		assert.True(t, r.TotalCredits.Equal(decimal.NewFromInt(150)))
		assert.True(t, r.TotalDebits.Equal(decimal.NewFromInt(50)))
		assert.True(t, r.ClosingBalance.Equal(decimal.NewFromInt(180)))
		assert.Len(t, r.Days, 3)
	})

	t.Run("empty keeps opening", func(t *testing.T) {
		r := NewRangeReport(day, day, decimal.NewFromInt(-12), nil)

		assert.True(t, r.TotalCredits.IsZero())
		assert.True(t, r.TotalDebits.IsZero())
		assert.True(t, r.ClosingBalance.Equal(decimal.NewFromInt(-12)))
	})
}

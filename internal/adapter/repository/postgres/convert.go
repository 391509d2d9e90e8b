package postgres

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/goconsolidation/internal/domain"
	"github.com/iho/goconsolidation/internal/infrastructure/postgres/generated"
)

func rowToDailyBalance(row generated.DailyBalance) *domain.DailyBalance {
	return &domain.DailyBalance{
		Date:         domain.NormalizeDate(row.BalanceDate.Time),
		TotalCredits: numericToDecimal(row.TotalCredits),
		TotalDebits:  numericToDecimal(row.TotalDebits),
		NetBalance:   numericToDecimal(row.NetBalance),
		Version:      row.Version,
		LastUpdated:  row.LastUpdated.Time,
		CreatedAt:    row.CreatedAt.Time,
	}
}

// Type conversion helpers.
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{
		Int:   d.Coefficient(),
		Exp:   d.Exponent(),
		Valid: true,
	}
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func dateToPgDate(t time.Time) pgtype.Date {
	return pgtype.Date{Time: domain.NormalizeDate(t), Valid: true}
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

package services

import (
	"fmt"
	"time"

	"feeledger/internal/models"

	"github.com/shopspring/decimal"
)

const (
	DefaultReceiptPrefix = "RCP"
	maxReceiptAttempts   = 5
)

// civilDate drops the clock so day differences ignore time of day.
func civilDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysLate is the number of whole calendar days paidAt falls after dueDate,
// or zero when it is on or before it.
func DaysLate(dueDate *time.Time, paidAt time.Time) int {
	if dueDate == nil {
		return 0
	}
	days := int(civilDate(paidAt).Sub(civilDate(*dueDate)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// LateFee is the flat surcharge owed for one payment event: the structure's
// late fee once daysLate exceeds the grace period, zero otherwise.
func LateFee(structure *models.FeeStructure, dueDate *time.Time, paidAt time.Time) decimal.Decimal {
	if DaysLate(dueDate, paidAt) > structure.LateFeeGraceDays {
		return structure.LateFee
	}
	return decimal.Zero
}

// FormatReceiptNumber renders PREFIX-YEAR-SEQ, e.g. RCP-2024-000042.
func FormatReceiptNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s%06d", ReceiptSeries(prefix, year), seq)
}

// ReceiptSeries is the part of a receipt number shared by one tenant year.
func ReceiptSeries(prefix string, year int) string {
	return fmt.Sprintf("%s-%d-", prefix, year)
}

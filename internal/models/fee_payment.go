package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash          PaymentMethod = "cash"
	PaymentCard          PaymentMethod = "card"
	PaymentBankTransfer  PaymentMethod = "bank_transfer"
	PaymentOnline        PaymentMethod = "online"
	PaymentCheque        PaymentMethod = "cheque"
	PaymentMobileBanking PaymentMethod = "mobile_banking"
)

// PaymentMethods lists every accepted method.
var PaymentMethods = []PaymentMethod{
	PaymentCash, PaymentCard, PaymentBankTransfer, PaymentOnline, PaymentCheque, PaymentMobileBanking,
}

func (m PaymentMethod) Valid() bool {
	for _, known := range PaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "completed"
	PaymentReversed  PaymentStatus = "reversed"
)

// FeePayment is an immutable record of money collected against an allocation.
type FeePayment struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	TenantID      uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	StudentID     uuid.UUID       `json:"student_id" db:"student_id"`
	AllocationID  uuid.UUID       `json:"allocation_id" db:"allocation_id"`
	ReceiptNumber string          `json:"receipt_number" db:"receipt_number"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	LateFee       decimal.Decimal `json:"late_fee" db:"late_fee"`
	TotalAmount   decimal.Decimal `json:"total_amount" db:"total_amount"`
	PaymentMethod PaymentMethod   `json:"payment_method" db:"payment_method"`
	Status        PaymentStatus   `json:"status" db:"status"`
	CollectedBy   uuid.UUID       `json:"collected_by" db:"collected_by"`
	PaidAt        time.Time       `json:"paid_at" db:"paid_at"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// PaymentFilter narrows payment listings used for reports.
type PaymentFilter struct {
	AllocationID *uuid.UUID `json:"allocation_id"`
	StudentID    *uuid.UUID `json:"student_id"`
	From         *time.Time `json:"from"`
	To           *time.Time `json:"to"`
	Limit        int        `json:"limit"`
	Offset       int        `json:"offset"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AllocationStatus string

const (
	AllocationPending AllocationStatus = "pending"
	AllocationPaid    AllocationStatus = "paid"
)

// StudentFeeAllocation is one student's obligation under a fee structure.
// DueAmount is the remaining balance; Version guards balance writes.
type StudentFeeAllocation struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	TenantID       uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	StudentID      uuid.UUID       `json:"student_id" db:"student_id"`
	FeeStructureID uuid.UUID       `json:"fee_structure_id" db:"fee_structure_id"`
	AcademicYearID uuid.UUID       `json:"academic_year_id" db:"academic_year_id"`
	DueAmount      decimal.Decimal `json:"due_amount" db:"due_amount"`
	DueDate        *time.Time      `json:"due_date" db:"due_date"`
	Version        int64           `json:"version" db:"version"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

func (a *StudentFeeAllocation) Status() AllocationStatus {
	if a.DueAmount.Sign() <= 0 {
		return AllocationPaid
	}
	return AllocationPending
}

// IsOverdue reports whether a balance remains after the due date has passed.
func (a *StudentFeeAllocation) IsOverdue(asOf time.Time) bool {
	return a.Status() == AllocationPending && a.DueDate != nil && a.DueDate.Before(asOf)
}

// PendingFilter selects allocations with a remaining balance. When AsOf is set
// only allocations due strictly before it are returned.
type PendingFilter struct {
	AsOf           *time.Time `json:"as_of"`
	StudentID      *uuid.UUID `json:"student_id"`
	AcademicYearID *uuid.UUID `json:"academic_year_id"`
	Limit          int        `json:"limit"`
	Offset         int        `json:"offset"`
	// After resumes a (due_date, id) ordered scan past the given row. Rows
	// without a due date are excluded when it is set.
	After *AllocationCursor `json:"-"`
}

// AllocationCursor is a keyset position in the pending allocation order.
type AllocationCursor struct {
	DueDate time.Time
	ID      uuid.UUID
}

// StudentBalance summarises a student's allocations.
type StudentBalance struct {
	StudentID    uuid.UUID       `json:"student_id"`
	TotalDue     decimal.Decimal `json:"total_due"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	TotalLateFee decimal.Decimal `json:"total_late_fee"`
	Pending      int             `json:"pending"`
	Overdue      int             `json:"overdue"`
}

// OverdueSummary is the cached per-tenant overdue snapshot.
type OverdueSummary struct {
	TenantID      uuid.UUID       `json:"tenant_id"`
	OverdueCount  int             `json:"overdue_count"`
	OverdueAmount decimal.Decimal `json:"overdue_amount"`
	RefreshedAt   time.Time       `json:"refreshed_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FeeStructure prices a category for an academic year and, optionally, a class.
type FeeStructure struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	TenantID         uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	FeeCategoryID    uuid.UUID       `json:"fee_category_id" db:"fee_category_id"`
	AcademicYearID   uuid.UUID       `json:"academic_year_id" db:"academic_year_id"`
	ClassID          *uuid.UUID      `json:"class_id" db:"class_id"`
	Amount           decimal.Decimal `json:"amount" db:"amount"`
	DueDate          *time.Time      `json:"due_date" db:"due_date"`
	LateFee          decimal.Decimal `json:"late_fee" db:"late_fee"`
	LateFeeGraceDays int             `json:"late_fee_grace_days" db:"late_fee_grace_days"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// FeeStructureFilter narrows structure listings.
type FeeStructureFilter struct {
	FeeCategoryID  *uuid.UUID `json:"fee_category_id"`
	AcademicYearID *uuid.UUID `json:"academic_year_id"`
	ClassID        *uuid.UUID `json:"class_id"`
	Limit          int        `json:"limit"`
	Offset         int        `json:"offset"`
}

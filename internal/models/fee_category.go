package models

import (
	"time"

	"github.com/google/uuid"
)

type FeeFrequency string

const (
	FrequencyOneTime    FeeFrequency = "one_time"
	FrequencyMonthly    FeeFrequency = "monthly"
	FrequencyQuarterly  FeeFrequency = "quarterly"
	FrequencyHalfYearly FeeFrequency = "half_yearly"
	FrequencyYearly     FeeFrequency = "yearly"
)

// FeeCategory is a named kind of fee such as "Tuition" or "Transport".
type FeeCategory struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	TenantID    uuid.UUID    `json:"tenant_id" db:"tenant_id"`
	Name        string       `json:"name" db:"name"`
	Description *string      `json:"description" db:"description"`
	Frequency   FeeFrequency `json:"frequency" db:"frequency"`
	IsMandatory bool         `json:"is_mandatory" db:"is_mandatory"`
	DeletedAt   *time.Time   `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
}

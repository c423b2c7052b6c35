package common

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrConcurrencyConflict = errors.New("record was modified concurrently")
	ErrInUse               = errors.New("record is still referenced")
	ErrOverpayment         = errors.New("payment exceeds remaining balance")
	ErrDuplicate           = errors.New("record already exists")
)

// FieldError describes a problem with one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Fields []FieldError
}

func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NotFoundError is returned when a row is missing or belongs to another tenant.
type NotFoundError struct {
	Resource string
	ID       string
}

func NewNotFound(resource string, id uuid.UUID) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id.String()}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

type OverpaymentError struct {
	Amount decimal.Decimal
	Due    decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %s exceeds remaining balance of %s", e.Amount.StringFixed(2), e.Due.StringFixed(2))
}

func (e *OverpaymentError) Is(target error) bool {
	return target == ErrOverpayment
}

// ReceiptGenerationError means no unused receipt number was found in time.
type ReceiptGenerationError struct {
	Attempts int
	Last     string
}

func (e *ReceiptGenerationError) Error() string {
	return fmt.Sprintf("could not allocate a unique receipt number after %d attempts (last tried %s)", e.Attempts, e.Last)
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

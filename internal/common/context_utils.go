package common

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

func CreateErrorResponse(code string, message string, details map[string]string) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	return &resp
}

func SendValidationError(c echo.Context, field, message string) error {
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("VALIDATION_ERROR", "Validation failed", map[string]string{field: message}))
}

func SendClientError(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("CLIENT_ERROR", message, nil))
}

func SendUnauthorizedError(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, CreateErrorResponse("UNAUTHORIZED", message, nil))
}

// SendError maps ledger errors onto HTTP responses. Unknown errors are logged
// and reported without detail.
func SendError(c echo.Context, err error) error {
	var (
		validation  *ValidationError
		notFound    *NotFoundError
		overpayment *OverpaymentError
		receipt     *ReceiptGenerationError
	)
	switch {
	case errors.As(err, &validation):
		details := make(map[string]string, len(validation.Fields))
		for _, f := range validation.Fields {
			details[f.Field] = f.Message
		}
		return c.JSON(http.StatusBadRequest, CreateErrorResponse("VALIDATION_ERROR", "Validation failed", details))
	case errors.As(err, &notFound):
		return c.JSON(http.StatusNotFound, CreateErrorResponse("NOT_FOUND", notFound.Error(), nil))
	case errors.As(err, &overpayment):
		return c.JSON(http.StatusUnprocessableEntity, CreateErrorResponse("OVERPAYMENT", overpayment.Error(), map[string]string{
			"amount":     overpayment.Amount.StringFixed(2),
			"due_amount": overpayment.Due.StringFixed(2),
		}))
	case errors.Is(err, ErrConcurrencyConflict):
		return c.JSON(http.StatusConflict, CreateErrorResponse("CONFLICT", "Record changed, retry the request", nil))
	case errors.Is(err, ErrDuplicate):
		return c.JSON(http.StatusConflict, CreateErrorResponse("DUPLICATE", err.Error(), nil))
	case errors.Is(err, ErrInUse):
		return c.JSON(http.StatusConflict, CreateErrorResponse("IN_USE", err.Error(), nil))
	case errors.As(err, &receipt):
		log.Errorf("receipt generation: %v", err)
		return c.JSON(http.StatusServiceUnavailable, CreateErrorResponse("RECEIPT_UNAVAILABLE", "Could not allocate a receipt number, retry the request", nil))
	}
	log.Errorf("%s %s: %+v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, CreateErrorResponse("SERVER_ERROR", "Operation could not be completed", nil))
}

// ValidateUUID parses a path or body identifier.
func ValidateUUID(idStr string, fieldName string) (uuid.UUID, error) {
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		return uuid.Nil, fmt.Errorf("%s is required", fieldName)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s is not a valid UUID", fieldName)
	}
	return id, nil
}

// ParseOptionalUUID returns nil for an empty value.
func ParseOptionalUUID(idStr string, fieldName string) (*uuid.UUID, error) {
	if strings.TrimSpace(idStr) == "" {
		return nil, nil
	}
	id, err := ValidateUUID(idStr, fieldName)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// ParseOptionalDate parses YYYY-MM-DD, returning nil for an empty value.
func ParseOptionalDate(dateStr, fieldName string) (*time.Time, error) {
	if strings.TrimSpace(dateStr) == "" {
		return nil, nil
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, fmt.Errorf("%s must be in YYYY-MM-DD format", fieldName)
	}
	return &date, nil
}

// ValidatePaginationParams clamps limit to [1, 1000] and offset to >= 0.
func ValidatePaginationParams(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"feeledger/internal/caching"
	"feeledger/internal/common"
	"feeledger/internal/middleware"
	"feeledger/internal/models"
	"feeledger/internal/services"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// FeeLedgerHandlers exposes payments, allocations and reports.
type FeeLedgerHandlers struct {
	ledger   services.FeeLedgerService
	reports  services.ReportService
	archiver services.ReceiptArchiver
	cache    caching.CacheService
}

// NewFeeLedgerHandlers wires the handlers. archiver and cache may be nil.
func NewFeeLedgerHandlers(ledger services.FeeLedgerService, reports services.ReportService, archiver services.ReceiptArchiver, cache caching.CacheService) *FeeLedgerHandlers {
	return &FeeLedgerHandlers{ledger: ledger, reports: reports, archiver: archiver, cache: cache}
}

type pageQuery struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// RecordPayment handles POST /payments
func (h *FeeLedgerHandlers) RecordPayment(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}

	var cmd services.RecordPaymentCommand
	if err := c.Bind(&cmd); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	result, err := h.ledger.RecordPayment(c.Request().Context(), scope, &cmd)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusCreated, result)
}

// ListPendingAllocations handles GET /allocations/pending. as_of (YYYY-MM-DD)
// restricts the list to allocations overdue on that date.
func (h *FeeLedgerHandlers) ListPendingAllocations(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}

	var page pageQuery
	if err := c.Bind(&page); err != nil {
		return common.SendClientError(c, "Invalid query parameters")
	}
	asOf, err := common.ParseOptionalDate(c.QueryParam("as_of"), "as_of")
	if err != nil {
		return common.SendValidationError(c, "as_of", err.Error())
	}
	studentID, err := common.ParseOptionalUUID(c.QueryParam("student_id"), "student_id")
	if err != nil {
		return common.SendValidationError(c, "student_id", err.Error())
	}
	yearID, err := common.ParseOptionalUUID(c.QueryParam("academic_year_id"), "academic_year_id")
	if err != nil {
		return common.SendValidationError(c, "academic_year_id", err.Error())
	}

	filter := &models.PendingFilter{
		AsOf:           asOf,
		StudentID:      studentID,
		AcademicYearID: yearID,
		Limit:          page.Limit,
		Offset:         page.Offset,
	}
	allocations, err := h.ledger.ListPendingAllocations(c.Request().Context(), scope, filter)
	if err != nil {
		return common.SendError(c, err)
	}
	limit, offset := common.ValidatePaginationParams(page.Limit, page.Offset)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"allocations": allocations,
		"limit":       limit,
		"offset":      offset,
	})
}

func (h *FeeLedgerHandlers) GetAllocation(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	allocation, err := h.ledger.GetAllocation(c.Request().Context(), scope, id)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, allocation)
}

func (h *FeeLedgerHandlers) ListAllocationPayments(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}
	var page pageQuery
	if err := c.Bind(&page); err != nil {
		return common.SendClientError(c, "Invalid query parameters")
	}

	payments, err := h.ledger.ListPaymentsForAllocation(c.Request().Context(), scope, id, page.Limit, page.Offset)
	if err != nil {
		return common.SendError(c, err)
	}
	if payments == nil {
		payments = []*models.FeePayment{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"payments": payments})
}

// AssignStructure handles POST /fee-structures/:id/allocations
func (h *FeeLedgerHandlers) AssignStructure(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var cmd services.AssignStructureCommand
	if err := c.Bind(&cmd); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	cmd.FeeStructureID = id

	allocations, err := h.ledger.AssignStructure(c.Request().Context(), scope, &cmd)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"allocations": allocations})
}

// AssignStructureFromRoster accepts an xlsx upload (form field "file") whose
// first column lists student ids.
func (h *FeeLedgerHandlers) AssignStructureFromRoster(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return common.SendValidationError(c, "file", "file is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return common.SendClientError(c, "Could not read uploaded file")
	}
	defer file.Close()

	studentIDs, err := h.reports.ParseStudentRoster(file)
	if err != nil {
		return common.SendError(c, err)
	}
	allocations, err := h.ledger.AssignStructure(c.Request().Context(), scope, &services.AssignStructureCommand{
		FeeStructureID: id,
		StudentIDs:     studentIDs,
	})
	if err != nil {
		return common.SendError(c, err)
	}
	log.Infof("assigned fee structure %s to %d students from %s", id, len(allocations), fileHeader.Filename)
	return c.JSON(http.StatusCreated, map[string]interface{}{"allocations": allocations})
}

func (h *FeeLedgerHandlers) GetPayment(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	payment, err := h.ledger.GetPayment(c.Request().Context(), scope, id)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, payment)
}

// GetPaymentByReceipt handles GET /receipts/:number
func (h *FeeLedgerHandlers) GetPaymentByReceipt(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	number := strings.TrimSpace(c.Param("number"))

	payment, err := h.ledger.GetPaymentByReceipt(c.Request().Context(), scope, number)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, payment)
}

// GetReceiptURL returns a short-lived download link for the archived PDF.
func (h *FeeLedgerHandlers) GetReceiptURL(c echo.Context) error {
	if h.archiver == nil {
		return c.JSON(http.StatusNotImplemented, common.CreateErrorResponse("NOT_CONFIGURED", "Receipt archive is not configured", nil))
	}
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	payment, err := h.ledger.GetPayment(c.Request().Context(), scope, id)
	if err != nil {
		return common.SendError(c, err)
	}
	url, err := h.archiver.PresignedURL(c.Request().Context(), payment)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"receipt_number": payment.ReceiptNumber, "url": url})
}

func (h *FeeLedgerHandlers) StudentBalance(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	studentID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}
	asOf, err := common.ParseOptionalDate(c.QueryParam("as_of"), "as_of")
	if err != nil {
		return common.SendValidationError(c, "as_of", err.Error())
	}
	var at time.Time
	if asOf != nil {
		at = *asOf
	}

	balance, err := h.ledger.StudentBalance(c.Request().Context(), scope, studentID, at)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, balance)
}

// ExportCollections handles GET /reports/collections?from=YYYY-MM-DD&to=YYYY-MM-DD.
// Both bounds are inclusive dates.
func (h *FeeLedgerHandlers) ExportCollections(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	from, err := common.ParseOptionalDate(c.QueryParam("from"), "from")
	if err != nil || from == nil {
		return common.SendValidationError(c, "from", "from must be in YYYY-MM-DD format")
	}
	to, err := common.ParseOptionalDate(c.QueryParam("to"), "to")
	if err != nil || to == nil {
		return common.SendValidationError(c, "to", "to must be in YYYY-MM-DD format")
	}

	data, err := h.reports.ExportCollections(c.Request().Context(), scope, *from, to.AddDate(0, 0, 1))
	if err != nil {
		return common.SendError(c, err)
	}
	filename := fmt.Sprintf("collections_%s_%s.xlsx", from.Format("20060102"), to.Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, xlsxContentType, data)
}

// OverdueSummary returns the snapshot maintained by the background job.
func (h *FeeLedgerHandlers) OverdueSummary(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	if scope.IsPlatform() {
		return common.SendClientError(c, "overdue summary is per tenant")
	}
	if h.cache == nil {
		return c.JSON(http.StatusNotImplemented, common.CreateErrorResponse("NOT_CONFIGURED", "Cache is not configured", nil))
	}

	summary, err := h.cache.GetOverdueSummary(c.Request().Context(), scope.TenantID)
	if err != nil {
		return common.SendError(c, err)
	}
	if summary == nil {
		return c.JSON(http.StatusAccepted, map[string]string{"status": "pending", "message": "Summary has not been computed yet"})
	}
	return c.JSON(http.StatusOK, summary)
}

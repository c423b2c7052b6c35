package handlers

import (
	"net/http"
	"time"

	"feeledger/internal/common"
	"feeledger/internal/middleware"
	"feeledger/internal/models"
	"feeledger/internal/services"

	"github.com/labstack/echo/v4"
)

// AuditLogsHandlers serves the payment audit trail.
type AuditLogsHandlers struct {
	auditLogsService services.AuditLogsService
}

func NewAuditLogsHandlers(auditLogsService services.AuditLogsService) *AuditLogsHandlers {
	return &AuditLogsHandlers{auditLogsService: auditLogsService}
}

func optionalQuery(c echo.Context, name string) *string {
	if v := c.QueryParam(name); v != "" {
		return &v
	}
	return nil
}

// parseTimestamp accepts RFC3339 or a plain date.
func parseTimestamp(value, field string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	return common.ParseOptionalDate(value, field)
}

// ListAuditLogs handles GET /audit-logs
func (h *AuditLogsHandlers) ListAuditLogs(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	var page pageQuery
	if err := c.Bind(&page); err != nil {
		return common.SendClientError(c, "Invalid query parameters")
	}

	filter := &models.AuditLogFilter{
		TableName: optionalQuery(c, "table"),
		RecordID:  optionalQuery(c, "record_id"),
		Action:    optionalQuery(c, "action"),
		Limit:     page.Limit,
		Offset:    page.Offset,
	}
	if filter.ChangedBy, err = common.ParseOptionalUUID(c.QueryParam("user_id"), "user_id"); err != nil {
		return common.SendValidationError(c, "user_id", err.Error())
	}
	if filter.StartDate, err = parseTimestamp(c.QueryParam("start_date"), "start_date"); err != nil {
		return common.SendValidationError(c, "start_date", err.Error())
	}
	if filter.EndDate, err = parseTimestamp(c.QueryParam("end_date"), "end_date"); err != nil {
		return common.SendValidationError(c, "end_date", err.Error())
	}

	logs, err := h.auditLogsService.ListAuditLogs(c.Request().Context(), scope, filter)
	if err != nil {
		return common.SendError(c, err)
	}
	if logs == nil {
		logs = []*models.AuditLog{}
	}
	limit, offset := common.ValidatePaginationParams(page.Limit, page.Offset)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"audit_logs": logs,
		"limit":      limit,
		"offset":     offset,
	})
}

// GetAuditLog handles GET /audit-logs/:id
func (h *AuditLogsHandlers) GetAuditLog(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	entry, err := h.auditLogsService.GetAuditLog(c.Request().Context(), scope, id)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, entry)
}

// GetEntityHistory handles GET /audit-logs/history/:table/:record_id
func (h *AuditLogsHandlers) GetEntityHistory(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	var page pageQuery
	if err := c.Bind(&page); err != nil {
		return common.SendClientError(c, "Invalid query parameters")
	}

	logs, err := h.auditLogsService.GetEntityHistory(c.Request().Context(), scope, c.Param("table"), c.Param("record_id"), page.Limit, page.Offset)
	if err != nil {
		return common.SendError(c, err)
	}
	if logs == nil {
		logs = []*models.AuditLog{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"audit_logs": logs})
}

// GetAuditSummary handles GET /audit-logs/summary. The window defaults to the
// last 30 days.
func (h *AuditLogsHandlers) GetAuditSummary(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -30)
	if t, err := parseTimestamp(c.QueryParam("start_date"), "start_date"); err != nil {
		return common.SendValidationError(c, "start_date", err.Error())
	} else if t != nil {
		start = *t
	}
	if t, err := parseTimestamp(c.QueryParam("end_date"), "end_date"); err != nil {
		return common.SendValidationError(c, "end_date", err.Error())
	} else if t != nil {
		end = *t
	}

	summary, err := h.auditLogsService.GetAuditSummary(c.Request().Context(), scope, start, end)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

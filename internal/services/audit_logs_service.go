package services

import (
	"context"
	"time"

	"feeledger/internal/common"
	"feeledger/internal/models"
	"feeledger/internal/repositories"
	"feeledger/internal/tenant"

	"github.com/google/uuid"
)

const maxAuditWindow = 365 * 24 * time.Hour

// AuditLogsService reads the ledger's audit trail.
type AuditLogsService interface {
	GetAuditLog(ctx context.Context, scope tenant.Context, id uuid.UUID) (*models.AuditLog, error)
	ListAuditLogs(ctx context.Context, scope tenant.Context, filter *models.AuditLogFilter) ([]*models.AuditLog, error)
	GetEntityHistory(ctx context.Context, scope tenant.Context, tableName, recordID string, limit, offset int) ([]*models.AuditLog, error)
	GetAuditSummary(ctx context.Context, scope tenant.Context, startDate, endDate time.Time) (*models.AuditLogSummary, error)
}

type auditLogsService struct {
	auditLogsRepo repositories.AuditLogsRepository
}

func NewAuditLogsService(auditLogsRepo repositories.AuditLogsRepository) AuditLogsService {
	return &auditLogsService{auditLogsRepo: auditLogsRepo}
}

func validateAuditWindow(start, end *time.Time) error {
	if start == nil || end == nil {
		return nil
	}
	if start.After(*end) {
		return common.NewValidationError(common.FieldError{Field: "start_date", Message: "start_date cannot be after end_date"})
	}
	if end.Sub(*start) > maxAuditWindow {
		return common.NewValidationError(common.FieldError{Field: "end_date", Message: "date range cannot exceed 1 year"})
	}
	return nil
}

func (s *auditLogsService) GetAuditLog(ctx context.Context, scope tenant.Context, id uuid.UUID) (*models.AuditLog, error) {
	return s.auditLogsRepo.GetByID(ctx, scope, id)
}

func (s *auditLogsService) ListAuditLogs(ctx context.Context, scope tenant.Context, filter *models.AuditLogFilter) ([]*models.AuditLog, error) {
	f := models.AuditLogFilter{}
	if filter != nil {
		f = *filter
	}
	if err := validateAuditWindow(f.StartDate, f.EndDate); err != nil {
		return nil, err
	}
	f.Limit, f.Offset = common.ValidatePaginationParams(f.Limit, f.Offset)
	return s.auditLogsRepo.List(ctx, scope, &f)
}

// GetEntityHistory lists the entries recorded for one row, newest first.
func (s *auditLogsService) GetEntityHistory(ctx context.Context, scope tenant.Context, tableName, recordID string, limit, offset int) ([]*models.AuditLog, error) {
	if tableName == "" || recordID == "" {
		return nil, common.NewValidationError(common.FieldError{Field: "record_id", Message: "table and record_id are required"})
	}
	return s.ListAuditLogs(ctx, scope, &models.AuditLogFilter{TableName: &tableName, RecordID: &recordID, Limit: limit, Offset: offset})
}

func (s *auditLogsService) GetAuditSummary(ctx context.Context, scope tenant.Context, startDate, endDate time.Time) (*models.AuditLogSummary, error) {
	if err := validateAuditWindow(&startDate, &endDate); err != nil {
		return nil, err
	}
	return s.auditLogsRepo.GetSummary(ctx, scope, startDate, endDate)
}

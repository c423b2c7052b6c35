package inmemdb

import (
	"context"
	"sort"
	"time"

	"feeledger/internal/common"
	"feeledger/internal/models"
	"feeledger/internal/repositories"
	"feeledger/internal/tenant"

	"github.com/google/uuid"
)

type auditLogsRepository struct {
	db *DB
}

func NewAuditLogsRepository(db *DB) repositories.AuditLogsRepository {
	return &auditLogsRepository{db: db}
}

func (repo *auditLogsRepository) GetByID(_ context.Context, scope tenant.Context, id uuid.UUID) (*models.AuditLog, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	for _, entry := range repo.db.auditLogs {
		if entry.ID == id && scope.Allows(entry.TenantID) {
			cp := *entry
			return &cp, nil
		}
	}
	return nil, common.NewNotFound("audit log", id)
}

func matchesAudit(entry *models.AuditLog, f *models.AuditLogFilter) bool {
	switch {
	case f.TableName != nil && entry.TableName != *f.TableName:
		return false
	case f.RecordID != nil && entry.RecordID != *f.RecordID:
		return false
	case f.Action != nil && entry.Action != *f.Action:
		return false
	case f.ChangedBy != nil && (entry.ChangedBy == nil || *entry.ChangedBy != *f.ChangedBy):
		return false
	case f.StartDate != nil && entry.CreatedAt.Before(*f.StartDate):
		return false
	case f.EndDate != nil && entry.CreatedAt.After(*f.EndDate):
		return false
	}
	return true
}

func (repo *auditLogsRepository) List(_ context.Context, scope tenant.Context, f *models.AuditLogFilter) ([]*models.AuditLog, error) {
	if f == nil {
		f = &models.AuditLogFilter{}
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	var out []*models.AuditLog
	for _, entry := range repo.db.auditLogs {
		if scope.Allows(entry.TenantID) && matchesAudit(entry, f) {
			cp := *entry
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), nil
}

func (repo *auditLogsRepository) GetSummary(_ context.Context, scope tenant.Context, startDate, endDate time.Time) (*models.AuditLogSummary, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	summary := &models.AuditLogSummary{
		TableBreakdown:  make(map[string]int),
		ActionBreakdown: make(map[string]int),
		StartDate:       startDate,
		EndDate:         endDate,
	}
	for _, entry := range repo.db.auditLogs {
		if !scope.Allows(entry.TenantID) || entry.CreatedAt.Before(startDate) || entry.CreatedAt.After(endDate) {
			continue
		}
		summary.TotalLogs++
		summary.TableBreakdown[entry.TableName]++
		summary.ActionBreakdown[entry.Action]++
	}
	return summary, nil
}

package repositories

import (
	"context"
	"encoding/json"
	"time"

	"feeledger/internal/models"
	"feeledger/internal/tenant"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// AuditLogsRepository reads the audit trail. Entries are written only inside
// payment transactions (see PaymentTx.InsertAuditLog).
type AuditLogsRepository interface {
	GetByID(ctx context.Context, scope tenant.Context, id uuid.UUID) (*models.AuditLog, error)
	List(ctx context.Context, scope tenant.Context, filter *models.AuditLogFilter) ([]*models.AuditLog, error)
	GetSummary(ctx context.Context, scope tenant.Context, startDate, endDate time.Time) (*models.AuditLogSummary, error)
}

const auditLogColumns = `id, tenant_id, table_name, record_id, action, new_values, changed_by, created_at`

type auditLogsRepo struct {
	db DBTX
}

func NewAuditLogsRepo(db DBTX) AuditLogsRepository {
	return &auditLogsRepo{db: db}
}

func scanAuditLog(row pgx.Row) (*models.AuditLog, error) {
	entry := &models.AuditLog{}
	var newValues []byte
	if err := row.Scan(&entry.ID, &entry.TenantID, &entry.TableName, &entry.RecordID, &entry.Action, &newValues, &entry.ChangedBy, &entry.CreatedAt); err != nil {
		return nil, err
	}
	if len(newValues) > 0 {
		if err := json.Unmarshal(newValues, &entry.NewValues); err != nil {
			return nil, errors.Wrap(err, "unmarshal new_values")
		}
	}
	return entry, nil
}

func (r *auditLogsRepo) GetByID(ctx context.Context, scope tenant.Context, id uuid.UUID) (*models.AuditLog, error) {
	args := []interface{}{id}
	filter, args := scope.Filter("tenant_id", args)
	entry, err := scanAuditLog(r.db.QueryRow(ctx, `SELECT `+auditLogColumns+` FROM audit_logs WHERE id = $1`+filter, args...))
	if err != nil {
		return nil, notFound(err, "audit log", id)
	}
	return entry, nil
}

func (r *auditLogsRepo) List(ctx context.Context, scope tenant.Context, f *models.AuditLogFilter) ([]*models.AuditLog, error) {
	if f == nil {
		f = &models.AuditLogFilter{}
	}
	filter, args := scope.Filter("tenant_id", nil)
	query := `SELECT ` + auditLogColumns + ` FROM audit_logs WHERE TRUE` + filter

	var p string
	if f.TableName != nil {
		p, args = placeholder(args, *f.TableName)
		query += ` AND table_name = ` + p
	}
	if f.RecordID != nil {
		p, args = placeholder(args, *f.RecordID)
		query += ` AND record_id = ` + p
	}
	if f.Action != nil {
		p, args = placeholder(args, *f.Action)
		query += ` AND action = ` + p
	}
	if f.ChangedBy != nil {
		p, args = placeholder(args, *f.ChangedBy)
		query += ` AND changed_by = ` + p
	}
	if f.StartDate != nil {
		p, args = placeholder(args, *f.StartDate)
		query += ` AND created_at >= ` + p
	}
	if f.EndDate != nil {
		p, args = placeholder(args, *f.EndDate)
		query += ` AND created_at <= ` + p
	}
	query, args = paginate(query+` ORDER BY created_at DESC, id`, args, f.Limit, f.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list audit logs")
	}
	defer rows.Close()

	var entries []*models.AuditLog
	for rows.Next() {
		entry, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *auditLogsRepo) GetSummary(ctx context.Context, scope tenant.Context, startDate, endDate time.Time) (*models.AuditLogSummary, error) {
	filter, args := scope.Filter("tenant_id", []interface{}{startDate, endDate})
	query := `SELECT table_name, action, COUNT(*) FROM audit_logs WHERE created_at BETWEEN $1 AND $2` + filter + ` GROUP BY table_name, action`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "summarise audit logs")
	}
	defer rows.Close()

	summary := &models.AuditLogSummary{
		TableBreakdown:  make(map[string]int),
		ActionBreakdown: make(map[string]int),
		StartDate:       startDate,
		EndDate:         endDate,
	}
	for rows.Next() {
		var table, action string
		var count int
		if err := rows.Scan(&table, &action, &count); err != nil {
			return nil, err
		}
		summary.TotalLogs += count
		summary.TableBreakdown[table] += count
		summary.ActionBreakdown[action] += count
	}
	return summary, rows.Err()
}

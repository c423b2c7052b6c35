package repositories

import (
	"context"

	"feeledger/internal/models"
	"feeledger/internal/tenant"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

type AllocationRepository interface {
	CreateMany(ctx context.Context, allocations []*models.StudentFeeAllocation) ([]*models.StudentFeeAllocation, error)
	GetByID(ctx context.Context, scope tenant.Context, id uuid.UUID) (*models.StudentFeeAllocation, error)
	ListPending(ctx context.Context, scope tenant.Context, filter *models.PendingFilter) ([]*models.StudentFeeAllocation, error)
	ListByStudent(ctx context.Context, scope tenant.Context, studentID uuid.UUID) ([]*models.StudentFeeAllocation, error)
	CountByStructure(ctx context.Context, scope tenant.Context, structureID uuid.UUID) (int, error)
}

const allocationColumns = `id, tenant_id, student_id, fee_structure_id, academic_year_id, due_amount, due_date, version, created_at, updated_at`

type allocationRepo struct {
	db TxDB
}

func NewAllocationRepo(db TxDB) AllocationRepository {
	return &allocationRepo{db: db}
}

func scanAllocation(row pgx.Row) (*models.StudentFeeAllocation, error) {
	a := &models.StudentFeeAllocation{}
	err := row.Scan(&a.ID, &a.TenantID, &a.StudentID, &a.FeeStructureID, &a.AcademicYearID, &a.DueAmount, &a.DueDate, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func collectAllocations(rows pgx.Rows) ([]*models.StudentFeeAllocation, error) {
	defer rows.Close()
	var allocations []*models.StudentFeeAllocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

// CreateMany inserts all allocations in one transaction and returns the ones
// actually stored. A student already allocated to the same structure is
// skipped.
func (r *allocationRepo) CreateMany(ctx context.Context, allocations []*models.StudentFeeAllocation) (created []*models.StudentFeeAllocation, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin allocation insert")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	query := `INSERT INTO student_fee_allocations (` + allocationColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) ON CONFLICT (tenant_id, student_id, fee_structure_id) DO NOTHING RETURNING id`
	created = make([]*models.StudentFeeAllocation, 0, len(allocations))
	for _, a := range allocations {
		var id uuid.UUID
		err = tx.QueryRow(ctx, query, a.ID, a.TenantID, a.StudentID, a.FeeStructureID, a.AcademicYearID, a.DueAmount, a.DueDate, a.Version, a.CreatedAt, a.UpdatedAt).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			err = nil
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "insert allocation")
		}
		created = append(created, a)
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit allocation insert")
	}
	return created, nil
}

func (r *allocationRepo) GetByID(ctx context.Context, scope tenant.Context, id uuid.UUID) (*models.StudentFeeAllocation, error) {
	args := []interface{}{id}
	filter, args := scope.Filter("tenant_id", args)
	query := `SELECT ` + allocationColumns + ` FROM student_fee_allocations WHERE id = $1` + filter
	a, err := scanAllocation(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, notFound(err, "allocation", id)
	}
	return a, nil
}

// ListPending returns allocations with a remaining balance in a stable order.
func (r *allocationRepo) ListPending(ctx context.Context, scope tenant.Context, f *models.PendingFilter) ([]*models.StudentFeeAllocation, error) {
	if f == nil {
		f = &models.PendingFilter{}
	}
	filter, args := scope.Filter("tenant_id", nil)
	query := `SELECT ` + allocationColumns + ` FROM student_fee_allocations WHERE due_amount > 0` + filter
	var p string
	if f.AsOf != nil {
		p, args = placeholder(args, *f.AsOf)
		query += ` AND due_date IS NOT NULL AND due_date < ` + p
	}
	if f.StudentID != nil {
		p, args = placeholder(args, *f.StudentID)
		query += ` AND student_id = ` + p
	}
	if f.AcademicYearID != nil {
		p, args = placeholder(args, *f.AcademicYearID)
		query += ` AND academic_year_id = ` + p
	}
	offset := f.Offset
	if f.After != nil {
		var q string
		p, args = placeholder(args, f.After.DueDate)
		q, args = placeholder(args, f.After.ID)
		query += ` AND due_date IS NOT NULL AND (due_date, id) > (` + p + `, ` + q + `)`
		offset = 0
	}
	query, args = paginate(query+` ORDER BY due_date ASC NULLS LAST, id`, args, f.Limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list pending allocations")
	}
	return collectAllocations(rows)
}

func (r *allocationRepo) ListByStudent(ctx context.Context, scope tenant.Context, studentID uuid.UUID) ([]*models.StudentFeeAllocation, error) {
	args := []interface{}{studentID}
	filter, args := scope.Filter("tenant_id", args)
	query := `SELECT ` + allocationColumns + ` FROM student_fee_allocations WHERE student_id = $1` + filter + ` ORDER BY due_date ASC NULLS LAST, id`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list student allocations")
	}
	return collectAllocations(rows)
}

func (r *allocationRepo) CountByStructure(ctx context.Context, scope tenant.Context, structureID uuid.UUID) (int, error) {
	args := []interface{}{structureID}
	filter, args := scope.Filter("tenant_id", args)
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM student_fee_allocations WHERE fee_structure_id = $1`+filter, args...).Scan(&count)
	return count, errors.Wrap(err, "count allocations")
}

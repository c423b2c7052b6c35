package repositories

import (
	"context"

	"feeledger/internal/common"
	"feeledger/internal/models"
	"feeledger/internal/tenant"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

type FeeStructureRepository interface {
	Create(ctx context.Context, structure *models.FeeStructure) error
	GetByID(ctx context.Context, scope tenant.Context, id uuid.UUID) (*models.FeeStructure, error)
	Update(ctx context.Context, scope tenant.Context, structure *models.FeeStructure) error
	Delete(ctx context.Context, scope tenant.Context, id uuid.UUID) error
	List(ctx context.Context, scope tenant.Context, filter *models.FeeStructureFilter) ([]*models.FeeStructure, error)
}

const feeStructureColumns = `id, tenant_id, fee_category_id, academic_year_id, class_id, amount, due_date, late_fee, late_fee_grace_days, created_at, updated_at`

type feeStructureRepo struct {
	db DBTX
}

func NewFeeStructureRepo(db DBTX) FeeStructureRepository {
	return &feeStructureRepo{db: db}
}

func scanFeeStructure(row pgx.Row) (*models.FeeStructure, error) {
	s := &models.FeeStructure{}
	err := row.Scan(&s.ID, &s.TenantID, &s.FeeCategoryID, &s.AcademicYearID, &s.ClassID, &s.Amount, &s.DueDate, &s.LateFee, &s.LateFeeGraceDays, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *feeStructureRepo) Create(ctx context.Context, s *models.FeeStructure) error {
	query := `INSERT INTO fee_structures (id, tenant_id, fee_category_id, academic_year_id, class_id, amount, due_date, late_fee, late_fee_grace_days, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.Exec(ctx, query, s.ID, s.TenantID, s.FeeCategoryID, s.AcademicYearID, s.ClassID, s.Amount, s.DueDate, s.LateFee, s.LateFeeGraceDays, s.CreatedAt, s.UpdatedAt)
	return errors.Wrap(err, "insert fee structure")
}

func (r *feeStructureRepo) GetByID(ctx context.Context, scope tenant.Context, id uuid.UUID) (*models.FeeStructure, error) {
	args := []interface{}{id}
	filter, args := scope.Filter("tenant_id", args)
	query := `SELECT ` + feeStructureColumns + ` FROM fee_structures WHERE id = $1` + filter
	s, err := scanFeeStructure(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, notFound(err, "fee structure", id)
	}
	return s, nil
}

func (r *feeStructureRepo) Update(ctx context.Context, scope tenant.Context, s *models.FeeStructure) error {
	args := []interface{}{s.ClassID, s.Amount, s.DueDate, s.LateFee, s.LateFeeGraceDays, s.UpdatedAt, s.ID}
	filter, args := scope.Filter("tenant_id", args)
	query := `UPDATE fee_structures SET class_id = $1, amount = $2, due_date = $3, late_fee = $4, late_fee_grace_days = $5, updated_at = $6 WHERE id = $7` + filter
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "update fee structure")
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFound("fee structure", s.ID)
	}
	return nil
}

// Delete removes the structure unless students have been allocated to it.
func (r *feeStructureRepo) Delete(ctx context.Context, scope tenant.Context, id uuid.UUID) error {
	args := []interface{}{id}
	filter, args := scope.Filter("s.tenant_id", args)
	query := `DELETE FROM fee_structures s WHERE s.id = $1 AND NOT EXISTS (SELECT 1 FROM student_fee_allocations a WHERE a.fee_structure_id = s.id)` + filter
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "delete fee structure")
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, scope, id); err != nil {
			return err
		}
		return errors.Wrap(common.ErrInUse, "fee structure has allocations")
	}
	return nil
}

func (r *feeStructureRepo) List(ctx context.Context, scope tenant.Context, f *models.FeeStructureFilter) ([]*models.FeeStructure, error) {
	if f == nil {
		f = &models.FeeStructureFilter{}
	}
	filter, args := scope.Filter("tenant_id", nil)
	query := `SELECT ` + feeStructureColumns + ` FROM fee_structures WHERE 1 = 1` + filter
	if f.FeeCategoryID != nil {
		var p string
		p, args = placeholder(args, *f.FeeCategoryID)
		query += ` AND fee_category_id = ` + p
	}
	if f.AcademicYearID != nil {
		var p string
		p, args = placeholder(args, *f.AcademicYearID)
		query += ` AND academic_year_id = ` + p
	}
	if f.ClassID != nil {
		var p string
		p, args = placeholder(args, *f.ClassID)
		query += ` AND class_id = ` + p
	}
	query, args = paginate(query+` ORDER BY created_at, id`, args, f.Limit, f.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list fee structures")
	}
	defer rows.Close()

	var structures []*models.FeeStructure
	for rows.Next() {
		s, err := scanFeeStructure(rows)
		if err != nil {
			return nil, err
		}
		structures = append(structures, s)
	}
	return structures, rows.Err()
}

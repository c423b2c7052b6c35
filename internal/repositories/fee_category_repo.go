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

type FeeCategoryRepository interface {
	Create(ctx context.Context, category *models.FeeCategory) error
	GetByID(ctx context.Context, scope tenant.Context, id uuid.UUID) (*models.FeeCategory, error)
	Update(ctx context.Context, scope tenant.Context, category *models.FeeCategory) error
	SoftDelete(ctx context.Context, scope tenant.Context, id uuid.UUID) error
	List(ctx context.Context, scope tenant.Context, limit, offset int) ([]*models.FeeCategory, error)
}

const feeCategoryColumns = `id, tenant_id, name, description, frequency, is_mandatory, deleted_at, created_at, updated_at`

type feeCategoryRepo struct {
	db DBTX
}

func NewFeeCategoryRepo(db DBTX) FeeCategoryRepository {
	return &feeCategoryRepo{db: db}
}

func scanFeeCategory(row pgx.Row) (*models.FeeCategory, error) {
	c := &models.FeeCategory{}
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Description, &c.Frequency, &c.IsMandatory, &c.DeletedAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *feeCategoryRepo) Create(ctx context.Context, category *models.FeeCategory) error {
	query := `INSERT INTO fee_categories (id, tenant_id, name, description, frequency, is_mandatory, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, query, category.ID, category.TenantID, category.Name, category.Description, category.Frequency, category.IsMandatory, category.CreatedAt, category.UpdatedAt)
	return errors.Wrap(err, "insert fee category")
}

func (r *feeCategoryRepo) GetByID(ctx context.Context, scope tenant.Context, id uuid.UUID) (*models.FeeCategory, error) {
	args := []interface{}{id}
	filter, args := scope.Filter("tenant_id", args)
	query := `SELECT ` + feeCategoryColumns + ` FROM fee_categories WHERE id = $1 AND deleted_at IS NULL` + filter
	category, err := scanFeeCategory(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, notFound(err, "fee category", id)
	}
	return category, nil
}

func (r *feeCategoryRepo) Update(ctx context.Context, scope tenant.Context, category *models.FeeCategory) error {
	args := []interface{}{category.Name, category.Description, category.Frequency, category.IsMandatory, category.UpdatedAt, category.ID}
	filter, args := scope.Filter("tenant_id", args)
	query := `UPDATE fee_categories SET name = $1, description = $2, frequency = $3, is_mandatory = $4, updated_at = $5 WHERE id = $6 AND deleted_at IS NULL` + filter
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "update fee category")
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFound("fee category", category.ID)
	}
	return nil
}

// SoftDelete marks the category deleted unless a fee structure still uses it.
func (r *feeCategoryRepo) SoftDelete(ctx context.Context, scope tenant.Context, id uuid.UUID) error {
	args := []interface{}{id}
	filter, args := scope.Filter("c.tenant_id", args)
	query := `UPDATE fee_categories c SET deleted_at = NOW(), updated_at = NOW() WHERE c.id = $1 AND c.deleted_at IS NULL AND NOT EXISTS (SELECT 1 FROM fee_structures s WHERE s.fee_category_id = c.id)` + filter
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "delete fee category")
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, scope, id); err != nil {
			return err
		}
		return errors.Wrap(common.ErrInUse, "fee category has fee structures")
	}
	return nil
}

func (r *feeCategoryRepo) List(ctx context.Context, scope tenant.Context, limit, offset int) ([]*models.FeeCategory, error) {
	filter, args := scope.Filter("tenant_id", nil)
	query, args := paginate(`SELECT `+feeCategoryColumns+` FROM fee_categories WHERE deleted_at IS NULL`+filter+` ORDER BY name, id`, args, limit, offset)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list fee categories")
	}
	defer rows.Close()

	var categories []*models.FeeCategory
	for rows.Next() {
		category, err := scanFeeCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

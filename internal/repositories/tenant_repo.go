package repositories

import (
	"context"

	"feeledger/internal/common"
	"feeledger/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

// ErrSubdomainTaken is returned when a tenant subdomain is already registered.
var ErrSubdomainTaken = errors.Wrap(common.ErrDuplicate, "subdomain already registered")

// TenantRepository is unscoped: tenants are the scope.
type TenantRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	Update(ctx context.Context, tenant *models.Tenant) error
	List(ctx context.Context, limit, offset int) ([]*models.Tenant, error)
	ListActive(ctx context.Context, limit, offset int) ([]*models.Tenant, error)
}

const tenantColumns = `id, name, subdomain, status, created_at, updated_at`

type tenantRepo struct {
	db DBTX
}

func NewTenantRepo(db DBTX) TenantRepository {
	return &tenantRepo{db: db}
}

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	t := &models.Tenant{}
	err := row.Scan(&t.ID, &t.Name, &t.Subdomain, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *tenantRepo) Create(ctx context.Context, t *models.Tenant) error {
	query := `INSERT INTO tenants (` + tenantColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Exec(ctx, query, t.ID, t.Name, t.Subdomain, t.Status, t.CreatedAt, t.UpdatedAt)
	if uniqueViolation(err) {
		return errors.Wrap(ErrSubdomainTaken, t.Subdomain)
	}
	return errors.Wrap(err, "insert tenant")
}

func (r *tenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	t, err := scanTenant(r.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "tenant", id)
	}
	return t, nil
}

func (r *tenantRepo) Update(ctx context.Context, t *models.Tenant) error {
	query := `UPDATE tenants SET name = $1, subdomain = $2, status = $3, updated_at = $4 WHERE id = $5`
	tag, err := r.db.Exec(ctx, query, t.Name, t.Subdomain, t.Status, t.UpdatedAt, t.ID)
	if uniqueViolation(err) {
		return errors.Wrap(ErrSubdomainTaken, t.Subdomain)
	}
	if err != nil {
		return errors.Wrap(err, "update tenant")
	}
	if tag.RowsAffected() == 0 {
		return notFound(pgx.ErrNoRows, "tenant", t.ID)
	}
	return nil
}

func (r *tenantRepo) list(ctx context.Context, where string, limit, offset int) ([]*models.Tenant, error) {
	query, args := paginate(`SELECT `+tenantColumns+` FROM tenants`+where+` ORDER BY name, id`, nil, limit, offset)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list tenants")
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (r *tenantRepo) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	return r.list(ctx, "", limit, offset)
}

func (r *tenantRepo) ListActive(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	return r.list(ctx, ` WHERE status = '`+models.TenantActive+`'`, limit, offset)
}

package inmemdb

import (
	"context"
	"sort"

	"feeledger/internal/common"
	"feeledger/internal/models"
	"feeledger/internal/repositories"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type tenantRepository struct {
	db *DB
}

func NewTenantRepository(db *DB) repositories.TenantRepository {
	return &tenantRepository{db: db}
}

func (repo *tenantRepository) subdomainTaken(t *models.Tenant) bool {
	for _, existing := range repo.db.tenants {
		if existing.ID != t.ID && existing.Subdomain == t.Subdomain {
			return true
		}
	}
	return false
}

func (repo *tenantRepository) Create(_ context.Context, t *models.Tenant) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if repo.subdomainTaken(t) {
		return errors.Wrap(repositories.ErrSubdomainTaken, t.Subdomain)
	}
	cp := *t
	repo.db.tenants[t.ID] = &cp
	return nil
}

func (repo *tenantRepository) GetByID(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	t, ok := repo.db.tenants[id]
	if !ok {
		return nil, common.NewNotFound("tenant", id)
	}
	cp := *t
	return &cp, nil
}

func (repo *tenantRepository) Update(_ context.Context, t *models.Tenant) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if _, ok := repo.db.tenants[t.ID]; !ok {
		return common.NewNotFound("tenant", t.ID)
	}
	if repo.subdomainTaken(t) {
		return errors.Wrap(repositories.ErrSubdomainTaken, t.Subdomain)
	}
	cp := *t
	repo.db.tenants[t.ID] = &cp
	return nil
}

func (repo *tenantRepository) list(activeOnly bool, limit, offset int) []*models.Tenant {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	var out []*models.Tenant
	for _, t := range repo.db.tenants {
		if !activeOnly || t.Status == models.TenantActive {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return page(out, limit, offset)
}

func (repo *tenantRepository) List(_ context.Context, limit, offset int) ([]*models.Tenant, error) {
	return repo.list(false, limit, offset), nil
}

func (repo *tenantRepository) ListActive(_ context.Context, limit, offset int) ([]*models.Tenant, error) {
	return repo.list(true, limit, offset), nil
}

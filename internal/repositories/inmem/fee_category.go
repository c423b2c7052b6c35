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
	"github.com/pkg/errors"
)

type feeCategoryRepository struct {
	db *DB
}

func NewFeeCategoryRepository(db *DB) repositories.FeeCategoryRepository {
	return &feeCategoryRepository{db: db}
}

func (repo *feeCategoryRepository) Create(_ context.Context, category *models.FeeCategory) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	c := *category
	repo.db.categories[c.ID] = &c
	return nil
}

func (repo *feeCategoryRepository) get(scope tenant.Context, id uuid.UUID) (*models.FeeCategory, error) {
	c, ok := repo.db.categories[id]
	if !ok || c.DeletedAt != nil || !scope.Allows(c.TenantID) {
		return nil, common.NewNotFound("fee category", id)
	}
	return c, nil
}

func (repo *feeCategoryRepository) GetByID(_ context.Context, scope tenant.Context, id uuid.UUID) (*models.FeeCategory, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	c, err := repo.get(scope, id)
	if err != nil {
		return nil, err
	}
	out := *c
	return &out, nil
}

func (repo *feeCategoryRepository) Update(_ context.Context, scope tenant.Context, category *models.FeeCategory) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	c, err := repo.get(scope, category.ID)
	if err != nil {
		return err
	}
	c.Name = category.Name
	c.Description = category.Description
	c.Frequency = category.Frequency
	c.IsMandatory = category.IsMandatory
	c.UpdatedAt = category.UpdatedAt
	return nil
}

func (repo *feeCategoryRepository) SoftDelete(_ context.Context, scope tenant.Context, id uuid.UUID) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	c, err := repo.get(scope, id)
	if err != nil {
		return err
	}
	for _, s := range repo.db.structures {
		if s.FeeCategoryID == id {
			return errors.Wrap(common.ErrInUse, "fee category has fee structures")
		}
	}
	now := time.Now()
	c.DeletedAt = &now
	c.UpdatedAt = now
	return nil
}

func (repo *feeCategoryRepository) List(_ context.Context, scope tenant.Context, limit, offset int) ([]*models.FeeCategory, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	var out []*models.FeeCategory
	for _, c := range repo.db.categories {
		if c.DeletedAt == nil && scope.Allows(c.TenantID) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return page(out, limit, offset), nil
}

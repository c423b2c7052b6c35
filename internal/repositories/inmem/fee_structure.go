package inmemdb

import (
	"context"
	"sort"

	"feeledger/internal/common"
	"feeledger/internal/models"
	"feeledger/internal/repositories"
	"feeledger/internal/tenant"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type feeStructureRepository struct {
	db *DB
}

func NewFeeStructureRepository(db *DB) repositories.FeeStructureRepository {
	return &feeStructureRepository{db: db}
}

func (repo *feeStructureRepository) Create(_ context.Context, structure *models.FeeStructure) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	s := *structure
	repo.db.structures[s.ID] = &s
	return nil
}

func (repo *feeStructureRepository) get(scope tenant.Context, id uuid.UUID) (*models.FeeStructure, error) {
	s, ok := repo.db.structures[id]
	if !ok || !scope.Allows(s.TenantID) {
		return nil, common.NewNotFound("fee structure", id)
	}
	return s, nil
}

func (repo *feeStructureRepository) GetByID(_ context.Context, scope tenant.Context, id uuid.UUID) (*models.FeeStructure, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	s, err := repo.get(scope, id)
	if err != nil {
		return nil, err
	}
	out := *s
	return &out, nil
}

func (repo *feeStructureRepository) Update(_ context.Context, scope tenant.Context, structure *models.FeeStructure) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	s, err := repo.get(scope, structure.ID)
	if err != nil {
		return err
	}
	s.ClassID = structure.ClassID
	s.Amount = structure.Amount
	s.DueDate = structure.DueDate
	s.LateFee = structure.LateFee
	s.LateFeeGraceDays = structure.LateFeeGraceDays
	s.UpdatedAt = structure.UpdatedAt
	return nil
}

func (repo *feeStructureRepository) Delete(_ context.Context, scope tenant.Context, id uuid.UUID) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if _, err := repo.get(scope, id); err != nil {
		return err
	}
	for _, a := range repo.db.allocations {
		if a.FeeStructureID == id {
			return errors.Wrap(common.ErrInUse, "fee structure has allocations")
		}
	}
	delete(repo.db.structures, id)
	return nil
}

func (repo *feeStructureRepository) List(_ context.Context, scope tenant.Context, f *models.FeeStructureFilter) ([]*models.FeeStructure, error) {
	if f == nil {
		f = &models.FeeStructureFilter{}
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	var out []*models.FeeStructure
	for _, s := range repo.db.structures {
		if !scope.Allows(s.TenantID) {
			continue
		}
		if f.FeeCategoryID != nil && s.FeeCategoryID != *f.FeeCategoryID {
			continue
		}
		if f.AcademicYearID != nil && s.AcademicYearID != *f.AcademicYearID {
			continue
		}
		if f.ClassID != nil && (s.ClassID == nil || *s.ClassID != *f.ClassID) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return page(out, f.Limit, f.Offset), nil
}

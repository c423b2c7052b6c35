package inmemdb

import (
	"context"

	"feeledger/internal/common"
	"feeledger/internal/models"
	"feeledger/internal/repositories"
	"feeledger/internal/tenant"

	"github.com/google/uuid"
)

type allocationRepository struct {
	db *DB
}

func NewAllocationRepository(db *DB) repositories.AllocationRepository {
	return &allocationRepository{db: db}
}

func (repo *allocationRepository) CreateMany(_ context.Context, allocations []*models.StudentFeeAllocation) ([]*models.StudentFeeAllocation, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	created := make([]*models.StudentFeeAllocation, 0, len(allocations))
	for _, a := range allocations {
		if repo.exists(a) {
			continue
		}
		cp := *a
		repo.db.allocations[cp.ID] = &cp
		created = append(created, a)
	}
	return created, nil
}

func (repo *allocationRepository) exists(a *models.StudentFeeAllocation) bool {
	for _, existing := range repo.db.allocations {
		if existing.TenantID == a.TenantID && existing.StudentID == a.StudentID && existing.FeeStructureID == a.FeeStructureID {
			return true
		}
	}
	return false
}

func (repo *allocationRepository) GetByID(_ context.Context, scope tenant.Context, id uuid.UUID) (*models.StudentFeeAllocation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	a, ok := repo.db.allocations[id]
	if !ok || !scope.Allows(a.TenantID) {
		return nil, common.NewNotFound("allocation", id)
	}
	cp := *a
	return &cp, nil
}

func (repo *allocationRepository) ListPending(_ context.Context, scope tenant.Context, f *models.PendingFilter) ([]*models.StudentFeeAllocation, error) {
	if f == nil {
		f = &models.PendingFilter{}
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	var out []*models.StudentFeeAllocation
	for _, a := range repo.db.allocations {
		if !scope.Allows(a.TenantID) || a.DueAmount.Sign() <= 0 {
			continue
		}
		if f.AsOf != nil && (a.DueDate == nil || !a.DueDate.Before(*f.AsOf)) {
			continue
		}
		if f.StudentID != nil && a.StudentID != *f.StudentID {
			continue
		}
		if f.AcademicYearID != nil && a.AcademicYearID != *f.AcademicYearID {
			continue
		}
		if f.After != nil && !afterCursor(a, f.After) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sortByDueDate(out)
	if f.After != nil {
		return page(out, f.Limit, 0), nil
	}
	return page(out, f.Limit, f.Offset), nil
}

func (repo *allocationRepository) ListByStudent(_ context.Context, scope tenant.Context, studentID uuid.UUID) ([]*models.StudentFeeAllocation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	var out []*models.StudentFeeAllocation
	for _, a := range repo.db.allocations {
		if scope.Allows(a.TenantID) && a.StudentID == studentID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sortByDueDate(out)
	return out, nil
}

func (repo *allocationRepository) CountByStructure(_ context.Context, scope tenant.Context, structureID uuid.UUID) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	count := 0
	for _, a := range repo.db.allocations {
		if scope.Allows(a.TenantID) && a.FeeStructureID == structureID {
			count++
		}
	}
	return count, nil
}

func afterCursor(a *models.StudentFeeAllocation, c *models.AllocationCursor) bool {
	if a.DueDate == nil {
		return false
	}
	if !a.DueDate.Equal(c.DueDate) {
		return a.DueDate.After(c.DueDate)
	}
	return a.ID.String() > c.ID.String()
}

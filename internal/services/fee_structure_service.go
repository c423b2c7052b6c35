package services

import (
	"context"
	"time"

	"feeledger/internal/common"
	"feeledger/internal/models"
	"feeledger/internal/repositories"
	"feeledger/internal/tenant"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type CreateFeeStructureRequest struct {
	TenantID         uuid.UUID       `json:"tenant_id"`
	FeeCategoryID    uuid.UUID       `json:"fee_category_id" validate:"required"`
	AcademicYearID   uuid.UUID       `json:"academic_year_id" validate:"required"`
	ClassID          *uuid.UUID      `json:"class_id"`
	Amount           decimal.Decimal `json:"amount" validate:"gte=0"`
	DueDate          *time.Time      `json:"due_date"`
	LateFee          decimal.Decimal `json:"late_fee" validate:"gte=0"`
	LateFeeGraceDays int             `json:"late_fee_grace_days" validate:"gte=0,lte=365"`
}

type UpdateFeeStructureRequest struct {
	ClassID          *uuid.UUID      `json:"class_id"`
	Amount           decimal.Decimal `json:"amount" validate:"gte=0"`
	DueDate          *time.Time      `json:"due_date"`
	LateFee          decimal.Decimal `json:"late_fee" validate:"gte=0"`
	LateFeeGraceDays int             `json:"late_fee_grace_days" validate:"gte=0,lte=365"`
}

type FeeStructureService interface {
	Create(ctx context.Context, scope tenant.Context, req *CreateFeeStructureRequest) (*models.FeeStructure, error)
	Get(ctx context.Context, scope tenant.Context, id uuid.UUID) (*models.FeeStructure, error)
	List(ctx context.Context, scope tenant.Context, filter *models.FeeStructureFilter) ([]*models.FeeStructure, error)
	Update(ctx context.Context, scope tenant.Context, id uuid.UUID, req *UpdateFeeStructureRequest) (*models.FeeStructure, error)
	Delete(ctx context.Context, scope tenant.Context, id uuid.UUID) error
}

type feeStructureService struct {
	repo           repositories.FeeStructureRepository
	categoryRepo   repositories.FeeCategoryRepository
	allocationRepo repositories.AllocationRepository
	now            func() time.Time
}

func NewFeeStructureService(repo repositories.FeeStructureRepository, categoryRepo repositories.FeeCategoryRepository, allocationRepo repositories.AllocationRepository) FeeStructureService {
	return &feeStructureService{repo: repo, categoryRepo: categoryRepo, allocationRepo: allocationRepo, now: time.Now}
}

func checkMoney(field string, d decimal.Decimal) error {
	if !d.Equal(d.Round(2)) {
		return common.NewValidationError(common.FieldError{Field: field, Message: field + " must have at most 2 decimal places"})
	}
	return nil
}

func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	// The calendar date as written, in the caller's own offset.
	y, m, day := t.Date()
	d := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return &d
}

func (s *feeStructureService) Create(ctx context.Context, scope tenant.Context, req *CreateFeeStructureRequest) (*models.FeeStructure, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := checkMoney("amount", req.Amount); err != nil {
		return nil, err
	}
	if err := checkMoney("late_fee", req.LateFee); err != nil {
		return nil, err
	}
	tenantID, err := ownerTenant(scope, req.TenantID)
	if err != nil {
		return nil, err
	}
	// The category must belong to the same school as the structure.
	if _, err := s.categoryRepo.GetByID(ctx, tenant.For(tenantID, scope.UserID), req.FeeCategoryID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	structure := &models.FeeStructure{
		ID:               uuid.New(),
		TenantID:         tenantID,
		FeeCategoryID:    req.FeeCategoryID,
		AcademicYearID:   req.AcademicYearID,
		ClassID:          req.ClassID,
		Amount:           req.Amount,
		DueDate:          dateOnly(req.DueDate),
		LateFee:          req.LateFee,
		LateFeeGraceDays: req.LateFeeGraceDays,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, structure); err != nil {
		return nil, err
	}
	return structure, nil
}

func (s *feeStructureService) Get(ctx context.Context, scope tenant.Context, id uuid.UUID) (*models.FeeStructure, error) {
	return s.repo.GetByID(ctx, scope, id)
}

func (s *feeStructureService) List(ctx context.Context, scope tenant.Context, filter *models.FeeStructureFilter) ([]*models.FeeStructure, error) {
	f := models.FeeStructureFilter{}
	if filter != nil {
		f = *filter
	}
	f.Limit, f.Offset = common.ValidatePaginationParams(f.Limit, f.Offset)
	return s.repo.List(ctx, scope, &f)
}

// Update changes pricing. Once students are allocated the amount is frozen,
// since allocations carry their own balance derived from it.
func (s *feeStructureService) Update(ctx context.Context, scope tenant.Context, id uuid.UUID, req *UpdateFeeStructureRequest) (*models.FeeStructure, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := checkMoney("amount", req.Amount); err != nil {
		return nil, err
	}
	if err := checkMoney("late_fee", req.LateFee); err != nil {
		return nil, err
	}
	structure, err := s.repo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if !req.Amount.Equal(structure.Amount) {
		count, err := s.allocationRepo.CountByStructure(ctx, scope, id)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, errors.Wrapf(common.ErrInUse, "fee structure has %d allocations; amount cannot change", count)
		}
	}

	structure.ClassID = req.ClassID
	structure.Amount = req.Amount
	structure.DueDate = dateOnly(req.DueDate)
	structure.LateFee = req.LateFee
	structure.LateFeeGraceDays = req.LateFeeGraceDays
	structure.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, scope, structure); err != nil {
		return nil, err
	}
	return structure, nil
}

// Delete removes the structure; it fails with common.ErrInUse once students
// have been allocated to it.
func (s *feeStructureService) Delete(ctx context.Context, scope tenant.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, scope, id)
}

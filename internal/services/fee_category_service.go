package services

import (
	"context"
	"strings"
	"time"

	"feeledger/internal/common"
	"feeledger/internal/models"
	"feeledger/internal/repositories"
	"feeledger/internal/tenant"

	"github.com/google/uuid"
)

type CreateFeeCategoryRequest struct {
	TenantID    uuid.UUID           `json:"tenant_id"`
	Name        string              `json:"name" validate:"required,max=100"`
	Description *string             `json:"description" validate:"omitempty,max=500"`
	Frequency   models.FeeFrequency `json:"frequency" validate:"required,oneof=one_time monthly quarterly half_yearly yearly"`
	IsMandatory bool                `json:"is_mandatory"`
}

type UpdateFeeCategoryRequest struct {
	Name        string              `json:"name" validate:"required,max=100"`
	Description *string             `json:"description" validate:"omitempty,max=500"`
	Frequency   models.FeeFrequency `json:"frequency" validate:"required,oneof=one_time monthly quarterly half_yearly yearly"`
	IsMandatory bool                `json:"is_mandatory"`
}

type FeeCategoryService interface {
	Create(ctx context.Context, scope tenant.Context, req *CreateFeeCategoryRequest) (*models.FeeCategory, error)
	Get(ctx context.Context, scope tenant.Context, id uuid.UUID) (*models.FeeCategory, error)
	List(ctx context.Context, scope tenant.Context, limit, offset int) ([]*models.FeeCategory, error)
	Update(ctx context.Context, scope tenant.Context, id uuid.UUID, req *UpdateFeeCategoryRequest) (*models.FeeCategory, error)
	Delete(ctx context.Context, scope tenant.Context, id uuid.UUID) error
}

type feeCategoryService struct {
	repo repositories.FeeCategoryRepository
	now  func() time.Time
}

func NewFeeCategoryService(repo repositories.FeeCategoryRepository) FeeCategoryService {
	return &feeCategoryService{repo: repo, now: time.Now}
}

// ownerTenant resolves the tenant a new row belongs to. Platform callers must
// name one; tenant callers may only name their own.
func ownerTenant(scope tenant.Context, requested uuid.UUID) (uuid.UUID, error) {
	scope.Stamp(&requested)
	if requested == uuid.Nil {
		return uuid.Nil, common.NewValidationError(common.FieldError{Field: "tenant_id", Message: "tenant_id is required"})
	}
	if !scope.Allows(requested) {
		return uuid.Nil, common.NewValidationError(common.FieldError{Field: "tenant_id", Message: "tenant_id does not match the caller's tenant"})
	}
	return requested, nil
}

func (s *feeCategoryService) Create(ctx context.Context, scope tenant.Context, req *CreateFeeCategoryRequest) (*models.FeeCategory, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	tenantID, err := ownerTenant(scope, req.TenantID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	category := &models.FeeCategory{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		Frequency:   req.Frequency,
		IsMandatory: req.IsMandatory,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *feeCategoryService) Get(ctx context.Context, scope tenant.Context, id uuid.UUID) (*models.FeeCategory, error) {
	return s.repo.GetByID(ctx, scope, id)
}

func (s *feeCategoryService) List(ctx context.Context, scope tenant.Context, limit, offset int) ([]*models.FeeCategory, error) {
	limit, offset = common.ValidatePaginationParams(limit, offset)
	return s.repo.List(ctx, scope, limit, offset)
}

func (s *feeCategoryService) Update(ctx context.Context, scope tenant.Context, id uuid.UUID, req *UpdateFeeCategoryRequest) (*models.FeeCategory, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	category, err := s.repo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	category.Name = req.Name
	category.Description = req.Description
	category.Frequency = req.Frequency
	category.IsMandatory = req.IsMandatory
	category.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, scope, category); err != nil {
		return nil, err
	}
	return category, nil
}

// Delete soft-deletes the category; it fails with common.ErrInUse while a fee
// structure references it.
func (s *feeCategoryService) Delete(ctx context.Context, scope tenant.Context, id uuid.UUID) error {
	return s.repo.SoftDelete(ctx, scope, id)
}

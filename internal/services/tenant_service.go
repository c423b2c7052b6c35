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

// TenantService provisions schools. Only platform callers may create, list or
// change tenants; a school may read its own record.
type TenantService interface {
	Create(ctx context.Context, scope tenant.Context, req *CreateTenantRequest) (*models.Tenant, error)
	GetByID(ctx context.Context, scope tenant.Context, id uuid.UUID) (*models.Tenant, error)
	Update(ctx context.Context, scope tenant.Context, id uuid.UUID, req *UpdateTenantRequest) (*models.Tenant, error)
	List(ctx context.Context, scope tenant.Context, limit, offset int) ([]*models.Tenant, error)
}

type CreateTenantRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	Subdomain string `json:"subdomain" validate:"required,min=3,max=63,hostname_rfc1123,excludes=."`
}

type UpdateTenantRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	Subdomain string `json:"subdomain" validate:"required,min=3,max=63,hostname_rfc1123,excludes=."`
	Status    string `json:"status" validate:"required,oneof=active suspended"`
}

type tenantService struct {
	tenantRepo repositories.TenantRepository
	now        func() time.Time
}

func NewTenantService(tenantRepo repositories.TenantRepository) TenantService {
	return &tenantService{tenantRepo: tenantRepo, now: time.Now}
}

func requirePlatform(scope tenant.Context) error {
	if !scope.IsPlatform() {
		return common.NewValidationError(common.FieldError{Field: "tenant", Message: "only platform operators can manage tenants"})
	}
	return nil
}

func (s *tenantService) Create(ctx context.Context, scope tenant.Context, req *CreateTenantRequest) (*models.Tenant, error) {
	if err := requirePlatform(scope); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Subdomain = strings.ToLower(strings.TrimSpace(req.Subdomain))
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &models.Tenant{
		ID:        uuid.New(),
		Name:      req.Name,
		Subdomain: req.Subdomain,
		Status:    models.TenantActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.tenantRepo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// GetByID hides other schools behind NotFound, like every scoped read.
func (s *tenantService) GetByID(ctx context.Context, scope tenant.Context, id uuid.UUID) (*models.Tenant, error) {
	if !scope.Allows(id) {
		return nil, common.NewNotFound("tenant", id)
	}
	return s.tenantRepo.GetByID(ctx, id)
}

func (s *tenantService) Update(ctx context.Context, scope tenant.Context, id uuid.UUID, req *UpdateTenantRequest) (*models.Tenant, error) {
	if err := requirePlatform(scope); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Subdomain = strings.ToLower(strings.TrimSpace(req.Subdomain))
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	existing, err := s.tenantRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	existing.Name = req.Name
	existing.Subdomain = req.Subdomain
	existing.Status = req.Status
	existing.UpdatedAt = s.now().UTC()
	if err := s.tenantRepo.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *tenantService) List(ctx context.Context, scope tenant.Context, limit, offset int) ([]*models.Tenant, error) {
	if err := requirePlatform(scope); err != nil {
		return nil, err
	}
	limit, offset = common.ValidatePaginationParams(limit, offset)
	return s.tenantRepo.List(ctx, limit, offset)
}

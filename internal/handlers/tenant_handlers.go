package handlers

import (
	"net/http"

	"feeledger/internal/common"
	"feeledger/internal/middleware"
	"feeledger/internal/models"
	"feeledger/internal/services"

	"github.com/labstack/echo/v4"
)

// TenantHandlers manages school provisioning.
type TenantHandlers struct {
	tenantService services.TenantService
}

func NewTenantHandlers(tenantService services.TenantService) *TenantHandlers {
	return &TenantHandlers{tenantService: tenantService}
}

// CreateTenant handles POST /tenants
func (h *TenantHandlers) CreateTenant(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	var req services.CreateTenantRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	t, err := h.tenantService.Create(c.Request().Context(), scope, &req)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// GetTenant handles GET /tenants/:id
func (h *TenantHandlers) GetTenant(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	t, err := h.tenantService.GetByID(c.Request().Context(), scope, id)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// GetCurrentTenant handles GET /tenants/current for school users.
func (h *TenantHandlers) GetCurrentTenant(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	if scope.IsPlatform() {
		return common.SendClientError(c, "Platform operators have no current tenant")
	}

	t, err := h.tenantService.GetByID(c.Request().Context(), scope, scope.TenantID)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// UpdateTenant handles PUT /tenants/:id
func (h *TenantHandlers) UpdateTenant(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}
	var req services.UpdateTenantRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	t, err := h.tenantService.Update(c.Request().Context(), scope, id, &req)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// ListTenants handles GET /tenants
func (h *TenantHandlers) ListTenants(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	var page pageQuery
	if err := c.Bind(&page); err != nil {
		return common.SendClientError(c, "Invalid query parameters")
	}

	tenants, err := h.tenantService.List(c.Request().Context(), scope, page.Limit, page.Offset)
	if err != nil {
		return common.SendError(c, err)
	}
	if tenants == nil {
		tenants = []*models.Tenant{}
	}
	limit, offset := common.ValidatePaginationParams(page.Limit, page.Offset)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tenants": tenants,
		"limit":   limit,
		"offset":  offset,
	})
}

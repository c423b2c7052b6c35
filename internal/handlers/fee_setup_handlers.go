package handlers

import (
	"net/http"

	"feeledger/internal/common"
	"feeledger/internal/middleware"
	"feeledger/internal/models"
	"feeledger/internal/services"

	"github.com/labstack/echo/v4"
)

// FeeSetupHandlers manages fee categories and fee structures.
type FeeSetupHandlers struct {
	categories services.FeeCategoryService
	structures services.FeeStructureService
}

func NewFeeSetupHandlers(categories services.FeeCategoryService, structures services.FeeStructureService) *FeeSetupHandlers {
	return &FeeSetupHandlers{categories: categories, structures: structures}
}

func (h *FeeSetupHandlers) ListCategories(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	var page pageQuery
	if err := c.Bind(&page); err != nil {
		return common.SendClientError(c, "Invalid query parameters")
	}

	categories, err := h.categories.List(c.Request().Context(), scope, page.Limit, page.Offset)
	if err != nil {
		return common.SendError(c, err)
	}
	if categories == nil {
		categories = []*models.FeeCategory{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"categories": categories})
}

func (h *FeeSetupHandlers) CreateCategory(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	var req services.CreateFeeCategoryRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	category, err := h.categories.Create(c.Request().Context(), scope, &req)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusCreated, category)
}

func (h *FeeSetupHandlers) GetCategory(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	category, err := h.categories.Get(c.Request().Context(), scope, id)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, category)
}

func (h *FeeSetupHandlers) UpdateCategory(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}
	var req services.UpdateFeeCategoryRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	category, err := h.categories.Update(c.Request().Context(), scope, id, &req)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, category)
}

func (h *FeeSetupHandlers) DeleteCategory(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.categories.Delete(c.Request().Context(), scope, id); err != nil {
		return common.SendError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *FeeSetupHandlers) ListStructures(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	var page pageQuery
	if err := c.Bind(&page); err != nil {
		return common.SendClientError(c, "Invalid query parameters")
	}
	filter := &models.FeeStructureFilter{Limit: page.Limit, Offset: page.Offset}
	if filter.FeeCategoryID, err = common.ParseOptionalUUID(c.QueryParam("fee_category_id"), "fee_category_id"); err != nil {
		return common.SendValidationError(c, "fee_category_id", err.Error())
	}
	if filter.AcademicYearID, err = common.ParseOptionalUUID(c.QueryParam("academic_year_id"), "academic_year_id"); err != nil {
		return common.SendValidationError(c, "academic_year_id", err.Error())
	}
	if filter.ClassID, err = common.ParseOptionalUUID(c.QueryParam("class_id"), "class_id"); err != nil {
		return common.SendValidationError(c, "class_id", err.Error())
	}

	structures, err := h.structures.List(c.Request().Context(), scope, filter)
	if err != nil {
		return common.SendError(c, err)
	}
	if structures == nil {
		structures = []*models.FeeStructure{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"fee_structures": structures})
}

func (h *FeeSetupHandlers) CreateStructure(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	var req services.CreateFeeStructureRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	structure, err := h.structures.Create(c.Request().Context(), scope, &req)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusCreated, structure)
}

func (h *FeeSetupHandlers) GetStructure(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	structure, err := h.structures.Get(c.Request().Context(), scope, id)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, structure)
}

func (h *FeeSetupHandlers) UpdateStructure(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}
	var req services.UpdateFeeStructureRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	structure, err := h.structures.Update(c.Request().Context(), scope, id, &req)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, structure)
}

func (h *FeeSetupHandlers) DeleteStructure(c echo.Context) error {
	scope, err := middleware.ScopeFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.structures.Delete(c.Request().Context(), scope, id); err != nil {
		return common.SendError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/coworking-reservation/internal/repository"
)

// CatalogHandler exposes read-only reference data: resource categories
// and types. Clients use these to build availability queries.
type CatalogHandler struct {
	Resources *repository.ResourceRepo
	Outages   *repository.OutageRepo
}

func NewCatalogHandler(resources *repository.ResourceRepo, outages *repository.OutageRepo) *CatalogHandler {
	return &CatalogHandler{Resources: resources, Outages: outages}
}

// ListCategories returns every resource category.
// GET /v1/categories
func (h *CatalogHandler) ListCategories(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	categories, err := h.Resources.ListCategories(ctx)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"categories": categories})
}

// ListTypes returns resource types, optionally one category's.
// GET /v1/types?category_id=
func (h *CatalogHandler) ListTypes(c echo.Context) error {
	var categoryID uint64
	if raw := c.QueryParam("category_id"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid category_id"})
		}
		categoryID = n
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	types, err := h.Resources.ListTypes(ctx, categoryID)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"types": types})
}

// ResourceOutages returns the outage timeline of one resource, newest
// first. Admin view used when planning maintenance.
// GET /v1/admin/resources/:id/outages
func (h *CatalogHandler) ResourceOutages(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	outages, err := h.Outages.ListForResource(ctx, id)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"outages": outages})
}

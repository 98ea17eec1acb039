package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ironworks/storefront-api/config"
	"github.com/ironworks/storefront-api/services"
)

func catalogService() *services.CatalogService {
	return services.NewCatalogService(config.GetDB(), services.GetCategoryCache())
}

// GetCategoryTree handles GET /api/v1/categories - active categories as a nested tree
func GetCategoryTree(c *gin.Context) {
	tree, err := catalogService().Tree(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, tree)
}

// GetCategory handles GET /api/v1/categories/*path.
// The path is the slug chain from a root ("/steel/bolts"); a trailing
// "/products" segment lists the products of that subtree instead.
func GetCategory(c *gin.Context) {
	path := strings.Trim(c.Param("path"), "/")
	if categoryPath, ok := strings.CutSuffix(path, "/"+services.ProductsSegment); ok {
		getCategoryProducts(c, categoryPath)
		return
	}

	detail, err := catalogService().PublicCategory(c.Request.Context(), path)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, detail)
}

func getCategoryProducts(c *gin.Context, path string) {
	page, err := catalogService().CategoryProducts(c.Request.Context(), path,
		queryInt(c, "page", 1), queryInt(c, "page_size", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, page)
}

// AdminListCategories handles GET /api/v1/admin/categories - every category in tree order
func AdminListCategories(c *gin.Context) {
	categories, err := catalogService().ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, categories)
}

// CreateCategory handles POST /api/v1/admin/categories
func CreateCategory(c *gin.Context) {
	var req services.CategoryInput
	if !bindJSON(c, &req) {
		return
	}

	category, err := catalogService().CreateCategory(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, category)
}

// UpdateCategory handles PUT /api/v1/admin/categories/:id - edits or moves a category
func UpdateCategory(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.CategoryInput
	if !bindJSON(c, &req) {
		return
	}

	category, err := catalogService().UpdateCategory(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, category)
}

// DeleteCategory handles DELETE /api/v1/admin/categories/:id - removes the whole subtree
func DeleteCategory(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := catalogService().DeleteCategory(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Category deleted", nil)
}

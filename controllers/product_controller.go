package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ironworks/storefront-api/config"
	"github.com/ironworks/storefront-api/services"
)

func productService() *services.ProductService {
	return services.NewProductService(config.GetDB(), services.GetImageService(), services.GetCategoryCache())
}

// ListProducts handles GET /api/v1/products
// Query: category (slug path), featured, q, page, page_size
func ListProducts(c *gin.Context) {
	page, err := productService().ListProducts(c.Request.Context(), services.ProductFilter{
		CategoryPath: c.Query("category"),
		Featured:     c.Query("featured") == "true",
		Search:       c.Query("q"),
		Page:         queryInt(c, "page", 1),
		PageSize:     queryInt(c, "page_size", 0),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, page)
}

// GetProduct handles GET /api/v1/products/:slug
func GetProduct(c *gin.Context) {
	product, err := productService().GetProductBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, product)
}

// AdminGetProduct handles GET /api/v1/admin/products/:id - includes unpublished products
func AdminGetProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	product, err := productService().GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, product)
}

// CreateProduct handles POST /api/v1/admin/products
func CreateProduct(c *gin.Context) {
	var req services.ProductInput
	if !bindJSON(c, &req) {
		return
	}

	product, err := productService().CreateProduct(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, product)
}

// UpdateProduct handles PUT /api/v1/admin/products/:id
func UpdateProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.ProductInput
	if !bindJSON(c, &req) {
		return
	}

	product, err := productService().UpdateProduct(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/v1/admin/products/:id
func DeleteProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := productService().DeleteProduct(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Product deleted", nil)
}

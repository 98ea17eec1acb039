package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UploadProductImage handles POST /api/v1/admin/products/:id/images
// Multipart form: image (file), alt_text, is_main
func UploadProductImage(c *gin.Context) {
	productID, ok := idParam(c, "id")
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Image file is required",
			},
		})
		return
	}

	image, err := productService().UploadImage(c.Request.Context(), productID, fileHeader,
		c.PostForm("alt_text"), c.PostForm("is_main") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, image)
}

// SetMainProductImage handles POST /api/v1/admin/products/:id/images/:image_id/main
func SetMainProductImage(c *gin.Context) {
	productID, ok := idParam(c, "id")
	if !ok {
		return
	}
	imageID, ok := idParam(c, "image_id")
	if !ok {
		return
	}

	if err := productService().SetMainImage(c.Request.Context(), productID, imageID); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Main image updated", nil)
}

// DeleteProductImage handles DELETE /api/v1/admin/products/:id/images/:image_id
func DeleteProductImage(c *gin.Context) {
	productID, ok := idParam(c, "id")
	if !ok {
		return
	}
	imageID, ok := idParam(c, "image_id")
	if !ok {
		return
	}

	if err := productService().DeleteImage(c.Request.Context(), productID, imageID); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Image deleted", nil)
}

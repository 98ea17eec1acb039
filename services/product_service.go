package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"regexp"
	"strings"

	"github.com/ironworks/storefront-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ProductInput carries the editable fields of a product
type ProductInput struct {
	Name          string          `json:"name" binding:"required"`
	Slug          string          `json:"slug" binding:"required"`
	Article       string          `json:"article" binding:"required"`
	CategoryID    uint            `json:"category_id" binding:"required"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	IsPublished   bool            `json:"is_published"`
	IsActive      bool            `json:"is_active"`
	IsFeatured    bool            `json:"is_featured"`
}

// ProductFilter narrows a public product listing
type ProductFilter struct {
	CategoryPath string // slug path from the root, e.g. "pipes/steel"
	Featured     bool
	Search       string
	Page         int
	PageSize     int
}

// ProductService manages products and their images
type ProductService struct {
	db     *gorm.DB
	images ImageService
	cache  *CategoryCache
}

// NewProductService creates a product service; images and cache may be nil
func NewProductService(db *gorm.DB, images ImageService, cache *CategoryCache) *ProductService {
	return &ProductService{db: db, images: images, cache: cache}
}

// orderImages sorts preloaded images with the main image first
func orderImages(db *gorm.DB) *gorm.DB {
	return db.Order("is_main DESC, sort_order, id")
}

// GetProductBySlug returns a visible product and counts the view
func (s *ProductService) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).
		Scopes(visibleProducts).
		Preload("Category").
		Preload("Images", orderImages).
		Where("slug = ?", slug).
		First(&product).Error
	if err != nil {
		return nil, notFound(err, "product")
	}

	if err := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", product.ID).
		UpdateColumn("views_count", gorm.Expr("views_count + ?", 1)).Error; err != nil {
		slog.Warn("failed to count product view", "product_id", product.ID, "error", err)
	} else {
		product.ViewsCount++
	}

	s.attachImageURLs(ctx, &product)
	return &product, nil
}

// ListProducts lists visible products matching the filter
func (s *ProductService) ListProducts(ctx context.Context, filter ProductFilter) (*ProductPage, error) {
	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	query := s.db.WithContext(ctx).Model(&models.Product{}).Scopes(visibleProducts)

	if filter.CategoryPath != "" {
		category, err := activeCategoryByPath(s.db.WithContext(ctx), filter.CategoryPath)
		if err != nil {
			return nil, err
		}
		query = query.Joins("JOIN categories ON categories.id = products.category_id").
			Where("categories.lft BETWEEN ? AND ?", category.Lft, category.Rgt)
	}
	if filter.Featured {
		query = query.Where("products.is_featured = ?", true)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("(LOWER(products.name) LIKE ? OR LOWER(products.article) LIKE ?)", like, like)
	}
	query = query.Session(&gorm.Session{})

	result := &ProductPage{Page: page, PageSize: pageSize}
	if err := query.Count(&result.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}
	if err := query.Preload("Images", orderImages).
		Order("products.is_featured DESC, products.name").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&result.Items).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	for i := range result.Items {
		s.attachImageURLs(ctx, &result.Items[i])
	}
	return result, nil
}

// GetProduct returns any product by id (admin view)
func (s *ProductService) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).Preload("Category").Preload("Images", orderImages).
		First(&product, id).Error; err != nil {
		return nil, notFound(err, "product")
	}
	s.attachImageURLs(ctx, &product)
	return &product, nil
}

// CreateProduct inserts a product
func (s *ProductService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	if err := validateProductInput(in); err != nil {
		return nil, err
	}

	product := models.Product{
		Name:          in.Name,
		Slug:          in.Slug,
		Article:       in.Article,
		CategoryID:    in.CategoryID,
		Description:   in.Description,
		Price:         in.Price,
		StockQuantity: in.StockQuantity,
		IsPublished:   in.IsPublished,
		IsActive:      in.IsActive,
		IsFeatured:    in.IsFeatured,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var category models.Category
		if err := tx.First(&category, in.CategoryID).Error; err != nil {
			return notFound(err, "category")
		}
		if err := tx.Create(&product).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("product slug or article already used: %w", ErrConflict)
			}
			return fmt.Errorf("failed to create product: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return &product, nil
}

// UpdateProduct replaces the editable fields of a product
func (s *ProductService) UpdateProduct(ctx context.Context, id uint, in ProductInput) (*models.Product, error) {
	if err := validateProductInput(in); err != nil {
		return nil, err
	}

	var product models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&product, id).Error; err != nil {
			return notFound(err, "product")
		}
		var category models.Category
		if err := tx.First(&category, in.CategoryID).Error; err != nil {
			return notFound(err, "category")
		}

		updates := map[string]interface{}{
			"name":           in.Name,
			"slug":           in.Slug,
			"article":        in.Article,
			"category_id":    in.CategoryID,
			"description":    in.Description,
			"price":          in.Price,
			"stock_quantity": in.StockQuantity,
			"is_published":   in.IsPublished,
			"is_active":      in.IsActive,
			"is_featured":    in.IsFeatured,
		}
		if err := tx.Model(&product).Updates(updates).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("product slug or article already used: %w", ErrConflict)
			}
			return fmt.Errorf("failed to update product: %w", err)
		}
		return tx.First(&product, id).Error
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return &product, nil
}

// DeleteProduct removes a product and its images.
// Products referenced by order items are protected.
func (s *ProductService) DeleteProduct(ctx context.Context, id uint) error {
	var images []models.ProductImage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, id).Error; err != nil {
			return notFound(err, "product")
		}

		var ordered int64
		if err := tx.Model(&models.OrderItem{}).Where("product_id = ?", id).Count(&ordered).Error; err != nil {
			return fmt.Errorf("failed to check order items: %w", err)
		}
		if ordered > 0 {
			return fmt.Errorf("product %q is part of %d order items: %w", product.Article, ordered, ErrProtected)
		}

		if err := tx.Where("product_id = ?", id).Find(&images).Error; err != nil {
			return fmt.Errorf("failed to load images: %w", err)
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductImage{}).Error; err != nil {
			return fmt.Errorf("failed to delete images: %w", err)
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return fmt.Errorf("failed to delete cart items: %w", err)
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.WishlistItem{}).Error; err != nil {
			return fmt.Errorf("failed to delete wishlist items: %w", err)
		}
		if err := tx.Delete(&product).Error; err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("product %q: %w", product.Article, ErrProtected)
			}
			return fmt.Errorf("failed to delete product: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, img := range images {
		s.removeStoredImage(ctx, img.ImageKey)
	}
	s.invalidate(ctx)
	return nil
}

// UploadImage stores the file and attaches it to the product
func (s *ProductService) UploadImage(ctx context.Context, productID uint, fileHeader *multipart.FileHeader, altText string, isMain bool) (*models.ProductImage, error) {
	if s.images == nil {
		return nil, fmt.Errorf("image storage is not configured")
	}
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	key, err := s.images.UploadImage(ctx, fileHeader, fmt.Sprintf("products/%d", productID))
	if err != nil {
		return nil, err
	}

	image, err := s.AddImage(ctx, productID, key, altText, isMain)
	if err != nil {
		s.removeStoredImage(ctx, key)
		return nil, err
	}
	return image, nil
}

// AddImage records an already stored image. The first image of a product becomes main.
func (s *ProductService) AddImage(ctx context.Context, productID uint, key, altText string, isMain bool) (*models.ProductImage, error) {
	image := models.ProductImage{ProductID: productID, ImageKey: key, AltText: altText}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.ProductImage{}).Where("product_id = ?", productID).Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to count images: %w", err)
		}
		image.SortOrder = int(existing)

		if err := tx.Create(&image).Error; err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("product %d: %w", productID, ErrNotFound)
			}
			return fmt.Errorf("failed to create image: %w", err)
		}
		if isMain || existing == 0 {
			if err := setExclusiveFlag(tx, &models.ProductImage{}, "product_id", productID, "is_main", image.ID); err != nil {
				return err
			}
			image.IsMain = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.attachImageURL(ctx, &image)
	return &image, nil
}

// SetMainImage makes the image the only main image of its product
func (s *ProductService) SetMainImage(ctx context.Context, productID, imageID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := setExclusiveFlag(tx, &models.ProductImage{}, "product_id", productID, "is_main", imageID)
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("image %d of product %d: %w", imageID, productID, ErrNotFound)
		}
		return err
	})
}

// DeleteImage removes an image row and its stored object
func (s *ProductService) DeleteImage(ctx context.Context, productID, imageID uint) error {
	var image models.ProductImage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND product_id = ?", imageID, productID).First(&image).Error; err != nil {
			return notFound(err, "image")
		}
		return tx.Delete(&image).Error
	})
	if err != nil {
		return err
	}

	s.removeStoredImage(ctx, image.ImageKey)
	return nil
}

func (s *ProductService) removeStoredImage(ctx context.Context, key string) {
	if s.images == nil {
		return
	}
	if err := s.images.DeleteImage(ctx, key); err != nil {
		slog.Warn("failed to delete stored image", "key", key, "error", err)
	}
}

func (s *ProductService) attachImageURLs(ctx context.Context, product *models.Product) {
	for i := range product.Images {
		s.attachImageURL(ctx, &product.Images[i])
	}
}

func (s *ProductService) attachImageURL(ctx context.Context, image *models.ProductImage) {
	if s.images == nil || image.ImageKey == "" {
		return
	}
	url, err := s.images.GetImageURL(ctx, image.ImageKey)
	if err != nil {
		slog.Warn("failed to build image URL", "key", image.ImageKey, "error", err)
		return
	}
	image.ImageURL = &url
}

func (s *ProductService) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		slog.Warn("failed to invalidate catalog cache", "error", err)
	}
}

func validateProductInput(in ProductInput) error {
	verrs := &ValidationErrors{}
	if strings.TrimSpace(in.Name) == "" {
		verrs.Add("name", "is required")
	}
	if !slugPattern.MatchString(in.Slug) {
		verrs.Add("slug", "must contain only lowercase letters, digits and hyphens")
	}
	if strings.TrimSpace(in.Article) == "" {
		verrs.Add("article", "is required")
	}
	if in.CategoryID == 0 {
		verrs.Add("category_id", "is required")
	}
	if in.Price.IsNegative() {
		verrs.Add("price", "must not be negative")
	}
	if in.StockQuantity < 0 {
		verrs.Add("stock_quantity", "must not be negative")
	}
	return verrs.OrNil()
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ironworks/storefront-api/models"
	"gorm.io/gorm"
)

// Breadcrumb is one step of the path from a root category to the current one
type Breadcrumb struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
	Path string `json:"path"`
	URL  string `json:"url"`
}

// CategoryNode is a category rendered for the public tree
type CategoryNode struct {
	ID           uint            `json:"id"`
	Name         string          `json:"name"`
	Slug         string          `json:"slug"`
	Path         string          `json:"path"`
	URL          string          `json:"url"`
	Description  string          `json:"description,omitempty"`
	IsFeatured   bool            `json:"is_featured"`
	Depth        int             `json:"depth"`
	ProductCount int64           `json:"product_count"`
	Children     []*CategoryNode `json:"children"`
}

// CategoryDetail is the public view of one category
type CategoryDetail struct {
	Category     models.Category   `json:"category"`
	Path         string            `json:"path"`
	Breadcrumbs  []Breadcrumb      `json:"breadcrumbs"`
	Children     []models.Category `json:"children"`
	ProductCount int64             `json:"product_count"`
}

// CategoryInput carries the editable fields of a category
type CategoryInput struct {
	Name        string `json:"name" binding:"required"`
	Slug        string `json:"slug" binding:"required"`
	ParentID    *uint  `json:"parent_id"`
	Description string `json:"description"`
	SortOrder   int    `json:"sort_order"`
	IsActive    bool   `json:"is_active"`
	IsFeatured  bool   `json:"is_featured"`
}

// ProductPage is one page of a product listing
type ProductPage struct {
	Items    []models.Product `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// ProductsSegment closes a category path that lists the subtree's products
const ProductsSegment = "products"

// CatalogService manages the category tree
type CatalogService struct {
	db    *gorm.DB
	cache *CategoryCache
}

// NewCatalogService creates a catalog service; cache may be nil
func NewCatalogService(db *gorm.DB, cache *CategoryCache) *CatalogService {
	return &CatalogService{db: db, cache: cache}
}

// visibleProducts limits a product query to published and active rows
func visibleProducts(db *gorm.DB) *gorm.DB {
	return db.Where("products.is_published = ? AND products.is_active = ?", true, true)
}

func (s *CatalogService) getCategory(ctx context.Context, id uint) (*models.Category, error) {
	var category models.Category
	if err := s.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, notFound(err, "category")
	}
	return &category, nil
}

// DescendantProductCount counts visible products in the category and all of its descendants
func (s *CatalogService) DescendantProductCount(ctx context.Context, categoryID uint) (int64, error) {
	category, err := s.getCategory(ctx, categoryID)
	if err != nil {
		return 0, err
	}
	return s.countInRange(ctx, category.Lft, category.Rgt)
}

func (s *CatalogService) countInRange(ctx context.Context, lft, rgt int) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Product{}).
		Scopes(visibleProducts).
		Joins("JOIN categories ON categories.id = products.category_id").
		Where("categories.lft BETWEEN ? AND ?", lft, rgt).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

// Breadcrumbs returns the path from the root to the category, inclusive
func (s *CatalogService) Breadcrumbs(ctx context.Context, categoryID uint) ([]Breadcrumb, error) {
	category, err := s.getCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	return s.breadcrumbsFor(ctx, category)
}

func (s *CatalogService) breadcrumbsFor(ctx context.Context, category *models.Category) ([]Breadcrumb, error) {
	var ancestors []models.Category
	if err := s.db.WithContext(ctx).
		Where("lft <= ? AND rgt >= ?", category.Lft, category.Rgt).
		Order("lft").
		Find(&ancestors).Error; err != nil {
		return nil, fmt.Errorf("failed to load ancestors: %w", err)
	}

	crumbs := make([]Breadcrumb, 0, len(ancestors))
	slugs := make([]string, 0, len(ancestors))
	for _, a := range ancestors {
		slugs = append(slugs, a.Slug)
		crumbs = append(crumbs, Breadcrumb{
			Name: a.Name, Slug: a.Slug, Path: strings.Join(slugs, "/"), URL: models.CatalogURL(slugs...),
		})
	}
	return crumbs, nil
}

// Tree returns the active categories as a nested tree in depth-first order
func (s *CatalogService) Tree(ctx context.Context) ([]*CategoryNode, error) {
	key, err := s.cache.BuildKey(ctx, "tree")
	if err != nil {
		slog.Warn("catalog cache unavailable", "error", err)
		return s.buildTree(ctx)
	}

	var tree []*CategoryNode
	err = s.cache.FetchJSON(ctx, key, &tree, func(ctx context.Context) (interface{}, error) {
		return s.buildTree(ctx)
	})
	return tree, err
}

func (s *CatalogService) buildTree(ctx context.Context) ([]*CategoryNode, error) {
	var categories []models.Category
	if err := s.db.WithContext(ctx).Order("lft").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	type directCount struct {
		CategoryID uint
		Count      int64
	}
	var counts []directCount
	if err := s.db.WithContext(ctx).Model(&models.Product{}).
		Scopes(visibleProducts).
		Select("category_id, count(*) AS count").
		Group("category_id").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}
	direct := make(map[uint]int64, len(counts))
	for _, c := range counts {
		direct[c.CategoryID] = c.Count
	}

	roots := []*CategoryNode{}
	var stack []*CategoryNode
	var bounds []models.Category
	hiddenUntil := 0
	for i, c := range categories {
		if c.Lft < hiddenUntil {
			continue
		}
		if !c.IsActive {
			// the whole subtree of an inactive category is hidden
			hiddenUntil = c.Rgt
			continue
		}

		var total int64
		for j := i; j < len(categories) && categories[j].Lft <= c.Rgt; j++ {
			total += direct[categories[j].ID]
		}

		for len(stack) > 0 && bounds[len(bounds)-1].Rgt < c.Lft {
			stack = stack[:len(stack)-1]
			bounds = bounds[:len(bounds)-1]
		}

		node := &CategoryNode{
			ID: c.ID, Name: c.Name, Slug: c.Slug, Path: c.Slug,
			Description: c.Description, IsFeatured: c.IsFeatured, Depth: c.Depth,
			ProductCount: total, Children: []*CategoryNode{},
		}
		if len(stack) == 0 {
			roots = append(roots, node)
		} else {
			parent := stack[len(stack)-1]
			node.Path = parent.Path + "/" + c.Slug
			parent.Children = append(parent.Children, node)
		}
		node.URL = models.CatalogURL(node.Path)
		stack = append(stack, node)
		bounds = append(bounds, c)
	}
	return roots, nil
}

// PublicCategory returns an active category by its slug path ("steel/bolts")
// with its breadcrumbs and active children
func (s *CatalogService) PublicCategory(ctx context.Context, path string) (*CategoryDetail, error) {
	category, err := activeCategoryByPath(s.db.WithContext(ctx), path)
	if err != nil {
		return nil, err
	}

	crumbs, err := s.breadcrumbsFor(ctx, category)
	if err != nil {
		return nil, err
	}

	var children []models.Category
	if err := s.db.WithContext(ctx).
		Where("parent_id = ? AND is_active = ?", category.ID, true).
		Order("lft").
		Find(&children).Error; err != nil {
		return nil, fmt.Errorf("failed to load children: %w", err)
	}

	count, err := s.countInRange(ctx, category.Lft, category.Rgt)
	if err != nil {
		return nil, err
	}

	return &CategoryDetail{
		Category: *category, Path: crumbs[len(crumbs)-1].Path,
		Breadcrumbs: crumbs, Children: children, ProductCount: count,
	}, nil
}

// activeCategoryByPath walks a slug path from a root along parent_id.
// Every category on the way must be active, so a hidden ancestor hides its whole subtree.
func activeCategoryByPath(db *gorm.DB, path string) (*models.Category, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, fmt.Errorf("category: %w", ErrNotFound)
	}

	var category *models.Category
	for _, slug := range strings.Split(path, "/") {
		query := db.Where("slug = ?", slug)
		if category == nil {
			query = query.Where("parent_id IS NULL")
		} else {
			query = query.Where("parent_id = ?", category.ID)
		}

		var next models.Category
		if err := query.First(&next).Error; err != nil {
			return nil, notFound(err, "category")
		}
		if !next.IsActive {
			return nil, fmt.Errorf("category %q: %w", path, ErrNotFound)
		}
		category = &next
	}
	return category, nil
}

// CategoryProducts lists visible products of the subtree at the slug path
func (s *CatalogService) CategoryProducts(ctx context.Context, path string, page, pageSize int) (*ProductPage, error) {
	category, err := activeCategoryByPath(s.db.WithContext(ctx), path)
	if err != nil {
		return nil, err
	}
	page, pageSize = normalizePage(page, pageSize)

	query := s.db.WithContext(ctx).Model(&models.Product{}).
		Scopes(visibleProducts).
		Joins("JOIN categories ON categories.id = products.category_id").
		Where("categories.lft BETWEEN ? AND ?", category.Lft, category.Rgt).
		Session(&gorm.Session{})

	result := &ProductPage{Page: page, PageSize: pageSize}
	if err := query.Count(&result.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}
	if err := query.Preload("Images", orderImages).
		Order("products.name").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&result.Items).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return result, nil
}

// ListCategories returns every category in tree order (admin view)
func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := s.db.WithContext(ctx).Order("lft").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// CreateCategory inserts a category and renumbers the tree
func (s *CatalogService) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	if err := validateCategoryInput(in); err != nil {
		return nil, err
	}

	category := models.Category{
		Name:        in.Name,
		Slug:        in.Slug,
		ParentID:    in.ParentID,
		Description: in.Description,
		SortOrder:   in.SortOrder,
		IsActive:    in.IsActive,
		IsFeatured:  in.IsFeatured,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := LockTree(tx); err != nil {
			return err
		}
		if in.ParentID != nil {
			var parent models.Category
			if err := tx.First(&parent, *in.ParentID).Error; err != nil {
				return notFound(err, "parent category")
			}
		}
		if err := ensureSlugFree(tx, in.Slug, in.ParentID, 0); err != nil {
			return err
		}
		if err := tx.Create(&category).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("category slug %q: %w", in.Slug, ErrConflict)
			}
			return fmt.Errorf("failed to create category: %w", err)
		}
		if err := RebuildTree(tx); err != nil {
			return err
		}
		return tx.First(&category, category.ID).Error
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return &category, nil
}

// UpdateCategory edits a category; moving it under itself or a descendant fails with ErrCycle
func (s *CatalogService) UpdateCategory(ctx context.Context, id uint, in CategoryInput) (*models.Category, error) {
	if err := validateCategoryInput(in); err != nil {
		return nil, err
	}

	var category models.Category
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := LockTree(tx); err != nil {
			return err
		}
		if err := tx.First(&category, id).Error; err != nil {
			return notFound(err, "category")
		}

		if in.ParentID != nil {
			var parent models.Category
			if err := tx.First(&parent, *in.ParentID).Error; err != nil {
				return notFound(err, "parent category")
			}
			if parent.ID == category.ID || category.Contains(parent) {
				return ErrCycle
			}
		}
		if err := ensureSlugFree(tx, in.Slug, in.ParentID, category.ID); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"name":        in.Name,
			"slug":        in.Slug,
			"parent_id":   in.ParentID,
			"description": in.Description,
			"sort_order":  in.SortOrder,
			"is_active":   in.IsActive,
			"is_featured": in.IsFeatured,
		}
		if err := tx.Model(&category).Updates(updates).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("category slug %q: %w", in.Slug, ErrConflict)
			}
			return fmt.Errorf("failed to update category: %w", err)
		}
		if err := RebuildTree(tx); err != nil {
			return err
		}
		return tx.First(&category, id).Error
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return &category, nil
}

// DeleteCategory removes a category with its whole subtree.
// It fails with ErrProtected while any product belongs to the subtree.
func (s *CatalogService) DeleteCategory(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := LockTree(tx); err != nil {
			return err
		}
		var category models.Category
		if err := tx.First(&category, id).Error; err != nil {
			return notFound(err, "category")
		}

		subtree := tx.Model(&models.Category{}).Select("id").
			Where("lft BETWEEN ? AND ?", category.Lft, category.Rgt)

		var products int64
		if err := tx.Model(&models.Product{}).Where("category_id IN (?)", subtree).Count(&products).Error; err != nil {
			return fmt.Errorf("failed to count products: %w", err)
		}
		if products > 0 {
			return fmt.Errorf("category %q has %d products: %w", category.Slug, products, ErrProtected)
		}

		if err := tx.Where("lft BETWEEN ? AND ?", category.Lft, category.Rgt).Delete(&models.Category{}).Error; err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("category %q: %w", category.Slug, ErrProtected)
			}
			return fmt.Errorf("failed to delete category: %w", err)
		}
		return RebuildTree(tx)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	return nil
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		slog.Warn("failed to invalidate catalog cache", "error", err)
	}
}

// ensureSlugFree checks slug uniqueness among siblings.
// The unique index cannot see duplicates between roots because NULL parents never compare equal.
func ensureSlugFree(tx *gorm.DB, slug string, parentID *uint, exceptID uint) error {
	query := tx.Model(&models.Category{}).Where("slug = ?", slug)
	if parentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parentID)
	}
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check slug: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("category slug %q: %w", slug, ErrConflict)
	}
	return nil
}

func validateCategoryInput(in CategoryInput) error {
	verrs := &ValidationErrors{}
	if strings.TrimSpace(in.Name) == "" {
		verrs.Add("name", "is required")
	}
	if !slugPattern.MatchString(in.Slug) {
		verrs.Add("slug", "must contain only lowercase letters, digits and hyphens")
	} else if in.Slug == ProductsSegment {
		verrs.Add("slug", "is reserved")
	}
	return verrs.OrNil()
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

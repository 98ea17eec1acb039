package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ironworks/storefront-api/models"
	"github.com/ironworks/storefront-api/tests/testdb"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createCategory(t *testing.T, svc *CatalogService, name, slug string, parentID *uint, sortOrder int) *models.Category {
	t.Helper()
	category, err := svc.CreateCategory(context.Background(), CategoryInput{
		Name: name, Slug: slug, ParentID: parentID, SortOrder: sortOrder, IsActive: true,
	})
	require.NoError(t, err)
	return category
}

func reloadCategory(t *testing.T, db *gorm.DB, id uint) models.Category {
	t.Helper()
	var c models.Category
	require.NoError(t, db.First(&c, id).Error)
	return c
}

func TestDescendantProductCount(t *testing.T) {
	db := testdb.New(t)
	svc := NewCatalogService(db, nil)
	ctx := context.Background()

	a := createCategory(t, svc, "Pipes", "pipes", nil, 0)
	b := createCategory(t, svc, "Steel pipes", "steel-pipes", &a.ID, 0)

	testdb.CreateProduct(t, db, a.ID, "p1")
	testdb.CreateProduct(t, db, a.ID, "p2", testdb.Unpublished())
	testdb.CreateProduct(t, db, b.ID, "p3")

	count, err := svc.DescendantProductCount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "p1 and p3 count, unpublished p2 does not")

	count, err = svc.DescendantProductCount(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = svc.DescendantProductCount(ctx, 9999)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDescendantProductCountExcludesInactiveProducts(t *testing.T) {
	db := testdb.New(t)
	svc := NewCatalogService(db, nil)

	a := createCategory(t, svc, "Sheets", "sheets", nil, 0)
	testdb.CreateProduct(t, db, a.ID, "s1")
	inactive := testdb.CreateProduct(t, db, a.ID, "s2")
	require.NoError(t, db.Model(inactive).Update("is_active", false).Error)

	count, err := svc.DescendantProductCount(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRebuildTreeNumbersNestedSet(t *testing.T) {
	db := testdb.New(t)
	svc := NewCatalogService(db, nil)

	root := createCategory(t, svc, "Metal", "metal", nil, 0)
	second := createCategory(t, svc, "Beams", "beams", &root.ID, 2)
	first := createCategory(t, svc, "Angles", "angles", &root.ID, 1)
	leaf := createCategory(t, svc, "Equal angles", "equal-angles", &first.ID, 0)
	other := createCategory(t, svc, "Fasteners", "fasteners", nil, 1)

	r := reloadCategory(t, db, root.ID)
	f := reloadCategory(t, db, first.ID)
	l := reloadCategory(t, db, leaf.ID)
	s := reloadCategory(t, db, second.ID)
	o := reloadCategory(t, db, other.ID)

	assert.Equal(t, [3]int{1, 8, 0}, [3]int{r.Lft, r.Rgt, r.Depth})
	assert.Equal(t, [3]int{2, 5, 1}, [3]int{f.Lft, f.Rgt, f.Depth}, "sort_order 1 comes before 2")
	assert.Equal(t, [3]int{3, 4, 2}, [3]int{l.Lft, l.Rgt, l.Depth})
	assert.Equal(t, [3]int{6, 7, 1}, [3]int{s.Lft, s.Rgt, s.Depth})
	assert.Equal(t, [3]int{9, 10, 0}, [3]int{o.Lft, o.Rgt, o.Depth})
}

func TestBreadcrumbs(t *testing.T) {
	db := testdb.New(t)
	svc := NewCatalogService(db, nil)

	root := createCategory(t, svc, "Metal", "metal", nil, 0)
	mid := createCategory(t, svc, "Angles", "angles", &root.ID, 0)
	leaf := createCategory(t, svc, "Equal angles", "equal-angles", &mid.ID, 0)
	createCategory(t, svc, "Beams", "beams", &root.ID, 0)

	crumbs, err := svc.Breadcrumbs(context.Background(), leaf.ID)
	require.NoError(t, err)
	assert.Equal(t, []Breadcrumb{
		{Name: "Metal", Slug: "metal", Path: "metal", URL: "/catalog/metal"},
		{Name: "Angles", Slug: "angles", Path: "metal/angles", URL: "/catalog/metal/angles"},
		{Name: "Equal angles", Slug: "equal-angles", Path: "metal/angles/equal-angles", URL: "/catalog/metal/angles/equal-angles"},
	}, crumbs)

	crumbs, err = svc.Breadcrumbs(context.Background(), root.ID)
	require.NoError(t, err)
	assert.Len(t, crumbs, 1)
}

func TestUpdateCategoryRejectsCycles(t *testing.T) {
	db := testdb.New(t)
	svc := NewCatalogService(db, nil)
	ctx := context.Background()

	a := createCategory(t, svc, "A", "a", nil, 0)
	b := createCategory(t, svc, "B", "b", &a.ID, 0)
	c := createCategory(t, svc, "C", "c", &b.ID, 0)

	_, err := svc.UpdateCategory(ctx, a.ID, CategoryInput{Name: "A", Slug: "a", ParentID: &c.ID, IsActive: true})
	assert.True(t, errors.Is(err, ErrCycle), "moving under a descendant")

	_, err = svc.UpdateCategory(ctx, a.ID, CategoryInput{Name: "A", Slug: "a", ParentID: &a.ID, IsActive: true})
	assert.True(t, errors.Is(err, ErrCycle), "moving under itself")

	// moving a subtree to the root renumbers it
	moved, err := svc.UpdateCategory(ctx, b.ID, CategoryInput{Name: "B", Slug: "b", IsActive: true})
	require.NoError(t, err)
	assert.Nil(t, moved.ParentID)
	assert.Equal(t, 0, moved.Depth)
	assert.Equal(t, 1, reloadCategory(t, db, c.ID).Depth)
	assert.False(t, reloadCategory(t, db, a.ID).Contains(reloadCategory(t, db, c.ID)))
}

func TestCreateCategorySlugUniqueness(t *testing.T) {
	db := testdb.New(t)
	svc := NewCatalogService(db, nil)
	ctx := context.Background()

	a := createCategory(t, svc, "A", "shared", nil, 0)
	b := createCategory(t, svc, "B", "b", nil, 0)

	_, err := svc.CreateCategory(ctx, CategoryInput{Name: "Dup root", Slug: "shared", IsActive: true})
	assert.True(t, errors.Is(err, ErrConflict), "root slugs must be unique too")

	createCategory(t, svc, "Child", "child", &a.ID, 0)
	_, err = svc.CreateCategory(ctx, CategoryInput{Name: "Child 2", Slug: "child", ParentID: &a.ID, IsActive: true})
	assert.True(t, errors.Is(err, ErrConflict))

	// the same slug under another parent is fine
	createCategory(t, svc, "Child", "child", &b.ID, 0)

	_, err = svc.CreateCategory(ctx, CategoryInput{Name: "", Slug: "Bad Slug"})
	var verrs *ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.True(t, verrs.Has("name"))
	assert.True(t, verrs.Has("slug"))
}

func TestDeleteCategory(t *testing.T) {
	db := testdb.New(t)
	svc := NewCatalogService(db, nil)
	ctx := context.Background()

	a := createCategory(t, svc, "A", "a", nil, 0)
	b := createCategory(t, svc, "B", "b", &a.ID, 0)
	c := createCategory(t, svc, "C", "c", &b.ID, 0)
	keep := createCategory(t, svc, "Keep", "keep", nil, 0)

	product := testdb.CreateProduct(t, db, c.ID, "deep-product")

	err := svc.DeleteCategory(ctx, a.ID)
	assert.True(t, errors.Is(err, ErrProtected), "a product deep in the subtree protects it")

	require.NoError(t, db.Delete(product).Error)
	require.NoError(t, svc.DeleteCategory(ctx, a.ID))

	var remaining []models.Category
	require.NoError(t, db.Order("lft").Find(&remaining).Error)
	require.Len(t, remaining, 1, "children are deleted with their parent")
	assert.Equal(t, keep.ID, remaining[0].ID)
	assert.Equal(t, 1, remaining[0].Lft)
	assert.Equal(t, 2, remaining[0].Rgt)

	assert.True(t, errors.Is(svc.DeleteCategory(ctx, a.ID), ErrNotFound))
}

func TestTreeAndPublicCategory(t *testing.T) {
	db := testdb.New(t)
	svc := NewCatalogService(db, nil)
	ctx := context.Background()

	root := createCategory(t, svc, "Metal", "metal", nil, 0)
	child := createCategory(t, svc, "Angles", "angles", &root.ID, 0)
	hidden, err := svc.CreateCategory(ctx, CategoryInput{Name: "Hidden", Slug: "hidden", ParentID: &root.ID})
	require.NoError(t, err)
	createCategory(t, svc, "Under hidden", "under-hidden", &hidden.ID, 0)

	testdb.CreateProduct(t, db, root.ID, "r1")
	testdb.CreateProduct(t, db, child.ID, "c1")
	testdb.CreateProduct(t, db, child.ID, "c2")

	tree, err := svc.Tree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, "metal", tree[0].Slug)
	assert.Equal(t, int64(3), tree[0].ProductCount)
	require.Len(t, tree[0].Children, 1, "inactive categories and their subtrees are hidden")
	assert.Equal(t, "angles", tree[0].Children[0].Slug)
	assert.Equal(t, "/catalog/metal/angles", tree[0].Children[0].URL)
	assert.Equal(t, int64(2), tree[0].Children[0].ProductCount)

	detail, err := svc.PublicCategory(ctx, "metal/angles")
	require.NoError(t, err)
	assert.Equal(t, int64(2), detail.ProductCount)
	assert.Equal(t, "metal/angles", detail.Path)
	assert.Len(t, detail.Breadcrumbs, 2)

	_, err = svc.PublicCategory(ctx, "angles")
	assert.True(t, errors.Is(err, ErrNotFound), "a child is only reachable through its parent")

	_, err = svc.PublicCategory(ctx, "metal/hidden")
	assert.True(t, errors.Is(err, ErrNotFound), "inactive category is not found")

	_, err = svc.PublicCategory(ctx, "metal/hidden/under-hidden")
	assert.True(t, errors.Is(err, ErrNotFound), "active child of an inactive category is not found")

	_, err = svc.CategoryProducts(ctx, "metal/hidden/under-hidden", 1, 10)
	assert.True(t, errors.Is(err, ErrNotFound))

	page, err := svc.CategoryProducts(ctx, "metal", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 2)
}

func TestTreeIsCachedAndInvalidated(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	db := testdb.New(t)
	cache := NewCategoryCache(client, time.Minute)
	svc := NewCatalogService(db, cache)
	ctx := context.Background()

	createCategory(t, svc, "Metal", "metal", nil, 0)

	tree, err := svc.Tree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 1)

	key, err := cache.BuildKey(ctx, "tree")
	require.NoError(t, err)
	assert.True(t, mr.Exists(key), "tree is stored under the versioned key")

	// a write outside the service is not visible while cached
	require.NoError(t, db.Model(&models.Category{}).Where("slug = ?", "metal").Update("name", "Steel").Error)
	tree, err = svc.Tree(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Metal", tree[0].Name)

	// any catalog write through the service bumps the version
	createCategory(t, svc, "Fasteners", "fasteners", nil, 1)
	tree, err = svc.Tree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, "Steel", tree[0].Name)

	newKey, err := cache.BuildKey(ctx, "tree")
	require.NoError(t, err)
	assert.NotEqual(t, key, newKey)
}

func TestCategoryCacheWithoutRedisPassesThrough(t *testing.T) {
	var cache *CategoryCache
	calls := 0
	var out []string
	err := cache.FetchJSON(context.Background(), "k", &out, func(context.Context) (interface{}, error) {
		calls++
		return []string{"a"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, out)
	assert.Equal(t, 1, calls)
	assert.NoError(t, cache.Bump(context.Background()))
}

func TestCategoryCacheLoadSurvivesCancelledCaller(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	cache := NewCategoryCache(client, time.Minute)

	started := make(chan struct{})
	release := make(chan struct{})
	loaderErr := make(chan error, 1)
	calls := 0
	loader := func(ctx context.Context) (interface{}, error) {
		calls++
		close(started)
		<-release
		loaderErr <- ctx.Err()
		return []string{"metal"}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		var out []string
		firstErr <- cache.FetchJSON(ctx, "catalog:test", &out, loader)
	}()

	<-started
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled, "a cancelled caller stops waiting")

	close(release)
	assert.NoError(t, <-loaderErr, "the shared load is not cancelled with its first caller")
	assert.Eventually(t, func() bool { return mr.Exists("catalog:test") }, time.Second, 10*time.Millisecond)

	var out []string
	require.NoError(t, cache.FetchJSON(context.Background(), "catalog:test", &out, loader))
	assert.Equal(t, []string{"metal"}, out)
	assert.Equal(t, 1, calls)
}

func TestSameSlugUnderDifferentParents(t *testing.T) {
	db := testdb.New(t)
	svc := NewCatalogService(db, nil)
	ctx := context.Background()

	steel := createCategory(t, svc, "Steel", "steel", nil, 0)
	aluminium := createCategory(t, svc, "Aluminium", "aluminium", nil, 1)
	steelBolts := createCategory(t, svc, "Bolts", "bolts", &steel.ID, 0)
	aluBolts := createCategory(t, svc, "Bolts", "bolts", &aluminium.ID, 0)
	testdb.CreateProduct(t, db, aluBolts.ID, "alu-m8")

	detail, err := svc.PublicCategory(ctx, "aluminium/bolts")
	require.NoError(t, err)
	assert.Equal(t, aluBolts.ID, detail.Category.ID)
	assert.Equal(t, int64(1), detail.ProductCount)
	assert.Equal(t, "/catalog/aluminium/bolts", detail.Breadcrumbs[1].URL)

	detail, err = svc.PublicCategory(ctx, "steel/bolts")
	require.NoError(t, err)
	assert.Equal(t, steelBolts.ID, detail.Category.ID)
	assert.Equal(t, int64(0), detail.ProductCount)
	assert.Equal(t, "/catalog/steel/bolts", detail.Breadcrumbs[1].URL)

	page, err := svc.CategoryProducts(ctx, "steel/bolts", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.Total)
	page, err = svc.CategoryProducts(ctx, "/aluminium/bolts/", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	tree, err := svc.Tree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, "/catalog/steel/bolts", tree[0].Children[0].URL)
	assert.Equal(t, "/catalog/aluminium/bolts", tree[1].Children[0].URL)
}

func TestInactiveAncestorHidesSubtree(t *testing.T) {
	db := testdb.New(t)
	svc := NewCatalogService(db, nil)
	ctx := context.Background()

	root, err := svc.CreateCategory(ctx, CategoryInput{Name: "Archive", Slug: "archive"})
	require.NoError(t, err)
	child := createCategory(t, svc, "Old fittings", "old-fittings", &root.ID, 0)
	testdb.CreateProduct(t, db, child.ID, "old-elbow")

	_, err = svc.PublicCategory(ctx, "archive/old-fittings")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = svc.CategoryProducts(ctx, "archive/old-fittings", 1, 10)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = svc.UpdateCategory(ctx, root.ID, CategoryInput{Name: "Archive", Slug: "archive", IsActive: true})
	require.NoError(t, err)
	detail, err := svc.PublicCategory(ctx, "archive/old-fittings")
	require.NoError(t, err)
	assert.Equal(t, int64(1), detail.ProductCount)
}

func TestProductsSlugIsReserved(t *testing.T) {
	svc := NewCatalogService(testdb.New(t), nil)

	_, err := svc.CreateCategory(context.Background(), CategoryInput{Name: "Products", Slug: "products", IsActive: true})
	var verrs *ValidationErrors
	require.True(t, errors.As(err, &verrs))
}

package services

import (
	"fmt"
	"sort"

	"github.com/ironworks/storefront-api/config"
	"github.com/ironworks/storefront-api/models"
	"gorm.io/gorm"
)

// categoryTreeLockKey names the postgres advisory lock held by tree writers
const categoryTreeLockKey = 0x63617467

// treeLockSQL returns the statement that serializes tree writers on the dialect.
// SQLite allows a single writer, so it needs none.
func treeLockSQL(dialect string) string {
	switch dialect {
	case config.DriverPostgres:
		return fmt.Sprintf("SELECT pg_advisory_xact_lock(%d)", categoryTreeLockKey)
	case config.DriverMySQL:
		return "SELECT id FROM categories FOR UPDATE"
	default:
		return ""
	}
}

// LockTree blocks until no other transaction is restructuring the tree.
// Call it first thing in the transaction, before reading or writing categories;
// the lock is released on commit or rollback.
func LockTree(tx *gorm.DB) error {
	stmt := treeLockSQL(tx.Dialector.Name())
	if stmt == "" {
		return nil
	}
	if err := tx.Exec(stmt).Error; err != nil {
		return fmt.Errorf("failed to lock category tree: %w", err)
	}
	return nil
}

type treeNode struct {
	id        uint
	parentID  *uint
	name      string
	sortOrder int
	lft, rgt  int
	depth     int
}

// RebuildTree recomputes lft, rgt and depth for every category.
// It must run inside the transaction that changed the structure, after LockTree.
func RebuildTree(tx *gorm.DB) error {
	if err := LockTree(tx); err != nil {
		return err
	}

	var rows []models.Category
	if err := tx.Select("id", "parent_id", "name", "sort_order", "lft", "rgt", "depth").
		Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}

	children := make(map[uint][]*treeNode)
	var roots []*treeNode
	nodes := make([]*treeNode, 0, len(rows))
	for _, row := range rows {
		n := &treeNode{
			id: row.ID, parentID: row.ParentID, name: row.Name, sortOrder: row.SortOrder,
			lft: row.Lft, rgt: row.Rgt, depth: row.Depth,
		}
		nodes = append(nodes, n)
		if n.parentID == nil {
			roots = append(roots, n)
		} else {
			children[*n.parentID] = append(children[*n.parentID], n)
		}
	}

	bySortOrder := func(list []*treeNode) {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].sortOrder != list[j].sortOrder {
				return list[i].sortOrder < list[j].sortOrder
			}
			if list[i].name != list[j].name {
				return list[i].name < list[j].name
			}
			return list[i].id < list[j].id
		})
	}

	type bounds struct{ lft, rgt, depth int }
	computed := make(map[uint]bounds, len(nodes))
	counter := 0
	var walk func(n *treeNode, depth int)
	walk = func(n *treeNode, depth int) {
		counter++
		lft := counter
		kids := children[n.id]
		bySortOrder(kids)
		for _, kid := range kids {
			walk(kid, depth+1)
		}
		counter++
		computed[n.id] = bounds{lft: lft, rgt: counter, depth: depth}
	}

	bySortOrder(roots)
	for _, root := range roots {
		walk(root, 0)
	}

	// a node never visited from a root sits on a cycle
	if len(computed) != len(nodes) {
		return ErrCycle
	}

	for _, n := range nodes {
		b := computed[n.id]
		if b.lft == n.lft && b.rgt == n.rgt && b.depth == n.depth {
			continue
		}
		if err := tx.Model(&models.Category{}).Where("id = ?", n.id).
			UpdateColumns(map[string]interface{}{"lft": b.lft, "rgt": b.rgt, "depth": b.depth}).Error; err != nil {
			return fmt.Errorf("failed to update tree bounds: %w", err)
		}
	}
	return nil
}

// Package catalog provides the sellables referenced by sale items and their
// hierarchical categories.
package catalog

import (
	"context"
	"fmt"

	"stoq/internal/core/apperror"
	"stoq/internal/core/entity"
	"stoq/internal/core/id"
	"stoq/internal/core/types"
)

// Category groups sellables; ParentID builds the hierarchy.
type Category struct {
	entity.Catalog
}

// NewCategory creates a category, optionally below parent.
func NewCategory(code, description string, parent *id.ID) *Category {
	c := &Category{Catalog: entity.NewCatalog(code, description)}
	c.ParentID = parent
	return c
}

// Sellable is anything that can be put on a sale: a product or a service.
type Sellable struct {
	entity.Catalog

	CategoryID *id.ID      `db:"category_id" json:"categoryId,omitempty"`
	Price      types.Money `db:"price" json:"price"`
	IsService  bool        `db:"is_service" json:"isService"`
	// ManageStock is false for products sold without stock control.
	ManageStock bool `db:"manage_stock" json:"manageStock"`
}

// NewProduct creates a stock-controlled product sellable.
func NewProduct(code, description string, price types.Money, category *id.ID) *Sellable {
	return &Sellable{
		Catalog:     entity.NewCatalog(code, description),
		CategoryID:  category,
		Price:       price,
		ManageStock: true,
	}
}

// NewService creates a service sellable.
func NewService(code, description string, price types.Money, category *id.ID) *Sellable {
	return &Sellable{
		Catalog:    entity.NewCatalog(code, description),
		CategoryID: category,
		Price:      price,
		IsService:  true,
	}
}

// Stockable reports whether returning or selling the sellable moves stock.
func (s *Sellable) Stockable() bool {
	return !s.IsService && s.ManageStock
}

// Validate implements entity.Validatable.
func (s *Sellable) Validate(ctx context.Context) error {
	if err := s.Catalog.Validate(ctx); err != nil {
		return err
	}
	if s.Price.IsNegative() {
		return apperror.NewInvalidValue("price", "price must not be negative")
	}
	return nil
}

// Repository stores sellables and categories.
type Repository interface {
	GetSellable(ctx context.Context, sellableID id.ID) (*Sellable, error)
	SaveSellable(ctx context.Context, s *Sellable) error
	GetCategory(ctx context.Context, categoryID id.ID) (*Category, error)
	SaveCategory(ctx context.Context, c *Category) error
}

// maxCategoryDepth bounds the walk up the hierarchy.
const maxCategoryDepth = 32

// CategoryChain returns categoryID followed by its ancestors, nearest first.
func CategoryChain(ctx context.Context, repo Repository, categoryID id.ID) ([]*Category, error) {
	var chain []*Category
	next := &categoryID
	seen := make(map[id.ID]bool)
	for next != nil {
		if seen[*next] || len(chain) >= maxCategoryDepth {
			return nil, apperror.NewValidation("category hierarchy contains a cycle").
				WithDetail("category_id", categoryID.String())
		}
		seen[*next] = true

		c, err := repo.GetCategory(ctx, *next)
		if err != nil {
			return nil, fmt.Errorf("get category %s: %w", next, err)
		}
		chain = append(chain, c)
		next = c.ParentID
	}
	return chain, nil
}

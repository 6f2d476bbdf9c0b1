// Package catalog_repo stores the reference data of the payment core:
// sellables, their categories and the persons that take part in operations.
package catalog_repo

import (
	"context"

	"stoq/internal/core/id"
	"stoq/internal/domain/catalog"
	"stoq/internal/infrastructure/storage/postgres"
)

// SellableRepo implements catalog.Repository.
type SellableRepo struct {
	sellables  postgres.Table[catalog.Sellable]
	categories postgres.Table[catalog.Category]
}

var _ catalog.Repository = (*SellableRepo)(nil)

// NewSellableRepo creates the sellable repository.
func NewSellableRepo(txm *postgres.TxManager) *SellableRepo {
	return &SellableRepo{
		sellables:  postgres.NewTable[catalog.Sellable](txm, "sellables", "sellable"),
		categories: postgres.NewTable[catalog.Category](txm, "sellable_categories", "sellable category"),
	}
}

func (r *SellableRepo) GetSellable(ctx context.Context, sellableID id.ID) (*catalog.Sellable, error) {
	return r.sellables.GetByID(ctx, sellableID)
}

// SaveSellable inserts or replaces a sellable.
func (r *SellableRepo) SaveSellable(ctx context.Context, s *catalog.Sellable) error {
	return r.sellables.Upsert(ctx, s, "id")
}

func (r *SellableRepo) GetCategory(ctx context.Context, categoryID id.ID) (*catalog.Category, error) {
	return r.categories.GetByID(ctx, categoryID)
}

// SaveCategory inserts or replaces a category.
func (r *SellableRepo) SaveCategory(ctx context.Context, c *catalog.Category) error {
	return r.categories.Upsert(ctx, c, "id")
}

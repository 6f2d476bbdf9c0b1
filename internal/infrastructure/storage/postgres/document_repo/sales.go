// Package document_repo stores the commercial operations of the payment
// core: sales, returned sales and renegotiations, with their lines.
package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stoq/internal/core/id"
	"stoq/internal/domain/sale"
	"stoq/internal/infrastructure/storage/postgres"
)

// SaleRepo implements sale.Repository. Items are kept in insertion order.
type SaleRepo struct {
	txm   *postgres.TxManager
	sales postgres.Table[sale.Sale]
	items postgres.Table[sale.Item]
}

var _ sale.Repository = (*SaleRepo)(nil)

// NewSaleRepo creates the sale repository.
func NewSaleRepo(txm *postgres.TxManager) *SaleRepo {
	return &SaleRepo{
		txm:   txm,
		sales: postgres.NewTable[sale.Sale](txm, "sales", "sale"),
		items: postgres.NewTable[sale.Item](txm, "sale_items", "sale item"),
	}
}

// CreateSale inserts the header and any items already on s.
func (r *SaleRepo) CreateSale(ctx context.Context, s *sale.Sale) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := r.sales.Insert(ctx, s); err != nil {
			return err
		}
		for i := range s.Items {
			if err := r.items.Insert(ctx, &s.Items[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateSale saves the header; items are written through AddItem.
func (r *SaleRepo) UpdateSale(ctx context.Context, s *sale.Sale) error {
	if err := r.sales.UpdateVersioned(ctx, s, s.ID, s.Version); err != nil {
		return err
	}
	s.Version++
	return nil
}

func (r *SaleRepo) GetSale(ctx context.Context, saleID id.ID) (*sale.Sale, error) {
	return r.load(ctx, r.sales.Select().Where(squirrel.Eq{"id": saleID}), saleID.String())
}

func (r *SaleRepo) GetSaleByGroup(ctx context.Context, groupID id.ID) (*sale.Sale, error) {
	return r.load(ctx, r.sales.Select().Where(squirrel.Eq{"group_id": groupID}), groupID.String())
}

func (r *SaleRepo) load(ctx context.Context, q squirrel.SelectBuilder, key string) (*sale.Sale, error) {
	s, err := r.sales.Get(ctx, q, key)
	if err != nil {
		return nil, err
	}
	items, err := r.items.List(ctx, r.items.Select().Where(squirrel.Eq{"sale_id": s.ID}).OrderBy("position"))
	if err != nil {
		return nil, err
	}
	s.Items = make([]sale.Item, 0, len(items))
	for _, it := range items {
		s.Items = append(s.Items, *it)
	}
	return s, nil
}

func (r *SaleRepo) AddItem(ctx context.Context, item *sale.Item) error {
	return r.items.Insert(ctx, item)
}

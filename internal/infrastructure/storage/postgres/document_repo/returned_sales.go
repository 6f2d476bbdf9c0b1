package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stoq/internal/core/apperror"
	"stoq/internal/core/id"
	"stoq/internal/domain/returns"
	"stoq/internal/infrastructure/storage/postgres"
)

// ReturnedSaleRepo implements returns.Repository.
type ReturnedSaleRepo struct {
	txm      *postgres.TxManager
	returned postgres.Table[returns.ReturnedSale]
	items    postgres.Table[returns.Item]
}

var _ returns.Repository = (*ReturnedSaleRepo)(nil)

// NewReturnedSaleRepo creates the returned sale repository.
func NewReturnedSaleRepo(txm *postgres.TxManager) *ReturnedSaleRepo {
	return &ReturnedSaleRepo{
		txm:      txm,
		returned: postgres.NewTable[returns.ReturnedSale](txm, "returned_sales", "returned sale"),
		items:    postgres.NewTable[returns.Item](txm, "returned_sale_items", "returned item"),
	}
}

// CreateReturnedSale inserts the header and its items.
func (r *ReturnedSaleRepo) CreateReturnedSale(ctx context.Context, rs *returns.ReturnedSale) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := r.returned.Insert(ctx, rs); err != nil {
			return err
		}
		for i := range rs.Items {
			if err := r.items.Insert(ctx, &rs.Items[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateReturnedSale saves the header with optimistic locking.
func (r *ReturnedSaleRepo) UpdateReturnedSale(ctx context.Context, rs *returns.ReturnedSale) error {
	if err := r.returned.UpdateVersioned(ctx, rs, rs.ID, rs.Version); err != nil {
		return err
	}
	rs.Version++
	return nil
}

func (r *ReturnedSaleRepo) GetReturnedSale(ctx context.Context, returnedSaleID id.ID) (*returns.ReturnedSale, error) {
	rs, err := r.returned.GetByID(ctx, returnedSaleID)
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, []*returns.ReturnedSale{rs}); err != nil {
		return nil, err
	}
	return rs, nil
}

// ReturnedSalesOfSale lists the returns of a sale by identifier.
func (r *ReturnedSaleRepo) ReturnedSalesOfSale(ctx context.Context, saleID id.ID) ([]*returns.ReturnedSale, error) {
	list, err := r.returned.List(ctx, r.returned.Select().
		Where(squirrel.Eq{"sale_id": saleID}).
		OrderBy("identifier"))
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// attachItems loads the items of every returned sale in one query.
func (r *ReturnedSaleRepo) attachItems(ctx context.Context, list []*returns.ReturnedSale) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]id.ID, 0, len(list))
	byID := make(map[id.ID]*returns.ReturnedSale, len(list))
	for _, rs := range list {
		ids = append(ids, rs.ID)
		byID[rs.ID] = rs
		rs.Items = []returns.Item{}
	}

	items, err := r.items.List(ctx, r.items.Select().
		Where(squirrel.Eq{"returned_sale_id": ids}).
		OrderBy("position"))
	if err != nil {
		return err
	}
	for _, it := range items {
		rs := byID[it.ReturnedSaleID]
		rs.Items = append(rs.Items, *it)
	}
	return nil
}

func (r *ReturnedSaleRepo) AddItem(ctx context.Context, item *returns.Item) error {
	return r.items.Insert(ctx, item)
}

func (r *ReturnedSaleRepo) RemoveItem(ctx context.Context, itemID id.ID) error {
	n, err := r.items.Delete(ctx, squirrel.Eq{"id": itemID})
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewNotFound("returned item", itemID.String())
	}
	return nil
}

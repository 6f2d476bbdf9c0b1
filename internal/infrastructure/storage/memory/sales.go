package memory

import (
	"context"
	"slices"

	"stoq/internal/core/apperror"
	"stoq/internal/core/entity"
	"stoq/internal/core/id"
	"stoq/internal/domain/catalog"
	"stoq/internal/domain/party"
	"stoq/internal/domain/renegotiation"
	"stoq/internal/domain/returns"
	"stoq/internal/domain/sale"
)

func (s *Store) GetPerson(ctx context.Context, personID id.ID) (*party.Person, error) {
	var p *party.Person
	err := s.read(func(d *state) error {
		var err error
		p, err = lookup(d.persons, personID, "person")
		return err
	})
	return p, err
}

func (s *Store) SavePerson(ctx context.Context, p *party.Person) error {
	return s.write(func(d *state) error {
		d.persons[p.ID] = *p
		return nil
	})
}

func (s *Store) GetSellable(ctx context.Context, sellableID id.ID) (*catalog.Sellable, error) {
	var out *catalog.Sellable
	err := s.read(func(d *state) error {
		var err error
		out, err = lookup(d.sellables, sellableID, "sellable")
		return err
	})
	return out, err
}

func (s *Store) SaveSellable(ctx context.Context, sellable *catalog.Sellable) error {
	return s.write(func(d *state) error {
		d.sellables[sellable.ID] = *sellable
		return nil
	})
}

func (s *Store) GetCategory(ctx context.Context, categoryID id.ID) (*catalog.Category, error) {
	var out *catalog.Category
	err := s.read(func(d *state) error {
		var err error
		out, err = lookup(d.categories, categoryID, "category")
		return err
	})
	return out, err
}

func (s *Store) SaveCategory(ctx context.Context, c *catalog.Category) error {
	return s.write(func(d *state) error {
		d.categories[c.ID] = *c
		return nil
	})
}

func (s *Store) CreateSale(ctx context.Context, sl *sale.Sale) error {
	return s.write(func(d *state) error {
		if _, ok := d.groups[sl.GroupID]; !ok {
			return apperror.NewNotFound("payment group", sl.GroupID.String())
		}
		stored := *sl
		stored.Items = nil
		d.sales[sl.ID] = stored
		d.saleItems[sl.ID] = slices.Clone(sl.Items)
		return nil
	})
}

func (s *Store) UpdateSale(ctx context.Context, sl *sale.Sale) error {
	return s.write(func(d *state) error {
		stored, err := lookup(d.sales, sl.ID, "sale")
		if err != nil {
			return err
		}
		if err := checkVersion(&stored.BaseEntity, &sl.BaseEntity, "sale"); err != nil {
			return err
		}
		header := *sl
		header.Items = nil
		d.sales[sl.ID] = header
		return nil
	})
}

func (d *state) loadSale(sl *sale.Sale) *sale.Sale {
	sl.Items = slices.Clone(d.saleItems[sl.ID])
	return sl
}

func (s *Store) GetSale(ctx context.Context, saleID id.ID) (*sale.Sale, error) {
	var out *sale.Sale
	err := s.read(func(d *state) error {
		sl, err := lookup(d.sales, saleID, "sale")
		if err != nil {
			return err
		}
		out = d.loadSale(sl)
		return nil
	})
	return out, err
}

func (s *Store) GetSaleByGroup(ctx context.Context, groupID id.ID) (*sale.Sale, error) {
	var out *sale.Sale
	err := s.read(func(d *state) error {
		for _, sl := range d.sales {
			if sl.GroupID == groupID {
				out = d.loadSale(&sl)
				return nil
			}
		}
		return apperror.NewNotFound("sale", groupID.String())
	})
	return out, err
}

func (s *Store) AddItem(ctx context.Context, item *sale.Item) error {
	return s.write(func(d *state) error {
		if _, ok := d.sales[item.SaleID]; !ok {
			return apperror.NewNotFound("sale", item.SaleID.String())
		}
		d.saleItems[item.SaleID] = append(d.saleItems[item.SaleID], *item)
		return nil
	})
}

// Returns is the returns.Repository view of the store. Its AddItem and
// RemoveItem work on returned items, which clash with the sale repository
// method names.
type Returns struct{ s *Store }

// Returns returns the returned sale repository.
func (s *Store) Returns() *Returns { return &Returns{s: s} }

var _ returns.Repository = (*Returns)(nil)

func (r *Returns) CreateReturnedSale(ctx context.Context, rs *returns.ReturnedSale) error {
	return r.s.write(func(d *state) error {
		if rs.SaleID != nil {
			if _, ok := d.sales[*rs.SaleID]; !ok {
				return apperror.NewNotFound("sale", rs.SaleID.String())
			}
		}
		stored := *rs
		stored.Items = nil
		d.returned[rs.ID] = stored
		d.returnedItems[rs.ID] = slices.Clone(rs.Items)
		return nil
	})
}

func (r *Returns) UpdateReturnedSale(ctx context.Context, rs *returns.ReturnedSale) error {
	return r.s.write(func(d *state) error {
		stored, err := lookup(d.returned, rs.ID, "returned sale")
		if err != nil {
			return err
		}
		if err := checkVersion(&stored.BaseEntity, &rs.BaseEntity, "returned sale"); err != nil {
			return err
		}
		header := *rs
		header.Items = nil
		d.returned[rs.ID] = header
		return nil
	})
}

func (r *Returns) GetReturnedSale(ctx context.Context, returnedSaleID id.ID) (*returns.ReturnedSale, error) {
	var out *returns.ReturnedSale
	err := r.s.read(func(d *state) error {
		rs, err := lookup(d.returned, returnedSaleID, "returned sale")
		if err != nil {
			return err
		}
		rs.Items = slices.Clone(d.returnedItems[rs.ID])
		out = rs
		return nil
	})
	return out, err
}

func (r *Returns) ReturnedSalesOfSale(ctx context.Context, saleID id.ID) ([]*returns.ReturnedSale, error) {
	var out []*returns.ReturnedSale
	err := r.s.read(func(d *state) error {
		for _, rs := range d.returned {
			if id.Equal(rs.SaleID, &saleID) {
				rs.Items = slices.Clone(d.returnedItems[rs.ID])
				out = append(out, &rs)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *returns.ReturnedSale) int { return int(a.Identifier - b.Identifier) })
	return out, err
}

func (r *Returns) AddItem(ctx context.Context, item *returns.Item) error {
	return r.s.write(func(d *state) error {
		if _, ok := d.returned[item.ReturnedSaleID]; !ok {
			return apperror.NewNotFound("returned sale", item.ReturnedSaleID.String())
		}
		d.returnedItems[item.ReturnedSaleID] = append(d.returnedItems[item.ReturnedSaleID], *item)
		return nil
	})
}

func (r *Returns) RemoveItem(ctx context.Context, itemID id.ID) error {
	return r.s.write(func(d *state) error {
		for rsID, items := range d.returnedItems {
			for i := range items {
				if items[i].ID == itemID {
					d.returnedItems[rsID] = slices.Delete(slices.Clone(items), i, i+1)
					return nil
				}
			}
		}
		return apperror.NewNotFound("returned item", itemID.String())
	})
}

func (s *Store) CreateRenegotiation(ctx context.Context, r *renegotiation.Renegotiation) error {
	return s.write(func(d *state) error {
		if _, ok := d.groups[r.GroupID]; !ok {
			return apperror.NewNotFound("payment group", r.GroupID.String())
		}
		stored := *r
		stored.SourceGroupIDs = slices.Clone(r.SourceGroupIDs)
		d.renegotiations[r.ID] = stored
		return nil
	})
}

func (s *Store) UpdateRenegotiation(ctx context.Context, r *renegotiation.Renegotiation) error {
	return s.write(func(d *state) error {
		stored, err := lookup(d.renegotiations, r.ID, "renegotiation")
		if err != nil {
			return err
		}
		if err := checkVersion(&stored.BaseEntity, &r.BaseEntity, "renegotiation"); err != nil {
			return err
		}
		updated := *r
		updated.SourceGroupIDs = slices.Clone(r.SourceGroupIDs)
		d.renegotiations[r.ID] = updated
		return nil
	})
}

func (s *Store) GetRenegotiation(ctx context.Context, renegotiationID id.ID) (*renegotiation.Renegotiation, error) {
	var out *renegotiation.Renegotiation
	err := s.read(func(d *state) error {
		r, err := lookup(d.renegotiations, renegotiationID, "renegotiation")
		if err != nil {
			return err
		}
		r.SourceGroupIDs = slices.Clone(r.SourceGroupIDs)
		out = r
		return nil
	})
	return out, err
}

func (s *Store) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	return s.write(func(d *state) error {
		for _, m := range movements {
			key := balanceKey{branchID: m.BranchID, productID: m.ProductID}
			b := d.balances[key]
			b.BranchID, b.ProductID = m.BranchID, m.ProductID
			b.Quantity += m.SignedQuantity()
			b.UpdatedAt = m.Period
			d.balances[key] = b
			d.movements = append(d.movements, m)
		}
		return nil
	})
}

func (s *Store) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	var out []entity.StockMovement
	err := s.read(func(d *state) error {
		for _, m := range d.movements {
			if m.RecorderID == recorderID {
				out = append(out, m)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) GetBalance(ctx context.Context, branchID, productID id.ID) (entity.StockBalance, error) {
	var out entity.StockBalance
	err := s.read(func(d *state) error {
		out = d.balances[balanceKey{branchID: branchID, productID: productID}]
		out.BranchID, out.ProductID = branchID, productID
		return nil
	})
	return out, err
}

// GetBalanceForUpdate needs no lock here: transactions are serialized.
func (s *Store) GetBalanceForUpdate(ctx context.Context, branchID, productID id.ID) (entity.StockBalance, error) {
	return s.GetBalance(ctx, branchID, productID)
}

func (s *Store) GetBalancesByProduct(ctx context.Context, productID id.ID) ([]entity.StockBalance, error) {
	var out []entity.StockBalance
	err := s.read(func(d *state) error {
		for key, b := range d.balances {
			if key.productID == productID && !b.Quantity.IsZero() {
				out = append(out, b)
			}
		}
		return nil
	})
	return out, err
}

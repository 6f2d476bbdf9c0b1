package memory

import (
	"context"

	"stoq/internal/core/apperror"
	"stoq/internal/core/id"
	"stoq/internal/domain/commission"
	"stoq/internal/domain/fiscal"
	"stoq/internal/domain/ledger"
)

func (s *Store) CreateTransaction(ctx context.Context, t *ledger.AccountTransaction) error {
	return s.write(func(d *state) error {
		d.transactions = append(d.transactions, *t)
		return nil
	})
}

func (s *Store) TransactionsOfPayment(ctx context.Context, paymentID id.ID) ([]*ledger.AccountTransaction, error) {
	var out []*ledger.AccountTransaction
	err := s.read(func(d *state) error {
		out = copies(d.transactions, func(t *ledger.AccountTransaction) bool {
			return id.Equal(t.PaymentID, &paymentID)
		})
		return nil
	})
	return out, err
}

func (s *Store) TransactionsOfAccount(ctx context.Context, accountID id.ID) ([]*ledger.AccountTransaction, error) {
	var out []*ledger.AccountTransaction
	err := s.read(func(d *state) error {
		out = copies(d.transactions, func(t *ledger.AccountTransaction) bool {
			return id.Equal(t.SourceAccountID, &accountID) || id.Equal(t.DestinationAccountID, &accountID)
		})
		return nil
	})
	return out, err
}

func (s *Store) DeleteTransactionsOfPayment(ctx context.Context, paymentID id.ID) error {
	return s.write(func(d *state) error {
		kept := d.transactions[:0:0]
		for _, t := range d.transactions {
			if !id.Equal(t.PaymentID, &paymentID) {
				kept = append(kept, t)
			}
		}
		d.transactions = kept
		return nil
	})
}

func (s *Store) SaveSource(ctx context.Context, src *commission.Source) error {
	return s.write(func(d *state) error {
		for key, existing := range d.sources {
			if key != src.ID && (sameScope(existing.SellableID, src.SellableID) || sameScope(existing.CategoryID, src.CategoryID)) {
				return apperror.NewConflict("commission source already defined for this scope")
			}
		}
		d.sources[src.ID] = *src
		return nil
	})
}

func sameScope(a, b *id.ID) bool { return a != nil && b != nil && *a == *b }

func (s *Store) sourceWhere(match func(*commission.Source) bool) (*commission.Source, error) {
	var out *commission.Source
	err := s.read(func(d *state) error {
		for _, src := range d.sources {
			if match(&src) {
				out = &src
				return nil
			}
		}
		return apperror.NewNotFound("commission source", nil)
	})
	return out, err
}

func (s *Store) SourceForSellable(ctx context.Context, sellableID id.ID) (*commission.Source, error) {
	return s.sourceWhere(func(src *commission.Source) bool { return id.Equal(src.SellableID, &sellableID) })
}

func (s *Store) SourceForCategory(ctx context.Context, categoryID id.ID) (*commission.Source, error) {
	return s.sourceWhere(func(src *commission.Source) bool { return id.Equal(src.CategoryID, &categoryID) })
}

func (s *Store) CreateCommission(ctx context.Context, c *commission.Commission) error {
	return s.write(func(d *state) error {
		d.commissions = append(d.commissions, *c)
		return nil
	})
}

func (s *Store) CommissionsOfSale(ctx context.Context, saleID id.ID) ([]*commission.Commission, error) {
	var out []*commission.Commission
	err := s.read(func(d *state) error {
		out = copies(d.commissions, func(c *commission.Commission) bool { return c.SaleID == saleID })
		return nil
	})
	return out, err
}

func (s *Store) DeleteCommissionsOfPayment(ctx context.Context, paymentID id.ID) error {
	return s.write(func(d *state) error {
		kept := d.commissions[:0:0]
		for _, c := range d.commissions {
			if !id.Equal(c.PaymentID, &paymentID) {
				kept = append(kept, c)
			}
		}
		d.commissions = kept
		return nil
	})
}

func (s *Store) CreateEntry(ctx context.Context, e *fiscal.BookEntry) error {
	return s.write(func(d *state) error {
		if _, ok := d.groups[e.PaymentGroupID]; !ok {
			return apperror.NewNotFound("payment group", e.PaymentGroupID.String())
		}
		d.entries = append(d.entries, *e)
		return nil
	})
}

func (s *Store) EntryByGroup(ctx context.Context, groupID id.ID, t fiscal.EntryType) (*fiscal.BookEntry, error) {
	var out *fiscal.BookEntry
	err := s.read(func(d *state) error {
		found := copies(d.entries, func(e *fiscal.BookEntry) bool {
			return e.PaymentGroupID == groupID && e.EntryType == t && !e.IsReversal
		})
		if len(found) == 0 {
			return apperror.NewNotFound("fiscal entry", groupID.String())
		}
		out = found[0]
		return nil
	})
	return out, err
}

func (s *Store) ReversalOf(ctx context.Context, originalID id.ID) (*fiscal.BookEntry, error) {
	var out *fiscal.BookEntry
	err := s.read(func(d *state) error {
		found := copies(d.entries, func(e *fiscal.BookEntry) bool { return id.Equal(e.OriginalEntryID, &originalID) })
		if len(found) == 0 {
			return apperror.NewNotFound("fiscal reversal", originalID.String())
		}
		out = found[0]
		return nil
	})
	return out, err
}

func (s *Store) EntriesOfGroup(ctx context.Context, groupID id.ID) ([]*fiscal.BookEntry, error) {
	var out []*fiscal.BookEntry
	err := s.read(func(d *state) error {
		out = copies(d.entries, func(e *fiscal.BookEntry) bool { return e.PaymentGroupID == groupID })
		return nil
	})
	return out, err
}

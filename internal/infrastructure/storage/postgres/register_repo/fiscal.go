package register_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stoq/internal/core/id"
	"stoq/internal/domain/fiscal"
	"stoq/internal/infrastructure/storage/postgres"
)

// FiscalRepo implements fiscal.Repository over fiscal_book_entries.
type FiscalRepo struct {
	postgres.Table[fiscal.BookEntry]
}

var _ fiscal.Repository = (*FiscalRepo)(nil)

// NewFiscalRepo creates a fiscal book repository.
func NewFiscalRepo(txm *postgres.TxManager) *FiscalRepo {
	return &FiscalRepo{Table: postgres.NewTable[fiscal.BookEntry](txm, "fiscal_book_entries", "fiscal entry")}
}

func (r *FiscalRepo) CreateEntry(ctx context.Context, e *fiscal.BookEntry) error {
	return r.Insert(ctx, e)
}

// EntryByGroup returns the forward entry of a group; reversals are skipped.
func (r *FiscalRepo) EntryByGroup(ctx context.Context, groupID id.ID, t fiscal.EntryType) (*fiscal.BookEntry, error) {
	return r.Get(ctx, r.Select().Where(squirrel.Eq{
		"payment_group_id": groupID,
		"entry_type":       t,
		"is_reversal":      false,
	}), groupID.String())
}

func (r *FiscalRepo) ReversalOf(ctx context.Context, originalID id.ID) (*fiscal.BookEntry, error) {
	return r.Get(ctx, r.Select().Where(squirrel.Eq{"original_entry_id": originalID}), originalID.String())
}

func (r *FiscalRepo) EntriesOfGroup(ctx context.Context, groupID id.ID) ([]*fiscal.BookEntry, error) {
	return r.List(ctx, r.Select().Where(squirrel.Eq{"payment_group_id": groupID}).OrderBy("date", "id"))
}

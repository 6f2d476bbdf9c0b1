package register_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stoq/internal/core/id"
	"stoq/internal/domain/ledger"
	"stoq/internal/infrastructure/storage/postgres"
)

// LedgerRepo implements ledger.Repository over account_transactions.
type LedgerRepo struct {
	postgres.Table[ledger.AccountTransaction]
}

var _ ledger.Repository = (*LedgerRepo)(nil)

// NewLedgerRepo creates an account transaction repository.
func NewLedgerRepo(txm *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{Table: postgres.NewTable[ledger.AccountTransaction](txm, "account_transactions", "account transaction")}
}

func (r *LedgerRepo) CreateTransaction(ctx context.Context, t *ledger.AccountTransaction) error {
	return r.Insert(ctx, t)
}

func (r *LedgerRepo) TransactionsOfPayment(ctx context.Context, paymentID id.ID) ([]*ledger.AccountTransaction, error) {
	return r.List(ctx, r.Select().Where(squirrel.Eq{"payment_id": paymentID}).OrderBy("date", "id"))
}

// TransactionsOfAccount lists the transactions moving money in or out of accountID.
func (r *LedgerRepo) TransactionsOfAccount(ctx context.Context, accountID id.ID) ([]*ledger.AccountTransaction, error) {
	return r.List(ctx, r.Select().
		Where(squirrel.Or{
			squirrel.Eq{"source_account_id": accountID},
			squirrel.Eq{"destination_account_id": accountID},
		}).
		OrderBy("date", "id"))
}

func (r *LedgerRepo) DeleteTransactionsOfPayment(ctx context.Context, paymentID id.ID) error {
	_, err := r.Delete(ctx, squirrel.Eq{"payment_id": paymentID})
	return err
}

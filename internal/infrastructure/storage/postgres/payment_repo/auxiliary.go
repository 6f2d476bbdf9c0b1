package payment_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stoq/internal/core/id"
	"stoq/internal/domain/payment"
)

// CreateCheckData stores the bank account and links it to the payment.
func (r *Repo) CreateCheckData(ctx context.Context, data *payment.CheckData, account *payment.BankAccount) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := r.accounts.Insert(ctx, account); err != nil {
			return err
		}
		return r.checks.Insert(ctx, data)
	})
}

func (r *Repo) GetCheckData(ctx context.Context, paymentID id.ID) (*payment.CheckData, *payment.BankAccount, error) {
	data, err := r.checks.Get(ctx, r.checks.Select().Where(squirrel.Eq{"payment_id": paymentID}), paymentID.String())
	if err != nil {
		return nil, nil, err
	}
	account, err := r.accounts.GetByID(ctx, data.BankAccountID)
	if err != nil {
		return nil, nil, err
	}
	return data, account, nil
}

func (r *Repo) UpdateBankAccount(ctx context.Context, account *payment.BankAccount) error {
	return r.accounts.Update(ctx, account, squirrel.Eq{"id": account.ID}, account.ID.String(), "id")
}

// DeleteCheckData removes the check data and its bank account.
func (r *Repo) DeleteCheckData(ctx context.Context, paymentID id.ID) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		data, _, err := r.GetCheckData(ctx, paymentID)
		if err != nil {
			return err
		}
		if _, err := r.checks.Delete(ctx, squirrel.Eq{"payment_id": paymentID}); err != nil {
			return err
		}
		_, err = r.accounts.Delete(ctx, squirrel.Eq{"id": data.BankAccountID})
		return err
	})
}

// SaveCardData inserts or replaces the card details of a payment.
func (r *Repo) SaveCardData(ctx context.Context, data *payment.CardData) error {
	return r.cards.Upsert(ctx, data, "payment_id")
}

func (r *Repo) GetCardData(ctx context.Context, paymentID id.ID) (*payment.CardData, error) {
	return r.cards.Get(ctx, r.cards.Select().Where(squirrel.Eq{"payment_id": paymentID}), paymentID.String())
}

func (r *Repo) DeleteCardData(ctx context.Context, paymentID id.ID) error {
	n, err := r.cards.Delete(ctx, squirrel.Eq{"payment_id": paymentID})
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("card data", paymentID)
	}
	return nil
}

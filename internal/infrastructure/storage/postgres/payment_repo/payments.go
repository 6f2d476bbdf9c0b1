// Package payment_repo stores payments, payment groups, method records and
// the check and card details attached to payments.
package payment_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stoq/internal/core/id"
	"stoq/internal/domain/payment"
	"stoq/internal/infrastructure/storage/postgres"
)

// Repo implements payment.Store.
type Repo struct {
	txm      *postgres.TxManager
	payments postgres.Table[payment.Payment]
	groups   postgres.Table[payment.Group]
	methods  postgres.Table[payment.Method]
	accounts postgres.Table[payment.BankAccount]
	checks   postgres.Table[payment.CheckData]
	cards    postgres.Table[payment.CardData]
}

var _ payment.Store = (*Repo)(nil)

// New creates the payment repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{
		txm:      txm,
		payments: postgres.NewTable[payment.Payment](txm, "payments", "payment"),
		groups:   postgres.NewTable[payment.Group](txm, "payment_groups", "payment group"),
		methods:  postgres.NewTable[payment.Method](txm, "payment_methods", "payment method"),
		accounts: postgres.NewTable[payment.BankAccount](txm, "bank_accounts", "bank account"),
		checks:   postgres.NewTable[payment.CheckData](txm, "check_data", "check data"),
		cards:    postgres.NewTable[payment.CardData](txm, "card_data", "card data"),
	}
}

func (r *Repo) CreatePayment(ctx context.Context, p *payment.Payment) error {
	return r.payments.Insert(ctx, p)
}

// UpdatePayment saves p if it still holds the stored version.
func (r *Repo) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	if err := r.payments.UpdateVersioned(ctx, p, p.ID, p.Version); err != nil {
		return err
	}
	p.Version++
	return nil
}

func (r *Repo) DeletePayment(ctx context.Context, paymentID id.ID) error {
	n, err := r.payments.Delete(ctx, squirrel.Eq{"id": paymentID})
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("payment", paymentID)
	}
	return nil
}

func (r *Repo) GetPayment(ctx context.Context, paymentID id.ID) (*payment.Payment, error) {
	return r.payments.GetByID(ctx, paymentID)
}

func (r *Repo) ofGroup(groupID id.ID) squirrel.SelectBuilder {
	return r.payments.Select().
		Where(squirrel.Eq{"group_id": groupID}).
		OrderBy("due_date", "identifier")
}

func (r *Repo) PaymentsOfGroup(ctx context.Context, groupID id.ID) ([]*payment.Payment, error) {
	return r.payments.List(ctx, r.ofGroup(groupID))
}

// ValidPaymentsOfGroup skips cancelled payments.
func (r *Repo) ValidPaymentsOfGroup(ctx context.Context, groupID id.ID) ([]*payment.Payment, error) {
	return r.payments.List(ctx, r.ofGroup(groupID).Where(squirrel.NotEq{"status": payment.StatusCancelled}))
}

func (r *Repo) PaymentsByMethod(ctx context.Context, groupID id.ID, method payment.MethodName) ([]*payment.Payment, error) {
	return r.payments.List(ctx, r.ofGroup(groupID).Where(squirrel.Eq{"method_name": method}))
}

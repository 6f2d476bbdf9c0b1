// Package ledger books account transactions for paid payments.
package ledger

import (
	"context"
	"fmt"
	"time"

	"stoq/internal/core/apperror"
	"stoq/internal/core/entity"
	"stoq/internal/core/id"
	"stoq/internal/core/types"
	"stoq/internal/domain/payment"
)

// AccountTransaction moves Value from the source account to the destination.
type AccountTransaction struct {
	entity.BaseEntity

	PaymentID            *id.ID      `db:"payment_id" json:"paymentId,omitempty"`
	SourceAccountID      *id.ID      `db:"source_account_id" json:"sourceAccountId,omitempty"`
	DestinationAccountID *id.ID      `db:"destination_account_id" json:"destinationAccountId,omitempty"`
	Value                types.Money `db:"value" json:"value"`
	Date                 time.Time   `db:"date" json:"date"`
	Description          string      `db:"description" json:"description"`
}

// Repository stores account transactions.
type Repository interface {
	CreateTransaction(ctx context.Context, t *AccountTransaction) error
	TransactionsOfPayment(ctx context.Context, paymentID id.ID) ([]*AccountTransaction, error)
	TransactionsOfAccount(ctx context.Context, accountID id.ID) ([]*AccountTransaction, error)
	DeleteTransactionsOfPayment(ctx context.Context, paymentID id.ID) error
}

// Service implements payment.TransactionEmitter.
type Service struct {
	repo      Repository
	imbalance *id.ID
}

// NewService creates a ledger service. imbalance is the account balancing
// every payment whose counterpart is not tracked.
func NewService(repo Repository, imbalance *id.ID) *Service {
	return &Service{repo: repo, imbalance: imbalance}
}

var _ payment.TransactionEmitter = (*Service)(nil)

// EmitForPayment books p. IN payments move money from the imbalance account
// into the method's destination account; OUT payments the other way.
func (s *Service) EmitForPayment(ctx context.Context, p *payment.Payment, m *payment.Method) error {
	if !p.IsPaid() {
		return apperror.NewInvalidTransition("payment", string(p.Status), "emit_transaction")
	}
	var destination *id.ID
	if m != nil {
		destination = m.DestinationAccountID
	}
	t := &AccountTransaction{
		BaseEntity:           entity.NewBaseEntity(),
		PaymentID:            &p.ID,
		SourceAccountID:      s.imbalance,
		DestinationAccountID: destination,
		Value:                p.Value,
		Date:                 *p.PaidDate,
		Description:          p.Description,
	}
	if p.IsOutpayment() {
		t.SourceAccountID, t.DestinationAccountID = t.DestinationAccountID, t.SourceAccountID
	}
	if err := s.repo.CreateTransaction(ctx, t); err != nil {
		return fmt.Errorf("create account transaction: %w", err)
	}
	return nil
}

// RevertForPayment removes the transactions booked for p.
func (s *Service) RevertForPayment(ctx context.Context, p *payment.Payment) error {
	return s.repo.DeleteTransactionsOfPayment(ctx, p.ID)
}

// OfPayment lists the transactions booked for a payment.
func (s *Service) OfPayment(ctx context.Context, paymentID id.ID) ([]*AccountTransaction, error) {
	return s.repo.TransactionsOfPayment(ctx, paymentID)
}

// Balance is incoming minus outgoing value of an account.
func (s *Service) Balance(ctx context.Context, accountID id.ID) (types.Money, error) {
	txs, err := s.repo.TransactionsOfAccount(ctx, accountID)
	if err != nil {
		return types.Zero(), err
	}
	balance := types.Zero()
	for _, t := range txs {
		if id.Equal(t.DestinationAccountID, &accountID) {
			balance = balance.Add(t.Value)
		}
		if id.Equal(t.SourceAccountID, &accountID) {
			balance = balance.Sub(t.Value)
		}
	}
	return balance, nil
}

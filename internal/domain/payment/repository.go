package payment

import (
	"context"

	"stoq/internal/core/id"
)

// Repository stores payments. List queries return payments ordered by
// (due_date, identifier).
type Repository interface {
	CreatePayment(ctx context.Context, p *Payment) error
	// UpdatePayment saves p with optimistic locking on Version.
	UpdatePayment(ctx context.Context, p *Payment) error
	DeletePayment(ctx context.Context, paymentID id.ID) error
	GetPayment(ctx context.Context, paymentID id.ID) (*Payment, error)

	PaymentsOfGroup(ctx context.Context, groupID id.ID) ([]*Payment, error)
	ValidPaymentsOfGroup(ctx context.Context, groupID id.ID) ([]*Payment, error)
	PaymentsByMethod(ctx context.Context, groupID id.ID, method MethodName) ([]*Payment, error)
}

// GroupRepository stores payment groups.
type GroupRepository interface {
	CreateGroup(ctx context.Context, g *Group) error
	UpdateGroup(ctx context.Context, g *Group) error
	GetGroup(ctx context.Context, groupID id.ID) (*Group, error)
}

// MethodRepository stores the persistent method records.
type MethodRepository interface {
	// GetMethod returns apperror NotFound for names never saved.
	GetMethod(ctx context.Context, name MethodName) (*Method, error)
	SaveMethod(ctx context.Context, m *Method) error
	ListMethods(ctx context.Context) ([]*Method, error)
}

// AuxiliaryRepository stores check and card details.
type AuxiliaryRepository interface {
	CreateCheckData(ctx context.Context, data *CheckData, account *BankAccount) error
	GetCheckData(ctx context.Context, paymentID id.ID) (*CheckData, *BankAccount, error)
	UpdateBankAccount(ctx context.Context, account *BankAccount) error
	// DeleteCheckData removes the check data and its bank account.
	DeleteCheckData(ctx context.Context, paymentID id.ID) error

	SaveCardData(ctx context.Context, data *CardData) error
	GetCardData(ctx context.Context, paymentID id.ID) (*CardData, error)
	DeleteCardData(ctx context.Context, paymentID id.ID) error
}

// Store is the full persistence contract of this package.
type Store interface {
	Repository
	GroupRepository
	MethodRepository
	AuxiliaryRepository
}

// Package commission computes salesperson commissions on sale payments.
package commission

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"stoq/internal/core/apperror"
	"stoq/internal/core/entity"
	"stoq/internal/core/id"
	"stoq/internal/core/types"
)

// Kind tells which rate produced a commission.
type Kind string

const (
	KindDirect       Kind = "direct"
	KindInstallments Kind = "installments"
)

// Source holds the commission rates of a sellable or of a category.
// Exactly one of SellableID and CategoryID is set.
type Source struct {
	entity.BaseEntity

	SellableID       *id.ID          `db:"sellable_id" json:"sellableId,omitempty"`
	CategoryID       *id.ID          `db:"category_id" json:"categoryId,omitempty"`
	DirectRate       decimal.Decimal `db:"direct_rate" json:"directRate"`
	InstallmentsRate decimal.Decimal `db:"installments_rate" json:"installmentsRate"`
}

var hundred = decimal.NewFromInt(100)

// Validate implements entity.Validatable.
func (s *Source) Validate(ctx context.Context) error {
	if (s.SellableID == nil) == (s.CategoryID == nil) {
		return apperror.NewValidation("commission source needs exactly one of sellable or category")
	}
	for _, r := range []struct {
		field string
		value decimal.Decimal
	}{{"directRate", s.DirectRate}, {"installmentsRate", s.InstallmentsRate}} {
		if r.value.IsNegative() || r.value.GreaterThan(hundred) {
			return apperror.NewInvalidValue(r.field, r.field+" must be a percentage between 0 and 100")
		}
	}
	return nil
}

// Rate picks the direct rate for single-payment sales.
func (s *Source) Rate(installments int) (decimal.Decimal, Kind) {
	if installments <= 1 {
		return s.DirectRate, KindDirect
	}
	return s.InstallmentsRate, KindInstallments
}

// Commission is the value owed to a salesperson for a sale payment.
// PaymentID is nil for whole-sale commissions written at confirmation and for
// return compensations. Compensations carry negative values.
type Commission struct {
	entity.BaseEntity

	SaleID        id.ID       `db:"sale_id" json:"saleId"`
	PaymentID     *id.ID      `db:"payment_id" json:"paymentId,omitempty"`
	SalespersonID id.ID       `db:"salesperson_id" json:"salespersonId"`
	Kind          Kind        `db:"kind" json:"kind"`
	Value         types.Money `db:"value" json:"value"`
	CreatedAt     time.Time   `db:"created_at" json:"createdAt"`
}

// Repository stores sources and commissions.
type Repository interface {
	SaveSource(ctx context.Context, s *Source) error
	// SourceForSellable and SourceForCategory return NotFound when unset.
	SourceForSellable(ctx context.Context, sellableID id.ID) (*Source, error)
	SourceForCategory(ctx context.Context, categoryID id.ID) (*Source, error)

	CreateCommission(ctx context.Context, c *Commission) error
	CommissionsOfSale(ctx context.Context, saleID id.ID) ([]*Commission, error)
	DeleteCommissionsOfPayment(ctx context.Context, paymentID id.ID) error
}

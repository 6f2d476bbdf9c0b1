// Package params holds the system parameters consulted by the payment core.
// A Parameters value is built once by internal/config and passed to services
// at construction.
package params

import (
	"stoq/internal/core/apperror"
	"stoq/internal/core/id"
)

// Parameters is the read-only parameter store.
type Parameters struct {
	// DefaultSalesCFOP is used for sales without an explicit CFOP.
	DefaultSalesCFOP string
	// DefaultReturnSalesCFOP is forced on every fiscal reversal entry.
	DefaultReturnSalesCFOP string
	// DefaultPaymentMethod is used when a payment is created without a method.
	DefaultPaymentMethod string
	// ImbalanceAccountID is the counterpart account of payment transactions.
	ImbalanceAccountID *id.ID
	// SalePayCommissionWhenConfirmed writes the whole sale commission at
	// confirmation instead of once per paid payment.
	SalePayCommissionWhenConfirmed bool
	// UseTradeAsDiscount applies traded value as a discount on the new sale
	// instead of creating a trade payment.
	UseTradeAsDiscount bool
}

// Defaults returns the stock parameter values.
func Defaults() Parameters {
	return Parameters{
		DefaultSalesCFOP:       "5.102",
		DefaultReturnSalesCFOP: "1.202",
		DefaultPaymentMethod:   "money",
	}
}

// Validate checks required parameters are present.
func (p Parameters) Validate() error {
	if p.DefaultSalesCFOP == "" {
		return apperror.NewValidation("DEFAULT_SALES_CFOP is required").WithDetail("field", "DEFAULT_SALES_CFOP")
	}
	if p.DefaultReturnSalesCFOP == "" {
		return apperror.NewValidation("DEFAULT_RETURN_SALES_CFOP is required").WithDetail("field", "DEFAULT_RETURN_SALES_CFOP")
	}
	if p.DefaultPaymentMethod == "" {
		return apperror.NewValidation("DEFAULT_PAYMENT_METHOD is required").WithDetail("field", "DEFAULT_PAYMENT_METHOD")
	}
	return nil
}

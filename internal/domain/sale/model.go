// Package sale holds the minimal sale aggregate the payment core settles.
package sale

import (
	"context"
	"time"

	"stoq/internal/core/apperror"
	"stoq/internal/core/entity"
	"stoq/internal/core/id"
	"stoq/internal/core/types"
)

// Status of a sale.
type Status string

const (
	StatusInitial      Status = "initial"
	StatusOrdered      Status = "ordered"
	StatusConfirmed    Status = "confirmed"
	StatusPaid         Status = "paid"
	StatusReturned     Status = "returned"
	StatusRenegotiated Status = "renegotiated"
	StatusCancelled    Status = "cancelled"
)

// Item is one sold sellable.
type Item struct {
	ID         id.ID          `db:"id" json:"id"`
	SaleID     id.ID          `db:"sale_id" json:"saleId"`
	SellableID id.ID          `db:"sellable_id" json:"sellableId"`
	Quantity   types.Quantity `db:"quantity" json:"quantity"`
	Price      types.Money    `db:"price" json:"price"`
	// IsService is copied from the sellable when the item is added.
	IsService bool `db:"is_service" json:"isService"`

	ICMS types.Money `db:"icms" json:"icms"`
	IPI  types.Money `db:"ipi" json:"ipi"`
	ISS  types.Money `db:"iss" json:"iss"`
}

// Total is price × quantity.
func (i *Item) Total() types.Money {
	return types.RoundMoney(i.Price.Mul(i.Quantity.Decimal()))
}

// Sale is a sale with its items loaded.
type Sale struct {
	entity.Document

	Status        Status      `db:"status" json:"status"`
	ClientID      *id.ID      `db:"client_id" json:"clientId,omitempty"`
	SalespersonID *id.ID      `db:"salesperson_id" json:"salespersonId,omitempty"`
	CFOP          string      `db:"cfop" json:"cfop"`
	InvoiceNumber int64       `db:"invoice_number" json:"invoiceNumber"`
	Discount      types.Money `db:"discount" json:"discount"`
	Surcharge     types.Money `db:"surcharge" json:"surcharge"`
	GroupID       id.ID       `db:"group_id" json:"groupId"`

	ConfirmDate *time.Time `db:"confirm_date" json:"confirmDate,omitempty"`
	CloseDate   *time.Time `db:"close_date" json:"closeDate,omitempty"`
	ReturnDate  *time.Time `db:"return_date" json:"returnDate,omitempty"`

	Items []Item `db:"-" json:"items"`
}

// Validate implements entity.Validatable.
func (s *Sale) Validate(ctx context.Context) error {
	if err := s.Document.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(s.GroupID) {
		return apperror.NewValidation("payment group is required").WithDetail("field", "groupId")
	}
	if s.Discount.IsNegative() || s.Surcharge.IsNegative() {
		return apperror.NewInvalidValue("discount", "discount and surcharge must not be negative")
	}
	return nil
}

// Subtotal sums the item totals.
func (s *Sale) Subtotal() types.Money {
	total := types.Zero()
	for i := range s.Items {
		total = total.Add(s.Items[i].Total())
	}
	return total
}

// TotalAmount is subtotal − discount + surcharge.
func (s *Sale) TotalAmount() types.Money {
	return s.Subtotal().Sub(s.Discount).Add(s.Surcharge)
}

// Item returns the item with itemID.
func (s *Sale) Item(itemID id.ID) (*Item, bool) {
	for i := range s.Items {
		if s.Items[i].ID == itemID {
			return &s.Items[i], true
		}
	}
	return nil, false
}

// IsOpen reports whether items may still be added.
func (s *Sale) IsOpen() bool { return s.Status == StatusInitial || s.Status == StatusOrdered }

// CanReturn reports whether the sale can be returned or traded.
func (s *Sale) CanReturn() bool { return s.Status == StatusConfirmed || s.Status == StatusPaid }

// CanRenegotiate reports whether the sale's payments can be renegotiated.
func (s *Sale) CanRenegotiate() bool { return s.Status == StatusConfirmed }

func (s *Sale) transitionError(op string) error {
	return apperror.NewInvalidTransition("sale", string(s.Status), op).
		WithDetail("sale_id", s.ID.String())
}

// Repository stores sales.
type Repository interface {
	CreateSale(ctx context.Context, s *Sale) error
	// UpdateSale saves the header with optimistic locking on Version.
	UpdateSale(ctx context.Context, s *Sale) error
	GetSale(ctx context.Context, saleID id.ID) (*Sale, error)
	GetSaleByGroup(ctx context.Context, groupID id.ID) (*Sale, error)
	AddItem(ctx context.Context, item *Item) error
}

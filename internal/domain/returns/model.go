// Package returns implements sale returns and trades.
package returns

import (
	"context"
	"time"

	"stoq/internal/core/entity"
	"stoq/internal/core/id"
	"stoq/internal/core/types"
)

// Status of a returned sale.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
)

// Item is one returned sellable. SaleItemID links it to the sold item when
// the original sale is known.
type Item struct {
	ID             id.ID          `db:"id" json:"id"`
	ReturnedSaleID id.ID          `db:"returned_sale_id" json:"returnedSaleId"`
	SellableID     id.ID          `db:"sellable_id" json:"sellableId"`
	SaleItemID     *id.ID         `db:"sale_item_id" json:"saleItemId,omitempty"`
	Quantity       types.Quantity `db:"quantity" json:"quantity"`
	Price          types.Money    `db:"price" json:"price"`
}

// Total is price × quantity.
func (i *Item) Total() types.Money {
	return types.RoundMoney(i.Price.Mul(i.Quantity.Decimal()))
}

// ReturnedSale records the return of (part of) a sale. NewSaleID is set for
// trades, where the returned value pays for a new sale.
type ReturnedSale struct {
	entity.Document

	Status        Status      `db:"status" json:"status"`
	SaleID        *id.ID      `db:"sale_id" json:"saleId,omitempty"`
	NewSaleID     *id.ID      `db:"new_sale_id" json:"newSaleId,omitempty"`
	Reason        string      `db:"reason" json:"reason"`
	InvoiceNumber int64       `db:"invoice_number" json:"invoiceNumber"`
	Discount      types.Money `db:"discount" json:"discount"`
	Penalty       types.Money `db:"penalty" json:"penalty"`
	ReturnDate    *time.Time  `db:"return_date" json:"returnDate,omitempty"`

	Items []Item `db:"-" json:"items"`
}

// ReturnedTotal sums the returned item totals.
func (r *ReturnedSale) ReturnedTotal() types.Money {
	total := types.Zero()
	for i := range r.Items {
		total = total.Add(r.Items[i].Total())
	}
	return total
}

// Totals are the derived amounts of a return.
type Totals struct {
	SaleTotal     types.Money
	PaidTotal     types.Money
	ReturnedTotal types.Money
	// Subtotal is sale − paid − returned.
	Subtotal types.Money
	// TotalAmount is subtotal − discount + penalty. Negative means the
	// customer is owed money.
	TotalAmount types.Money
	// Fraction is returned / sale total, the share of the sale being reversed.
	Fraction types.Money
}

// Repository stores returned sales.
type Repository interface {
	CreateReturnedSale(ctx context.Context, r *ReturnedSale) error
	UpdateReturnedSale(ctx context.Context, r *ReturnedSale) error
	GetReturnedSale(ctx context.Context, returnedSaleID id.ID) (*ReturnedSale, error)
	ReturnedSalesOfSale(ctx context.Context, saleID id.ID) ([]*ReturnedSale, error)
	AddItem(ctx context.Context, item *Item) error
	RemoveItem(ctx context.Context, itemID id.ID) error
}

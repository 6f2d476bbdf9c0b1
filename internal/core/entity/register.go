package entity

import (
	"time"

	"stoq/internal/core/id"
	"stoq/internal/core/types"
)

// RecordType defines movement direction for accumulation registers.
type RecordType string

const (
	// RecordTypeReceipt increases balance
	RecordTypeReceipt RecordType = "receipt"
	// RecordTypeExpense decreases balance
	RecordTypeExpense RecordType = "expense"
)

// StockMovement is one immutable row of the stock register.
// RecorderID/RecorderType point at the operation that moved the goods
// (a sale, a returned sale).
type StockMovement struct {
	LineID       id.ID      `db:"line_id" json:"lineId"`
	RecorderID   id.ID      `db:"recorder_id" json:"recorderId"`
	RecorderType string     `db:"recorder_type" json:"recorderType"`
	Period       time.Time  `db:"period" json:"period"`
	RecordType   RecordType `db:"record_type" json:"recordType"`

	BranchID  id.ID `db:"branch_id" json:"branchId"`
	ProductID id.ID `db:"product_id" json:"productId"`

	Quantity types.Quantity `db:"quantity" json:"quantity"`
}

// NewStockMovement creates a new stock movement with a generated line id.
func NewStockMovement(recorderID id.ID, recorderType string, period time.Time, recordType RecordType,
	branchID, productID id.ID, quantity types.Quantity) StockMovement {
	return StockMovement{
		LineID:       id.New(),
		RecorderID:   recorderID,
		RecorderType: recorderType,
		Period:       period,
		RecordType:   recordType,
		BranchID:     branchID,
		ProductID:    productID,
		Quantity:     quantity,
	}
}

// SignedQuantity returns quantity with sign based on record type.
// Receipt = positive, Expense = negative.
func (m *StockMovement) SignedQuantity() types.Quantity {
	if m.RecordType == RecordTypeExpense {
		return m.Quantity.Neg()
	}
	return m.Quantity
}

// StockBalance is the materialized balance of a product at a branch.
type StockBalance struct {
	BranchID  id.ID          `db:"branch_id" json:"branchId"`
	ProductID id.ID          `db:"product_id" json:"productId"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	UpdatedAt time.Time      `db:"updated_at" json:"updatedAt"`
}

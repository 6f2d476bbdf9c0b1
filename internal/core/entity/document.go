package entity

import (
	"context"
	"time"

	"stoq/internal/core/apperror"
	"stoq/internal/core/id"
)

// Document is the base type for commercial operations (sales, returns,
// renegotiations). Identifier is the human facing number, monotonic per branch.
type Document struct {
	BaseDocument

	Identifier int64 `db:"identifier" json:"identifier"`

	// BranchID is the branch that owns the operation
	BranchID id.ID `db:"branch_id" json:"branchId"`

	// ResponsibleID is the user who created the operation
	ResponsibleID *id.ID `db:"responsible_id" json:"responsibleId,omitempty"`

	Notes string `db:"notes" json:"notes,omitempty"`
}

// NewDocument creates a new Document owned by branchID.
func NewDocument(branchID id.ID, now time.Time) Document {
	return Document{
		BaseDocument: NewBaseDocument(now),
		BranchID:     branchID,
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if id.IsNil(d.BranchID) {
		return apperror.NewValidation("branch is required").
			WithDetail("field", "branchId")
	}
	return nil
}

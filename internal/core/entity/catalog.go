package entity

import (
	"context"

	"stoq/internal/core/apperror"
	"stoq/internal/core/id"
)

// Catalog is the base type for reference data such as sellables and
// sellable categories.
type Catalog struct {
	BaseEntity

	// Code is a human-readable identifier
	Code string `db:"code" json:"code"`

	Description string `db:"description" json:"description"`

	// ParentID for hierarchical catalogs (nullable)
	ParentID *id.ID `db:"parent_id" json:"parentId,omitempty"`
}

// NewCatalog creates a new Catalog with generated ID.
func NewCatalog(code, description string) Catalog {
	return Catalog{
		BaseEntity:  NewBaseEntity(),
		Code:        code,
		Description: description,
	}
}

// Validate implements Validatable interface.
func (c *Catalog) Validate(ctx context.Context) error {
	if c.Description == "" {
		return apperror.NewValidation("description is required").
			WithDetail("field", "description")
	}
	if c.ParentID != nil && *c.ParentID == c.ID {
		return apperror.NewValidation("catalog cannot be its own parent").
			WithDetail("field", "parentId")
	}
	return nil
}

// IsRoot returns true if catalog has no parent.
func (c *Catalog) IsRoot() bool {
	return c.ParentID == nil
}

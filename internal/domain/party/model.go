// Package party models the persons referenced by payments: clients,
// salespeople and branches. Roles are optional records attached to a Person.
package party

import (
	"context"

	"stoq/internal/core/apperror"
	"stoq/internal/core/entity"
	"stoq/internal/core/id"
	"stoq/internal/core/types"
)

// ClientStatus mirrors the credit standing of a client.
type ClientStatus string

const (
	ClientSolvent   ClientStatus = "solvent"
	ClientIndebted  ClientStatus = "indebted"
	ClientInsolvent ClientStatus = "insolvent"
	ClientInactive  ClientStatus = "inactive"
)

// ClientRole marks a person as a client.
type ClientRole struct {
	Status      ClientStatus `db:"client_status" json:"status"`
	CreditLimit types.Money  `db:"credit_limit" json:"creditLimit"`
}

// SupplierRole marks a person as a supplier.
type SupplierRole struct {
	ProductLeadTimeDays int `db:"lead_time_days" json:"productLeadTimeDays"`
}

// EmployeeRole marks a person as an employee; salespeople receive commissions.
type EmployeeRole struct {
	IsSalesperson bool `db:"is_salesperson" json:"isSalesperson"`
}

// BranchRole marks a person as a company branch.
type BranchRole struct {
	Acronym string `db:"acronym" json:"acronym"`
}

// Person is a party with optional roles.
type Person struct {
	entity.BaseEntity
	Name string `json:"name"`

	Client   *ClientRole   `json:"client,omitempty"`
	Supplier *SupplierRole `json:"supplier,omitempty"`
	Employee *EmployeeRole `json:"employee,omitempty"`
	Branch   *BranchRole   `json:"branch,omitempty"`
}

// NewPerson creates a person without roles.
func NewPerson(name string) *Person {
	return &Person{BaseEntity: entity.NewBaseEntity(), Name: name}
}

// Validate implements entity.Validatable.
func (p *Person) Validate(ctx context.Context) error {
	if p.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	return nil
}

// IsClient reports whether the person has a client role.
func (p *Person) IsClient() bool { return p.Client != nil }

// IsSalesperson reports whether the person may earn commissions.
func (p *Person) IsSalesperson() bool { return p.Employee != nil && p.Employee.IsSalesperson }

// IsBranch reports whether the person is a branch.
func (p *Person) IsBranch() bool { return p.Branch != nil }

// Repository stores persons with their roles.
type Repository interface {
	GetPerson(ctx context.Context, personID id.ID) (*Person, error)
	SavePerson(ctx context.Context, p *Person) error
}

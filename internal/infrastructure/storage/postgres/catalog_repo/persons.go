package catalog_repo

import (
	"context"

	"github.com/shopspring/decimal"

	"stoq/internal/core/entity"
	"stoq/internal/core/id"
	"stoq/internal/domain/party"
	"stoq/internal/infrastructure/storage/postgres"
)

// personRow flattens a person and its optional roles; a role is stored
// when its columns are not NULL.
type personRow struct {
	ID      id.ID  `db:"id"`
	Version int    `db:"version"`
	Name    string `db:"name"`

	ClientStatus  *party.ClientStatus `db:"client_status"`
	CreditLimit   decimal.NullDecimal `db:"credit_limit"`
	LeadTimeDays  *int                `db:"lead_time_days"`
	IsSalesperson *bool               `db:"is_salesperson"`
	Acronym       *string             `db:"acronym"`
}

func toPersonRow(p *party.Person) *personRow {
	row := &personRow{ID: p.ID, Version: p.Version, Name: p.Name}
	if p.Client != nil {
		status := p.Client.Status
		row.ClientStatus = &status
		row.CreditLimit = decimal.NewNullDecimal(p.Client.CreditLimit)
	}
	if p.Supplier != nil {
		days := p.Supplier.ProductLeadTimeDays
		row.LeadTimeDays = &days
	}
	if p.Employee != nil {
		sales := p.Employee.IsSalesperson
		row.IsSalesperson = &sales
	}
	if p.Branch != nil {
		acronym := p.Branch.Acronym
		row.Acronym = &acronym
	}
	return row
}

func (row *personRow) person() *party.Person {
	p := &party.Person{
		BaseEntity: entity.BaseEntity{ID: row.ID, Version: row.Version},
		Name:       row.Name,
	}
	if row.ClientStatus != nil {
		p.Client = &party.ClientRole{Status: *row.ClientStatus, CreditLimit: row.CreditLimit.Decimal}
	}
	if row.LeadTimeDays != nil {
		p.Supplier = &party.SupplierRole{ProductLeadTimeDays: *row.LeadTimeDays}
	}
	if row.IsSalesperson != nil {
		p.Employee = &party.EmployeeRole{IsSalesperson: *row.IsSalesperson}
	}
	if row.Acronym != nil {
		p.Branch = &party.BranchRole{Acronym: *row.Acronym}
	}
	return p
}

// PersonRepo implements party.Repository.
type PersonRepo struct {
	persons postgres.Table[personRow]
}

var _ party.Repository = (*PersonRepo)(nil)

// NewPersonRepo creates the person repository.
func NewPersonRepo(txm *postgres.TxManager) *PersonRepo {
	return &PersonRepo{persons: postgres.NewTable[personRow](txm, "persons", "person")}
}

func (r *PersonRepo) GetPerson(ctx context.Context, personID id.ID) (*party.Person, error) {
	row, err := r.persons.GetByID(ctx, personID)
	if err != nil {
		return nil, err
	}
	return row.person(), nil
}

// SavePerson inserts or replaces a person with its roles.
func (r *PersonRepo) SavePerson(ctx context.Context, p *party.Person) error {
	return r.persons.Upsert(ctx, toPersonRow(p), "id")
}

package catalog_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoq/internal/core/types"
	"stoq/internal/domain/party"
)

func TestPersonRow_KeepsRoles(t *testing.T) {
	p := party.NewPerson("Client and salesperson")
	p.Client = &party.ClientRole{Status: party.ClientIndebted, CreditLimit: types.MustMoney("250.00")}
	p.Employee = &party.EmployeeRole{IsSalesperson: true}

	row := toPersonRow(p)
	require.NotNil(t, row.ClientStatus)
	assert.True(t, row.CreditLimit.Valid)
	assert.Nil(t, row.LeadTimeDays)
	assert.Nil(t, row.Acronym)

	back := row.person()
	assert.Equal(t, p.ID, back.ID)
	assert.True(t, back.IsClient())
	assert.True(t, back.IsSalesperson())
	assert.False(t, back.IsBranch())
	assert.Nil(t, back.Supplier)
	assert.Equal(t, party.ClientIndebted, back.Client.Status)
	assert.True(t, back.Client.CreditLimit.Equal(types.MustMoney("250")))
}

func TestPersonRow_NoRoles(t *testing.T) {
	back := toPersonRow(party.NewPerson("Nobody")).person()
	assert.Nil(t, back.Client)
	assert.Nil(t, back.Employee)
	assert.Nil(t, back.Branch)
}

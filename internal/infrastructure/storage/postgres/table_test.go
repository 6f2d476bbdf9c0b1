package postgres

import (
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoq/internal/core/entity"
	"stoq/internal/core/id"
	"stoq/internal/domain/payment"
)

func TestTable_UpdateVersionedSQL(t *testing.T) {
	table := NewTable[payment.Group](nil, "payment_groups", "payment group")
	g := payment.NewGroup(nil, nil)
	g.Version = 4

	sql, args, err := table.updateVersionedSQL(g, g.ID, g.Version)
	require.NoError(t, err)

	assert.Contains(t, sql, "UPDATE payment_groups SET ")
	assert.Contains(t, sql, "version = version + 1")
	assert.Contains(t, sql, "WHERE id = $")
	assert.Contains(t, sql, "AND version = $")
	assert.NotContains(t, sql, "SET id =")
	assert.Equal(t, g.ID.String(), args[len(args)-2], "uuid goes through driver.Valuer")
	assert.Equal(t, 4, args[len(args)-1])
}

func TestTable_UpsertSQL(t *testing.T) {
	table := NewTable[payment.Method](nil, "payment_methods", "payment method")
	m := &payment.Method{BaseEntity: entity.NewBaseEntity(), Name: payment.MethodMoney, MaxInstallments: 1}

	sql, args, err := table.upsertSQL(m, []string{"name"})
	require.NoError(t, err)

	assert.Contains(t, sql, "INSERT INTO payment_methods")
	assert.Contains(t, sql, "ON CONFLICT (name) DO UPDATE SET id = EXCLUDED.id, version = EXCLUDED.version")
	assert.NotContains(t, sql, "name = EXCLUDED.name")
	assert.Len(t, args, len(table.Columns()))
}

func TestTable_SelectUsesMappedColumns(t *testing.T) {
	table := NewTable[payment.Payment](nil, "payments", "payment")
	sql, args, err := table.Select().Where(squirrel.Eq{"group_id": id.Nil()}).OrderBy("due_date", "identifier").ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "SELECT id, version, identifier, direction, method_name")
	assert.Contains(t, sql, "FROM payments WHERE group_id = $1 ORDER BY due_date, identifier")
	assert.Len(t, args, 1)
}

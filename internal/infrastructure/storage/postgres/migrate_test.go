package postgres

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/stoq?sslmode=disable", MigrationURL("postgres://u:p@db:5432/stoq?sslmode=disable"))
	assert.Equal(t, "pgx5://db/stoq", MigrationURL("postgresql://db/stoq"))
	assert.Equal(t, "pgx5://db/stoq", MigrationURL("pgx5://db/stoq"))
}

func TestMigrations_ArePaired(t *testing.T) {
	files, err := fs.Glob(migrationFS, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, f := range files {
		switch {
		case strings.HasSuffix(f, ".up.sql"):
			ups[strings.TrimSuffix(f, ".up.sql")] = true
		case strings.HasSuffix(f, ".down.sql"):
			downs[strings.TrimSuffix(f, ".down.sql")] = true
		default:
			t.Errorf("unexpected migration file %s", f)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestMigrations_CoverMappedTables(t *testing.T) {
	var schema strings.Builder
	files, err := fs.Glob(migrationFS, "migrations/*.up.sql")
	require.NoError(t, err)
	for _, f := range files {
		b, err := fs.ReadFile(migrationFS, f)
		require.NoError(t, err)
		schema.Write(b)
	}
	for _, table := range []string{
		"sys_sequences", "sys_outbox", "sys_outbox_dlq", "persons", "sellables", "payments",
		"payment_groups", "payment_methods", "account_transactions", "fiscal_book_entries",
		"commissions", "sales", "returned_sales", "renegotiation_groups", "stock_balances", "sys_audit",
	} {
		assert.Contains(t, schema.String(), "CREATE TABLE "+table+" (", table)
	}
}

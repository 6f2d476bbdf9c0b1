package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoq/internal/core/entity"
	"stoq/internal/core/id"
	"stoq/internal/core/types"
	"stoq/internal/domain/payment"
	"stoq/internal/domain/sale"
)

func TestExtractDBColumns_FlattensEmbeddedDocument(t *testing.T) {
	cols := ExtractDBColumns[sale.Sale]()

	require.GreaterOrEqual(t, len(cols), 4)
	assert.Equal(t, []string{"id", "version", "created_at", "updated_at"}, cols[:4])
	for _, expected := range []string{"identifier", "branch_id", "status", "group_id", "return_date"} {
		assert.Contains(t, cols, expected)
	}
	assert.NotContains(t, cols, "items")
	assert.NotContains(t, cols, "-")
}

func TestStructToMap_Payment(t *testing.T) {
	due := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	p := payment.Payment{
		BaseEntity: entity.BaseEntity{ID: id.New(), Version: 3},
		Identifier: 42,
		Direction:  payment.In,
		Method:     payment.MethodCheck,
		Status:     payment.StatusPending,
		Value:      types.MustMoney("10.50"),
		DueDate:    due,
	}

	m := StructToMap(&p)

	assert.Equal(t, p.ID, m["id"])
	assert.Equal(t, 3, m["version"])
	assert.Equal(t, int64(42), m["identifier"])
	assert.Equal(t, payment.MethodCheck, m["method_name"])
	assert.Equal(t, due, m["due_date"])
	assert.Nil(t, m["paid_date"])
	assert.Len(t, m, len(ExtractDBColumns[payment.Payment]()))
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
}

package register_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoq/internal/core/entity"
	"stoq/internal/core/id"
	"stoq/internal/core/types"
)

func TestBalanceDeltas_FoldsPerBranchAndProduct(t *testing.T) {
	branch, other := id.New(), id.New()
	p1, p2 := id.New(), id.New()
	recorder := id.New()
	t0 := time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

	deltas := balanceDeltas([]entity.StockMovement{
		entity.NewStockMovement(recorder, "sale", t0, entity.RecordTypeExpense, branch, p1, types.NewQuantity(3)),
		entity.NewStockMovement(recorder, "sale", t0, entity.RecordTypeReceipt, branch, p2, types.NewQuantity(2)),
		entity.NewStockMovement(recorder, "sale", t0.Add(time.Hour), entity.RecordTypeReceipt, branch, p1, types.NewQuantity(1)),
		entity.NewStockMovement(recorder, "sale", t0, entity.RecordTypeReceipt, other, p1, types.NewQuantity(5)),
	})

	require.Len(t, deltas, 3)
	assert.Equal(t, p1, deltas[0].ProductID)
	assert.Equal(t, types.NewQuantity(-2), deltas[0].Quantity)
	assert.Equal(t, t0.Add(time.Hour), deltas[0].UpdatedAt)
	assert.Equal(t, types.NewQuantity(2), deltas[1].Quantity)
	assert.Equal(t, other, deltas[2].BranchID)
	assert.Equal(t, types.NewQuantity(5), deltas[2].Quantity)
}

func TestMovementColumns_MatchCopyOrder(t *testing.T) {
	assert.Equal(t, []string{
		"line_id", "recorder_id", "recorder_type", "period", "record_type",
		"branch_id", "product_id", "quantity",
	}, movementColumns)
}

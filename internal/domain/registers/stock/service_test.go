package stock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoq/internal/core/apperror"
	"stoq/internal/core/clock"
	"stoq/internal/core/id"
	"stoq/internal/core/types"
	"stoq/internal/domain/registers/stock"
	"stoq/internal/infrastructure/storage/memory"
)

func TestStock(t *testing.T) {
	ctx := context.Background()
	svc := stock.NewService(memory.New(), clock.Fixed(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)))
	product, north, south := id.New(), id.New(), id.New()
	rec := stock.Recorder{ID: id.New(), Type: "test"}

	require.NoError(t, svc.IncreaseStock(ctx, product, north, types.NewQuantity(5), rec))
	require.NoError(t, svc.IncreaseStock(ctx, product, south, types.NewQuantity(2), rec))
	require.NoError(t, svc.DecreaseStock(ctx, product, north, types.NewQuantity(3), rec))

	q, err := svc.Balance(ctx, product, north)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(2), q)

	total, err := svc.GetProductAvailability(ctx, product)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(4), total)

	moves, err := svc.Movements(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, moves, 3)

	t.Run("insufficient", func(t *testing.T) {
		err := svc.DecreaseStock(ctx, product, south, types.NewQuantity(3), rec)
		assert.True(t, apperror.IsOutOfStock(err))
	})
	t.Run("quantity must be positive", func(t *testing.T) {
		assert.True(t, apperror.IsInvalidValue(svc.IncreaseStock(ctx, product, south, 0, rec)))
		assert.True(t, apperror.IsInvalidValue(svc.DecreaseStock(ctx, product, south, types.NewQuantity(-1), rec)))
	})
	t.Run("recorder required", func(t *testing.T) {
		err := svc.IncreaseStock(ctx, product, south, types.NewQuantity(1), stock.Recorder{})
		assert.True(t, apperror.IsValidation(err))
	})
}

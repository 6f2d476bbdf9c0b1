package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoq/internal/core/apperror"
	"stoq/internal/core/entity"
	"stoq/internal/core/id"
	"stoq/internal/core/types"
	"stoq/internal/domain/payment"
)

func TestRunInTransaction_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	g := payment.NewGroup(nil, nil)
	require.NoError(t, s.CreateGroup(ctx, g))

	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, s.CreateGroup(ctx, payment.NewGroup(nil, nil)))
		require.NoError(t, s.CreateMovements(ctx, []entity.StockMovement{
			entity.NewStockMovement(id.New(), "sale", types.DateOf(g.CreatedAt, nil), entity.RecordTypeReceipt,
				id.New(), id.New(), types.NewQuantity(3)),
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Len(t, s.data.groups, 1)
	assert.Empty(t, s.data.movements)
	assert.Empty(t, s.data.balances)
}

func TestRunInTransaction_NestedJoinsOuter(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, s.CreateGroup(ctx, payment.NewGroup(nil, nil)))
		inner := s.RunInTransaction(ctx, func(ctx context.Context) error {
			return s.CreateGroup(ctx, payment.NewGroup(nil, nil))
		})
		require.NoError(t, inner)
		return apperror.NewConflict("abort")
	})
	require.Error(t, err)
	assert.Empty(t, s.data.groups)
}

func TestUpdatePayment_OptimisticLock(t *testing.T) {
	ctx := context.Background()
	s := New()
	g := payment.NewGroup(nil, nil)
	require.NoError(t, s.CreateGroup(ctx, g))

	p := &payment.Payment{BaseEntity: entity.NewBaseEntity(), GroupID: g.ID, Direction: payment.In, Status: payment.StatusPreview}
	require.NoError(t, s.CreatePayment(ctx, p))

	first, err := s.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	second, err := s.GetPayment(ctx, p.ID)
	require.NoError(t, err)

	first.Status = payment.StatusPending
	require.NoError(t, s.UpdatePayment(ctx, first))
	assert.Equal(t, second.Version+1, first.Version)

	second.Status = payment.StatusCancelled
	err = s.UpdatePayment(ctx, second)
	assert.True(t, apperror.IsConcurrentModification(err))
}

func TestGetPayment_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	g := payment.NewGroup(nil, nil)
	require.NoError(t, s.CreateGroup(ctx, g))
	p := &payment.Payment{BaseEntity: entity.NewBaseEntity(), GroupID: g.ID, Value: types.NewMoney(10)}
	require.NoError(t, s.CreatePayment(ctx, p))

	loaded, err := s.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	loaded.Value = types.NewMoney(99)

	again, err := s.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, again.Value.Equal(types.NewMoney(10)))
}

func TestStockBalances(t *testing.T) {
	ctx := context.Background()
	s := New()
	branch, product := id.New(), id.New()

	balance, err := s.GetBalance(ctx, branch, product)
	require.NoError(t, err)
	assert.True(t, balance.Quantity.IsZero())

	rec := id.New()
	now := types.DateOf(entity.NewBaseEntity().CreatedAt, nil)
	require.NoError(t, s.CreateMovements(ctx, []entity.StockMovement{
		entity.NewStockMovement(rec, "sale", now, entity.RecordTypeReceipt, branch, product, types.NewQuantity(5)),
		entity.NewStockMovement(rec, "sale", now, entity.RecordTypeExpense, branch, product, types.NewQuantity(2)),
	}))

	balance, err = s.GetBalance(ctx, branch, product)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(3), balance.Quantity)

	moves, err := s.GetMovementsByRecorder(ctx, rec)
	require.NoError(t, err)
	assert.Len(t, moves, 2)

	byProduct, err := s.GetBalancesByProduct(ctx, product)
	require.NoError(t, err)
	assert.Len(t, byProduct, 1)
}

// Package stock provides the stock accumulation register.
package stock

import (
	"context"

	"stoq/internal/core/entity"
	"stoq/internal/core/id"
)

// Repository defines operations for the stock register.
type Repository interface {
	// CreateMovements inserts movements and applies them to the balances.
	CreateMovements(ctx context.Context, movements []entity.StockMovement) error

	// GetMovementsByRecorder retrieves all movements written by an operation.
	GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error)

	// GetBalance returns the current balance of a product at a branch.
	// Products never moved have a zero balance.
	GetBalance(ctx context.Context, branchID, productID id.ID) (entity.StockBalance, error)

	// GetBalanceForUpdate is GetBalance holding a row lock until commit.
	GetBalanceForUpdate(ctx context.Context, branchID, productID id.ID) (entity.StockBalance, error)

	// GetBalancesByProduct returns the balances of a product across branches.
	GetBalancesByProduct(ctx context.Context, productID id.ID) ([]entity.StockBalance, error)
}

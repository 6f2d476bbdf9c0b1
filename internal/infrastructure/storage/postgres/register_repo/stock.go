// Package register_repo stores the append-only registers of the payment
// core: stock movements, account transactions, fiscal book entries and
// commissions.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stoq/internal/core/entity"
	"stoq/internal/core/id"
	"stoq/internal/core/types"
	"stoq/internal/domain/registers/stock"
	"stoq/internal/infrastructure/storage/postgres"
)

const (
	stockMovementsTable = "stock_movements"
	stockBalancesTable  = "stock_balances"
)

var (
	movementColumns = postgres.ExtractDBColumns[entity.StockMovement]()
	balanceColumns  = postgres.ExtractDBColumns[entity.StockBalance]()
)

const applyBalance = `
	INSERT INTO stock_balances (branch_id, product_id, quantity, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (branch_id, product_id) DO UPDATE
	SET quantity = stock_balances.quantity + EXCLUDED.quantity,
	    updated_at = GREATEST(stock_balances.updated_at, EXCLUDED.updated_at)`

// StockRepo implements stock.Repository. Balances are maintained by the
// repository in the same transaction as the movements.
type StockRepo struct {
	txm      *postgres.TxManager
	inserter *postgres.BatchInserter
	batch    *postgres.BatchExecutor
}

var _ stock.Repository = (*StockRepo)(nil)

// NewStockRepo creates a stock register repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txm:      txm,
		inserter: postgres.NewBatchInserter(txm),
		batch:    postgres.NewBatchExecutor(txm),
	}
}

// CreateMovements copies movements and adds their signed quantities to the
// balances.
func (r *StockRepo) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		rows := make([][]any, 0, len(movements))
		for _, m := range movements {
			rows = append(rows, []any{
				m.LineID, m.RecorderID, m.RecorderType, m.Period, m.RecordType,
				m.BranchID, m.ProductID, m.Quantity,
			})
		}
		if _, err := r.inserter.CopyFromSlice(ctx, stockMovementsTable, movementColumns, rows); err != nil {
			return fmt.Errorf("copy movements: %w", err)
		}

		var queries []postgres.BatchQuery
		for _, d := range balanceDeltas(movements) {
			queries = append(queries, postgres.BatchQuery{
				SQL:  applyBalance,
				Args: []any{d.BranchID, d.ProductID, d.Quantity, d.UpdatedAt},
			})
		}
		if err := r.batch.ExecuteBatch(ctx, queries); err != nil {
			return fmt.Errorf("apply balances: %w", err)
		}
		return nil
	})
}

// balanceDeltas folds movements into one change per branch and product,
// in first-seen order so concurrent writers lock rows in the same order.
func balanceDeltas(movements []entity.StockMovement) []entity.StockBalance {
	type key struct{ branch, product id.ID }
	index := make(map[key]int)
	var out []entity.StockBalance
	for _, m := range movements {
		k := key{m.BranchID, m.ProductID}
		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			out = append(out, entity.StockBalance{BranchID: m.BranchID, ProductID: m.ProductID, UpdatedAt: m.Period})
			i = len(out) - 1
		}
		out[i].Quantity += m.SignedQuantity()
		if m.Period.After(out[i].UpdatedAt) {
			out[i].UpdatedAt = m.Period
		}
	}
	return out
}

// GetMovementsByRecorder retrieves the movements written by one operation.
func (r *StockRepo) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	q := postgres.Builder.Select(movementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"recorder_id": recorderID}).
		OrderBy("period", "line_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []entity.StockMovement
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}

// GetBalance returns the balance of a product at a branch.
func (r *StockRepo) GetBalance(ctx context.Context, branchID, productID id.ID) (entity.StockBalance, error) {
	return r.balance(ctx, branchID, productID, "")
}

// GetBalanceForUpdate locks the balance row until the transaction ends.
func (r *StockRepo) GetBalanceForUpdate(ctx context.Context, branchID, productID id.ID) (entity.StockBalance, error) {
	return r.balance(ctx, branchID, productID, "FOR UPDATE")
}

func (r *StockRepo) balance(ctx context.Context, branchID, productID id.ID, lock string) (entity.StockBalance, error) {
	q := postgres.Builder.Select(balanceColumns...).
		From(stockBalancesTable).
		Where(squirrel.Eq{"branch_id": branchID, "product_id": productID})
	if lock != "" {
		q = q.Suffix(lock)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return entity.StockBalance{}, fmt.Errorf("build query: %w", err)
	}

	var balance entity.StockBalance
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &balance, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity.StockBalance{BranchID: branchID, ProductID: productID, Quantity: types.Quantity(0)}, nil
		}
		return balance, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// GetBalancesByProduct returns the non-zero balances of a product.
func (r *StockRepo) GetBalancesByProduct(ctx context.Context, productID id.ID) ([]entity.StockBalance, error) {
	q := postgres.Builder.Select(balanceColumns...).
		From(stockBalancesTable).
		Where(squirrel.Eq{"product_id": productID}).
		Where(squirrel.NotEq{"quantity": int64(0)}).
		OrderBy("branch_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var balances []entity.StockBalance
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &balances, sql, args...); err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}
	return balances, nil
}

package stock

import (
	"context"
	"fmt"

	"stoq/internal/core/apperror"
	"stoq/internal/core/clock"
	"stoq/internal/core/entity"
	"stoq/internal/core/id"
	"stoq/internal/core/types"
	"stoq/pkg/logger"
)

// Recorder identifies the operation moving stock.
type Recorder struct {
	ID   id.ID
	Type string
}

// Service provides business operations for the stock register.
// Transactions are managed by the caller.
type Service struct {
	repo  Repository
	clock clock.Clock
}

// NewService creates a new stock register service.
func NewService(repo Repository, clk clock.Clock) *Service {
	return &Service{
		repo:  repo,
		clock: clk,
	}
}

// IncreaseStock records a receipt of qty units of product at branch.
func (s *Service) IncreaseStock(ctx context.Context, productID, branchID id.ID, qty types.Quantity, rec Recorder) error {
	if !qty.IsPositive() {
		return apperror.NewInvalidValue("quantity", "quantity must be positive")
	}
	return s.record(ctx, entity.RecordTypeReceipt, productID, branchID, qty, rec)
}

// DecreaseStock records an expense of qty units. It fails with an
// insufficient stock error when the locked balance cannot cover qty.
func (s *Service) DecreaseStock(ctx context.Context, productID, branchID id.ID, qty types.Quantity, rec Recorder) error {
	if !qty.IsPositive() {
		return apperror.NewInvalidValue("quantity", "quantity must be positive")
	}
	balance, err := s.repo.GetBalanceForUpdate(ctx, branchID, productID)
	if err != nil {
		return fmt.Errorf("get balance for %s: %w", productID, err)
	}
	if balance.Quantity < qty {
		return apperror.NewInsufficientStock(productID.String(), qty.Float64(), balance.Quantity.Float64())
	}
	return s.record(ctx, entity.RecordTypeExpense, productID, branchID, qty, rec)
}

func (s *Service) record(ctx context.Context, rt entity.RecordType, productID, branchID id.ID, qty types.Quantity, rec Recorder) error {
	if id.IsNil(rec.ID) {
		return apperror.NewValidation("recorder_id is required")
	}
	m := entity.NewStockMovement(rec.ID, rec.Type, s.clock.Now(), rt, branchID, productID, qty)
	if err := s.repo.CreateMovements(ctx, []entity.StockMovement{m}); err != nil {
		return fmt.Errorf("create movements: %w", err)
	}
	logger.Debug(ctx, "recorded stock movement",
		"record_type", rt,
		"product_id", productID,
		"quantity", qty,
		"recorder_id", rec.ID,
	)
	return nil
}

// Balance returns the stock of a product at a branch.
func (s *Service) Balance(ctx context.Context, productID, branchID id.ID) (types.Quantity, error) {
	b, err := s.repo.GetBalance(ctx, branchID, productID)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return b.Quantity, nil
}

// GetProductAvailability returns available quantity across branches.
func (s *Service) GetProductAvailability(ctx context.Context, productID id.ID) (types.Quantity, error) {
	balances, err := s.repo.GetBalancesByProduct(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("get balances: %w", err)
	}

	var total types.Quantity
	for _, b := range balances {
		total += b.Quantity
	}

	return total, nil
}

// Movements lists what an operation moved.
func (s *Service) Movements(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	return s.repo.GetMovementsByRecorder(ctx, recorderID)
}

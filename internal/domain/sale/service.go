package sale

import (
	"context"
	"fmt"

	"stoq/internal/core/apperror"
	"stoq/internal/core/clock"
	"stoq/internal/core/entity"
	"stoq/internal/core/id"
	"stoq/internal/core/numerator"
	"stoq/internal/core/tx"
	"stoq/internal/core/types"
	"stoq/internal/domain/catalog"
	"stoq/internal/domain/commission"
	"stoq/internal/domain/fiscal"
	"stoq/internal/domain/params"
	"stoq/internal/domain/party"
	"stoq/internal/domain/payment"
	"stoq/internal/domain/registers/stock"
	"stoq/pkg/logger"
)

// RecorderType tags stock movements written by sales.
const RecorderType = "sale"

// Deps are the collaborators of Service.
type Deps struct {
	Store       Repository
	Catalog     catalog.Repository
	Payments    *payment.Service
	Fiscal      *fiscal.Service
	Commissions *commission.Service
	Stock       *stock.Service
	Directory   party.Directory
	Numerator   numerator.Generator
	Clock       clock.Clock
	Tx          tx.Manager
	Params      params.Parameters
}

// Service runs the sale workflow.
type Service struct {
	Deps
}

// NewService creates a sale service.
func NewService(d Deps) *Service {
	return &Service{Deps: d}
}

// CreateParams describe a new sale.
type CreateParams struct {
	ClientID      *id.ID
	SalespersonID *id.ID
	CFOP          string
	Discount      types.Money
	Surcharge     types.Money
	Notes         string
}

// Create opens an INITIAL sale together with its payment group.
func (s *Service) Create(ctx context.Context, in CreateParams) (*Sale, error) {
	var sale *Sale
	err := s.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		branchID, err := s.Directory.CurrentBranch(ctx)
		if err != nil {
			return err
		}
		if in.ClientID != nil {
			if _, err := s.Directory.GetClient(ctx, *in.ClientID); err != nil {
				return err
			}
		}
		if in.SalespersonID != nil {
			if _, err := s.Directory.GetSalesperson(ctx, *in.SalespersonID); err != nil {
				return err
			}
		}
		responsible, err := s.Directory.CurrentUser(ctx)
		if err != nil {
			return err
		}
		identifier, err := s.Numerator.Next(ctx, numerator.Config{Kind: numerator.KindSale, Scope: branchID.String()}, nil)
		if err != nil {
			return fmt.Errorf("next sale identifier: %w", err)
		}
		group, err := s.Payments.CreateGroup(ctx, in.ClientID, &branchID)
		if err != nil {
			return err
		}

		sale = &Sale{
			Document:      entity.NewDocument(branchID, s.Clock.Now()),
			Status:        StatusInitial,
			ClientID:      in.ClientID,
			SalespersonID: in.SalespersonID,
			CFOP:          in.CFOP,
			Discount:      in.Discount,
			Surcharge:     in.Surcharge,
			GroupID:       group.ID,
		}
		sale.Identifier = identifier
		sale.ResponsibleID = responsible
		sale.Notes = in.Notes
		if err := sale.Validate(ctx); err != nil {
			return err
		}
		if err := s.Store.CreateSale(ctx, sale); err != nil {
			return fmt.Errorf("create sale: %w", err)
		}
		_, err = s.Payments.AttachParent(ctx, group.ID, payment.ParentSale, sale.ID, identifier)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "sale created", "sale_id", sale.ID, "identifier", sale.Identifier)
	return sale, nil
}

// Get loads a sale with its items.
func (s *Service) Get(ctx context.Context, saleID id.ID) (*Sale, error) {
	return s.Store.GetSale(ctx, saleID)
}

// GetByGroup loads the sale owning a payment group.
func (s *Service) GetByGroup(ctx context.Context, groupID id.ID) (*Sale, error) {
	return s.Store.GetSaleByGroup(ctx, groupID)
}

// ItemParams describe a sale item. Price defaults to the sellable price.
type ItemParams struct {
	SellableID id.ID
	Quantity   types.Quantity
	Price      *types.Money
	ICMS       types.Money
	IPI        types.Money
	ISS        types.Money
}

// AddItem adds an item to an open sale.
func (s *Service) AddItem(ctx context.Context, saleID id.ID, in ItemParams) (*Item, error) {
	var item *Item
	err := s.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		sale, err := s.Store.GetSale(ctx, saleID)
		if err != nil {
			return err
		}
		if !sale.IsOpen() {
			return sale.transitionError("add_item")
		}
		if !in.Quantity.IsPositive() {
			return apperror.NewInvalidValue("quantity", "quantity must be positive")
		}
		sellable, err := s.Catalog.GetSellable(ctx, in.SellableID)
		if err != nil {
			return err
		}
		price := sellable.Price
		if in.Price != nil {
			price = *in.Price
		}
		if price.IsNegative() {
			return apperror.NewInvalidValue("price", "price must not be negative")
		}
		item = &Item{
			ID:         id.New(),
			SaleID:     sale.ID,
			SellableID: sellable.ID,
			Quantity:   in.Quantity,
			Price:      price,
			IsService:  sellable.IsService,
			ICMS:       in.ICMS,
			IPI:        in.IPI,
			ISS:        in.ISS,
		}
		return s.Store.AddItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Order moves an INITIAL sale to ORDERED.
func (s *Service) Order(ctx context.Context, saleID id.ID) (*Sale, error) {
	return s.update(ctx, saleID, func(ctx context.Context, sale *Sale) error {
		if sale.Status != StatusInitial {
			return sale.transitionError("order")
		}
		sale.Status = StatusOrdered
		return nil
	})
}

// Confirm confirms the payment group, pays pay-on-confirm methods, writes the
// fiscal entries and the optional whole-sale commission, and takes the sold
// products out of stock.
func (s *Service) Confirm(ctx context.Context, saleID id.ID, invoiceNumber int64) (*Sale, error) {
	sale, err := s.update(ctx, saleID, func(ctx context.Context, sale *Sale) error {
		if !sale.IsOpen() {
			return sale.transitionError("confirm")
		}
		if len(sale.Items) == 0 {
			return apperror.NewValidation("sale has no items")
		}
		if sale.CFOP == "" {
			sale.CFOP = s.Params.DefaultSalesCFOP
		}
		sale.InvoiceNumber = invoiceNumber

		if err := s.Payments.ConfirmGroup(ctx, sale.GroupID); err != nil {
			return err
		}
		if err := s.Payments.PayOnConfirm(ctx, sale.GroupID); err != nil {
			return err
		}
		if err := s.writeFiscal(ctx, sale); err != nil {
			return err
		}
		if s.Params.SalePayCommissionWhenConfirmed && s.Commissions != nil {
			if err := s.Commissions.CreateForSale(ctx, Info(sale)); err != nil {
				return err
			}
		}
		if err := s.decreaseStock(ctx, sale); err != nil {
			return err
		}

		now := s.Clock.Now()
		sale.Status = StatusConfirmed
		sale.ConfirmDate = &now
		return s.closeIfPaid(ctx, sale)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "sale confirmed",
		"sale_id", sale.ID, "identifier", sale.Identifier, "status", sale.Status, "total", sale.TotalAmount())
	return sale, nil
}

func (s *Service) writeFiscal(ctx context.Context, sale *Sale) error {
	var products, services bool
	icms, ipi, iss := types.Zero(), types.Zero(), types.Zero()
	for _, item := range sale.Items {
		if item.IsService {
			services = true
			iss = iss.Add(item.ISS)
			continue
		}
		products = true
		icms = icms.Add(item.ICMS)
		ipi = ipi.Add(item.IPI)
	}
	if products {
		if _, err := s.Fiscal.CreateProductEntry(ctx, fiscal.ProductEntry{
			GroupID: sale.GroupID, CFOP: sale.CFOP, InvoiceNumber: sale.InvoiceNumber, ICMS: icms, IPI: ipi,
		}); err != nil {
			return err
		}
	}
	if services {
		if _, err := s.Fiscal.CreateServiceEntry(ctx, fiscal.ServiceEntry{
			GroupID: sale.GroupID, CFOP: sale.CFOP, InvoiceNumber: sale.InvoiceNumber, ISS: iss,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) decreaseStock(ctx context.Context, sale *Sale) error {
	rec := stock.Recorder{ID: sale.ID, Type: RecorderType}
	for _, item := range sale.Items {
		sellable, err := s.Catalog.GetSellable(ctx, item.SellableID)
		if err != nil {
			return err
		}
		if !sellable.Stockable() {
			continue
		}
		if err := s.Stock.DecreaseStock(ctx, sellable.ID, sale.BranchID, item.Quantity, rec); err != nil {
			return err
		}
	}
	return nil
}

// closeIfPaid moves a CONFIRMED sale to PAID once its group is fully paid.
func (s *Service) closeIfPaid(ctx context.Context, sale *Sale) error {
	ledger, err := s.Payments.Ledger(ctx, sale.GroupID)
	if err != nil {
		return err
	}
	if ledger.IsFullyPaid() {
		now := s.Clock.Now()
		sale.Status = StatusPaid
		sale.CloseDate = &now
	}
	return nil
}

// SetPaid closes a confirmed sale whose payments are all paid.
func (s *Service) SetPaid(ctx context.Context, saleID id.ID) (*Sale, error) {
	return s.update(ctx, saleID, func(ctx context.Context, sale *Sale) error {
		if sale.Status != StatusConfirmed {
			return sale.transitionError("set_paid")
		}
		if err := s.closeIfPaid(ctx, sale); err != nil {
			return err
		}
		if sale.Status != StatusPaid {
			return apperror.NewBusinessRule(apperror.CodeInvalidTransition, "sale still has unpaid payments").
				WithDetail("sale_id", sale.ID.String())
		}
		return nil
	})
}

// Cancel cancels an open sale and its pending payments.
func (s *Service) Cancel(ctx context.Context, saleID id.ID) (*Sale, error) {
	return s.update(ctx, saleID, func(ctx context.Context, sale *Sale) error {
		if !sale.IsOpen() {
			return sale.transitionError("cancel")
		}
		if _, err := s.Payments.CancelGroup(ctx, sale.GroupID); err != nil {
			return err
		}
		if err := s.Payments.ClearUnused(ctx, sale.GroupID); err != nil {
			return err
		}
		sale.Status = StatusCancelled
		return nil
	})
}

// AddDiscount raises the discount of an open sale.
func (s *Service) AddDiscount(ctx context.Context, saleID id.ID, amount types.Money) (*Sale, error) {
	return s.update(ctx, saleID, func(ctx context.Context, sale *Sale) error {
		if !sale.IsOpen() {
			return sale.transitionError("add_discount")
		}
		if amount.IsNegative() {
			return apperror.NewInvalidValue("discount", "discount must not be negative")
		}
		sale.Discount = sale.Discount.Add(amount)
		return nil
	})
}

// MarkReturned records that a sale was returned or traded.
func (s *Service) MarkReturned(ctx context.Context, saleID id.ID) (*Sale, error) {
	return s.update(ctx, saleID, func(ctx context.Context, sale *Sale) error {
		if !sale.CanReturn() {
			return sale.transitionError("return")
		}
		now := s.Clock.Now()
		sale.Status = StatusReturned
		sale.ReturnDate = &now
		return nil
	})
}

// MarkRenegotiated records that a sale's payments were renegotiated.
func (s *Service) MarkRenegotiated(ctx context.Context, saleID id.ID) (*Sale, error) {
	return s.update(ctx, saleID, func(ctx context.Context, sale *Sale) error {
		if !sale.CanRenegotiate() {
			return sale.transitionError("renegotiate")
		}
		sale.Status = StatusRenegotiated
		return nil
	})
}

func (s *Service) update(ctx context.Context, saleID id.ID, fn func(ctx context.Context, sale *Sale) error) (*Sale, error) {
	var sale *Sale
	err := s.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if sale, err = s.Store.GetSale(ctx, saleID); err != nil {
			return err
		}
		if err := fn(ctx, sale); err != nil {
			return err
		}
		sale.UpdatedAt = s.Clock.Now()
		if err := s.Store.UpdateSale(ctx, sale); err != nil {
			return fmt.Errorf("update sale %s: %w", sale.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// Info projects a sale for the commission engine.
func Info(sale *Sale) *commission.SaleInfo {
	info := &commission.SaleInfo{
		SaleID:        sale.ID,
		GroupID:       sale.GroupID,
		SalespersonID: sale.SalespersonID,
		Subtotal:      sale.Subtotal(),
	}
	for i := range sale.Items {
		info.Lines = append(info.Lines, commission.SaleLine{
			SellableID: sale.Items[i].SellableID,
			Total:      sale.Items[i].Total(),
		})
	}
	return info
}

// Finder implements commission.SaleFinder over a sale repository.
type Finder struct {
	repo Repository
}

// NewFinder creates a Finder.
func NewFinder(repo Repository) *Finder { return &Finder{repo: repo} }

// SaleOfGroup implements commission.SaleFinder.
func (f *Finder) SaleOfGroup(ctx context.Context, groupID id.ID) (*commission.SaleInfo, error) {
	sale, err := f.repo.GetSaleByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return Info(sale), nil
}

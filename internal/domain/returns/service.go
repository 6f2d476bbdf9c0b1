package returns

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stoq/internal/core/apperror"
	"stoq/internal/core/clock"
	"stoq/internal/core/entity"
	"stoq/internal/core/id"
	"stoq/internal/core/numerator"
	"stoq/internal/core/tx"
	"stoq/internal/core/types"
	"stoq/internal/domain/catalog"
	"stoq/internal/domain/commission"
	"stoq/internal/domain/events"
	"stoq/internal/domain/fiscal"
	"stoq/internal/domain/params"
	"stoq/internal/domain/party"
	"stoq/internal/domain/payment"
	"stoq/internal/domain/registers/stock"
	"stoq/internal/domain/sale"
	"stoq/pkg/logger"
)

var tracer = otel.Tracer("stoq/returns")

// RecorderType tags stock movements written by returns.
const RecorderType = "returned_sale"

// Deps are the collaborators of Service.
type Deps struct {
	Store       Repository
	Sales       *sale.Service
	Payments    *payment.Service
	Fiscal      *fiscal.Service
	Commissions *commission.Service
	Stock       *stock.Service
	Catalog     catalog.Repository
	Directory   party.Directory
	Numerator   numerator.Generator
	Clock       clock.Clock
	Tx          tx.Manager
	Events      events.Publisher
	Params      params.Parameters
}

// Service is the return engine.
type Service struct {
	deps Deps
}

// NewService creates the return engine.
func NewService(d Deps) *Service {
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	return &Service{deps: d}
}

// CreateParams describe a new returned sale.
type CreateParams struct {
	SaleID        *id.ID
	NewSaleID     *id.ID
	Reason        string
	InvoiceNumber int64
	Discount      types.Money
	Penalty       types.Money
}

// Create opens a pending returned sale without items.
func (s *Service) Create(ctx context.Context, in CreateParams) (*ReturnedSale, error) {
	if in.Discount.IsNegative() || in.Penalty.IsNegative() {
		return nil, apperror.NewInvalidValue("discount", "discount and penalty must not be negative")
	}
	var r *ReturnedSale
	err := s.deps.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		branchID, err := s.deps.Directory.CurrentBranch(ctx)
		if err != nil {
			return err
		}
		responsible, err := s.deps.Directory.CurrentUser(ctx)
		if err != nil {
			return err
		}
		if in.SaleID != nil {
			if _, err := s.deps.Sales.Get(ctx, *in.SaleID); err != nil {
				return err
			}
		}
		identifier, err := s.deps.Numerator.Next(ctx,
			numerator.Config{Kind: numerator.KindReturnedSale, Scope: branchID.String()}, nil)
		if err != nil {
			return fmt.Errorf("next returned sale identifier: %w", err)
		}
		r = &ReturnedSale{
			Document:      entity.NewDocument(branchID, s.deps.Clock.Now()),
			Status:        StatusPending,
			SaleID:        in.SaleID,
			NewSaleID:     in.NewSaleID,
			Reason:        in.Reason,
			InvoiceNumber: in.InvoiceNumber,
			Discount:      in.Discount,
			Penalty:       in.Penalty,
		}
		r.Identifier = identifier
		r.ResponsibleID = responsible
		if err := r.Validate(ctx); err != nil {
			return err
		}
		return s.deps.Store.CreateReturnedSale(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// CreateForSale opens a returned sale holding every sold item in full.
func (s *Service) CreateForSale(ctx context.Context, in CreateParams) (*ReturnedSale, error) {
	if in.SaleID == nil {
		return nil, apperror.NewValidation("sale is required").WithDetail("field", "saleId")
	}
	var r *ReturnedSale
	err := s.deps.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if r, err = s.Create(ctx, in); err != nil {
			return err
		}
		sold, err := s.deps.Sales.Get(ctx, *in.SaleID)
		if err != nil {
			return err
		}
		for i := range sold.Items {
			itemID := sold.Items[i].ID
			if _, err := s.addItem(ctx, r, ItemParams{SaleItemID: &itemID, Quantity: sold.Items[i].Quantity}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ItemParams describe a returned item. With SaleItemID the sellable and the
// price come from the sold item.
type ItemParams struct {
	SaleItemID *id.ID
	SellableID id.ID
	Quantity   types.Quantity
	Price      *types.Money
}

// AddItem adds an item to a pending returned sale. Zero quantities are
// accepted and dropped when the return runs.
func (s *Service) AddItem(ctx context.Context, returnedSaleID id.ID, in ItemParams) (*Item, error) {
	var item *Item
	err := s.deps.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		r, err := s.deps.Store.GetReturnedSale(ctx, returnedSaleID)
		if err != nil {
			return err
		}
		item, err = s.addItem(ctx, r, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) addItem(ctx context.Context, r *ReturnedSale, in ItemParams) (*Item, error) {
	if r.Status != StatusPending {
		return nil, apperror.NewInvalidTransition("returned sale", string(r.Status), "add_item")
	}
	if in.Quantity.IsNegative() {
		return nil, apperror.NewInvalidValue("quantity", "returned quantity must not be negative")
	}
	item := &Item{
		ID:             id.New(),
		ReturnedSaleID: r.ID,
		SellableID:     in.SellableID,
		SaleItemID:     in.SaleItemID,
		Quantity:       in.Quantity,
	}
	if in.SaleItemID != nil {
		if r.SaleID == nil {
			return nil, apperror.NewValidation("sale item given for a return without sale")
		}
		sold, err := s.deps.Sales.Get(ctx, *r.SaleID)
		if err != nil {
			return nil, err
		}
		saleItem, ok := sold.Item(*in.SaleItemID)
		if !ok {
			return nil, apperror.NewNotFound("sale item", in.SaleItemID.String())
		}
		if in.Quantity > saleItem.Quantity {
			return nil, apperror.NewInvalidValue("quantity", "cannot return more than was sold")
		}
		item.SellableID = saleItem.SellableID
		item.Price = saleItem.Price
	} else {
		sellable, err := s.deps.Catalog.GetSellable(ctx, in.SellableID)
		if err != nil {
			return nil, err
		}
		item.Price = sellable.Price
	}
	if in.Price != nil {
		item.Price = *in.Price
	}
	if item.Price.IsNegative() {
		return nil, apperror.NewInvalidValue("price", "price must not be negative")
	}
	if err := s.deps.Store.AddItem(ctx, item); err != nil {
		return nil, fmt.Errorf("add returned item: %w", err)
	}
	r.Items = append(r.Items, *item)
	return item, nil
}

// Get loads a returned sale with its items.
func (s *Service) Get(ctx context.Context, returnedSaleID id.ID) (*ReturnedSale, error) {
	return s.deps.Store.GetReturnedSale(ctx, returnedSaleID)
}

// Totals computes the derived amounts of r. The paid total counts paid IN
// payments net of every valid OUT payment, so refunds already owed are not
// paid back twice.
func (s *Service) Totals(ctx context.Context, r *ReturnedSale) (Totals, error) {
	t := Totals{
		SaleTotal:     types.Zero(),
		PaidTotal:     types.Zero(),
		ReturnedTotal: r.ReturnedTotal(),
		Fraction:      types.Zero(),
	}
	if r.SaleID != nil {
		sold, err := s.deps.Sales.Get(ctx, *r.SaleID)
		if err != nil {
			return t, err
		}
		ledger, err := s.deps.Payments.Ledger(ctx, sold.GroupID)
		if err != nil {
			return t, err
		}
		t.SaleTotal = sold.TotalAmount()
		t.PaidTotal = netPaid(ledger)
		t.Fraction = types.Ratio(t.ReturnedTotal, t.SaleTotal)
	}
	t.Subtotal = t.SaleTotal.Sub(t.PaidTotal).Sub(t.ReturnedTotal)
	t.TotalAmount = t.Subtotal.Sub(r.Discount).Add(r.Penalty)
	return t, nil
}

// netPaid is what the client has paid on the group: paid IN payments less
// every valid OUT payment already owed back.
func netPaid(l *payment.Ledger) types.Money {
	total := types.Zero()
	for _, p := range l.Payments {
		switch {
		case p.IsInpayment() && p.IsPaid():
			total = total.Add(p.Value)
		case p.IsOutpayment() && p.IsValid():
			total = total.Sub(p.Value)
		}
	}
	return total
}

// prepare runs the checks shared by Return and Trade and drops zero
// quantity items.
func (s *Service) prepare(ctx context.Context, returnedSaleID id.ID) (*ReturnedSale, *sale.Sale, error) {
	r, err := s.deps.Store.GetReturnedSale(ctx, returnedSaleID)
	if err != nil {
		return nil, nil, err
	}
	if r.Status != StatusPending {
		return nil, nil, apperror.NewInvalidTransition("returned sale", string(r.Status), "return")
	}
	var sold *sale.Sale
	if r.SaleID != nil {
		if sold, err = s.deps.Sales.Get(ctx, *r.SaleID); err != nil {
			return nil, nil, err
		}
		if !sold.CanReturn() {
			return nil, nil, apperror.NewInvalidTransition("sale", string(sold.Status), "return")
		}
	}
	kept := r.Items[:0]
	for _, item := range r.Items {
		if item.Quantity.IsZero() {
			if err := s.deps.Store.RemoveItem(ctx, item.ID); err != nil {
				return nil, nil, fmt.Errorf("remove returned item: %w", err)
			}
			continue
		}
		kept = append(kept, item)
	}
	r.Items = kept
	if len(r.Items) == 0 {
		return nil, nil, apperror.NewInvalidValue("items", "nothing to return")
	}
	return r, sold, nil
}

// Return runs a return: settles the cash difference with the customer,
// puts the goods back in stock, reverses the fiscal entries and the
// commission in proportion and marks the sale RETURNED.
func (s *Service) Return(ctx context.Context, returnedSaleID id.ID) (r *ReturnedSale, err error) {
	ctx, span := tracer.Start(ctx, "returns.Return",
		trace.WithAttributes(attribute.String("returned_sale.id", returnedSaleID.String())))
	defer func() { endSpan(span, err) }()

	var totals Totals
	err = s.deps.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		var sold *sale.Sale
		var err error
		if r, sold, err = s.prepare(ctx, returnedSaleID); err != nil {
			return err
		}
		if sold == nil {
			return apperror.NewValidation("return needs the original sale").WithDetail("field", "saleId")
		}
		if totals, err = s.Totals(ctx, r); err != nil {
			return err
		}

		switch {
		case totals.TotalAmount.IsZero():
			if _, err := s.deps.Payments.CancelGroup(ctx, sold.GroupID); err != nil {
				return err
			}
		case totals.TotalAmount.IsNegative():
			if err := s.refund(ctx, r, sold, totals); err != nil {
				return err
			}
		}

		if err := s.finish(ctx, r, sold, totals); err != nil {
			return err
		}
		return s.deps.Events.Publish(ctx, s.event(events.TopicSaleReturned, r, totals))
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("returned_sale.total_amount", totals.TotalAmount.String()))
	logger.Info(ctx, "sale returned",
		"returned_sale_id", r.ID, "sale_id", r.SaleID,
		"returned_total", totals.ReturnedTotal, "total_amount", totals.TotalAmount)
	return r, nil
}

// refund cancels what the customer still owes and creates the OUT money
// payment paying back the difference. The return's discount becomes the
// payment's penalty and its penalty the payment's discount, so the paid
// value equals |total amount|.
func (s *Service) refund(ctx context.Context, r *ReturnedSale, sold *sale.Sale, t Totals) error {
	if _, err := s.deps.Payments.CancelPendingIn(ctx, sold.GroupID); err != nil {
		return err
	}
	p, err := s.deps.Payments.Create(ctx, payment.CreateParams{
		GroupID:   sold.GroupID,
		Method:    payment.MethodMoney,
		Direction: payment.Out,
		Value:     t.Subtotal.Abs(),
		System:    true,
	})
	if err != nil {
		return err
	}
	if _, err := s.deps.Payments.Adjust(ctx, p.ID, r.Penalty, types.Zero(), r.Discount); err != nil {
		return err
	}
	_, err = s.deps.Payments.SetPending(ctx, p.ID)
	return err
}

// finish applies the stock, fiscal, commission and status effects shared by
// Return and Trade. sold may be nil for trades without an original sale.
func (s *Service) finish(ctx context.Context, r *ReturnedSale, sold *sale.Sale, t Totals) error {
	rec := stock.Recorder{ID: r.ID, Type: RecorderType}
	for _, item := range r.Items {
		sellable, err := s.deps.Catalog.GetSellable(ctx, item.SellableID)
		if err != nil {
			return err
		}
		if !sellable.Stockable() {
			continue
		}
		if err := s.deps.Stock.IncreaseStock(ctx, sellable.ID, r.BranchID, item.Quantity, rec); err != nil {
			return err
		}
	}

	if sold != nil {
		if _, err := s.deps.Fiscal.ReverseGroup(ctx, sold.GroupID, r.InvoiceNumber, t.Fraction); err != nil {
			return err
		}
		if s.deps.Commissions != nil {
			if err := s.deps.Commissions.Compensate(ctx, sale.Info(sold), t.Fraction); err != nil {
				return err
			}
		}
		if _, err := s.deps.Sales.MarkReturned(ctx, sold.ID); err != nil {
			return err
		}
	}

	now := s.deps.Clock.Now()
	r.Status = StatusConfirmed
	r.ReturnDate = &now
	r.UpdatedAt = now
	if err := s.deps.Store.UpdateReturnedSale(ctx, r); err != nil {
		return fmt.Errorf("update returned sale: %w", err)
	}
	return nil
}

// Trade uses the returned value to pay for the new sale, either as a paid
// trade payment on its group or, with UseTradeAsDiscount, as a discount.
// Both sales are touched in one transaction.
func (s *Service) Trade(ctx context.Context, returnedSaleID id.ID) (r *ReturnedSale, err error) {
	ctx, span := tracer.Start(ctx, "returns.Trade",
		trace.WithAttributes(attribute.String("returned_sale.id", returnedSaleID.String())))
	defer func() { endSpan(span, err) }()

	var totals Totals
	err = s.deps.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		var sold *sale.Sale
		var err error
		if r, sold, err = s.prepare(ctx, returnedSaleID); err != nil {
			return err
		}
		if r.NewSaleID == nil {
			return apperror.NewValidation("trade needs a new sale").WithDetail("field", "newSaleId")
		}
		newSale, err := s.deps.Sales.Get(ctx, *r.NewSaleID)
		if err != nil {
			return err
		}
		if totals, err = s.Totals(ctx, r); err != nil {
			return err
		}

		if s.deps.Params.UseTradeAsDiscount {
			if _, err := s.deps.Sales.AddDiscount(ctx, newSale.ID, totals.ReturnedTotal); err != nil {
				return err
			}
		} else if err := s.payWithTrade(ctx, newSale, totals.ReturnedTotal); err != nil {
			return err
		}

		if err := s.finish(ctx, r, sold, totals); err != nil {
			return err
		}
		return s.deps.Events.Publish(ctx, s.event(events.TopicSaleTraded, r, totals))
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "sale traded",
		"returned_sale_id", r.ID, "sale_id", r.SaleID, "new_sale_id", r.NewSaleID,
		"returned_total", totals.ReturnedTotal)
	return r, nil
}

func (s *Service) payWithTrade(ctx context.Context, newSale *sale.Sale, value types.Money) error {
	p, err := s.deps.Payments.Create(ctx, payment.CreateParams{
		GroupID:   newSale.GroupID,
		Method:    payment.MethodTrade,
		Direction: payment.In,
		Value:     value,
		System:    true,
	})
	if err != nil {
		return err
	}
	if _, err := s.deps.Payments.SetPending(ctx, p.ID); err != nil {
		return err
	}
	_, err = s.deps.Payments.Pay(ctx, p.ID, payment.PayOptions{})
	return err
}

func (s *Service) event(topic events.Topic, r *ReturnedSale, t Totals) events.Event {
	return events.Event{
		Topic:         topic,
		AggregateType: "returned_sale",
		AggregateID:   r.ID,
		OccurredAt:    s.deps.Clock.Now(),
		Payload: events.SaleReturned{
			ReturnedSaleID: r.ID,
			SaleID:         r.SaleID,
			NewSaleID:      r.NewSaleID,
			ReturnedTotal:  t.ReturnedTotal,
			TotalAmount:    t.TotalAmount,
		},
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

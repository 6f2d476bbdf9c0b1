package commission

import (
	"context"
	"fmt"

	"stoq/internal/core/apperror"
	"stoq/internal/core/clock"
	"stoq/internal/core/entity"
	"stoq/internal/core/id"
	"stoq/internal/core/types"
	"stoq/internal/domain"
	"stoq/internal/domain/catalog"
	"stoq/internal/domain/params"
	"stoq/internal/domain/payment"
	"stoq/pkg/logger"
)

// SaleLine is one sold sellable with its line total.
type SaleLine struct {
	SellableID id.ID
	Total      types.Money
}

// SaleInfo is the part of a sale commissions are computed from.
type SaleInfo struct {
	SaleID        id.ID
	GroupID       id.ID
	SalespersonID *id.ID
	Subtotal      types.Money
	Lines         []SaleLine
}

// SaleFinder resolves the sale owning a payment group.
type SaleFinder interface {
	// SaleOfGroup returns NotFound for groups without a sale.
	SaleOfGroup(ctx context.Context, groupID id.ID) (*SaleInfo, error)
}

// PaymentSource lists the payments of a group.
type PaymentSource interface {
	ValidPaymentsOfGroup(ctx context.Context, groupID id.ID) ([]*payment.Payment, error)
}

// Service is the commission engine.
type Service struct {
	repo     Repository
	catalog  catalog.Repository
	sales    SaleFinder
	payments PaymentSource
	clock    clock.Clock
	params   params.Parameters
}

// NewService creates the commission engine.
func NewService(repo Repository, cat catalog.Repository, sales SaleFinder, payments PaymentSource, clk clock.Clock, p params.Parameters) *Service {
	return &Service{repo: repo, catalog: cat, sales: sales, payments: payments, clock: clk, params: p}
}

// Register attaches the engine to the payment after_pay and after_unpay hooks.
func (s *Service) Register(hooks *domain.HookRegistry[*payment.Payment]) {
	hooks.On(domain.AfterPay, s.OnPaymentPaid)
	hooks.On(domain.AfterUnpay, s.OnPaymentUnpaid)
}

// SetSource stores the rates of a sellable or category.
func (s *Service) SetSource(ctx context.Context, src *Source) error {
	if id.IsNil(src.ID) {
		src.BaseEntity = entity.NewBaseEntity()
	}
	if err := src.Validate(ctx); err != nil {
		return err
	}
	return s.repo.SaveSource(ctx, src)
}

// Resolve finds the source of a sellable: its own, else the nearest category
// up the parent chain. It returns nil when none applies.
func (s *Service) Resolve(ctx context.Context, sellableID id.ID) (*Source, error) {
	src, err := s.repo.SourceForSellable(ctx, sellableID)
	if err == nil {
		return src, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("source for sellable: %w", err)
	}
	sellable, err := s.catalog.GetSellable(ctx, sellableID)
	if err != nil {
		return nil, fmt.Errorf("get sellable: %w", err)
	}
	if sellable.CategoryID == nil {
		return nil, nil
	}
	chain, err := catalog.CategoryChain(ctx, s.catalog, *sellable.CategoryID)
	if err != nil {
		return nil, err
	}
	for _, c := range chain {
		src, err := s.repo.SourceForCategory(ctx, c.ID)
		if err == nil {
			return src, nil
		}
		if !apperror.IsNotFound(err) {
			return nil, fmt.Errorf("source for category: %w", err)
		}
	}
	return nil, nil
}

// compute sums line × rate × share over the lines with a source.
// Rounding happens once, at the end.
func (s *Service) compute(ctx context.Context, sale *SaleInfo, installments int, share types.Money) (types.Money, Kind, error) {
	total := types.Zero()
	kind := KindDirect
	for _, line := range sale.Lines {
		src, err := s.Resolve(ctx, line.SellableID)
		if err != nil {
			return total, kind, err
		}
		if src == nil {
			continue
		}
		rate, k := src.Rate(installments)
		kind = k
		total = total.Add(types.Percent(line.Total, rate).Mul(share))
	}
	return types.RoundMoney(total), kind, nil
}

func (s *Service) installments(ctx context.Context, groupID id.ID) (int, error) {
	payments, err := s.payments.ValidPaymentsOfGroup(ctx, groupID)
	if err != nil {
		return 0, fmt.Errorf("payments of group: %w", err)
	}
	n := 0
	for _, p := range payments {
		if p.IsInpayment() {
			n++
		}
	}
	return n, nil
}

// saleOfPayment returns the sale of an IN payment with a salesperson, or nil
// when the payment earns no commission.
func (s *Service) saleOfPayment(ctx context.Context, p *payment.Payment) (*SaleInfo, error) {
	if !p.IsInpayment() || s.params.SalePayCommissionWhenConfirmed {
		return nil, nil
	}
	sale, err := s.sales.SaleOfGroup(ctx, p.GroupID)
	if apperror.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if sale.SalespersonID == nil {
		return nil, nil
	}
	return sale, nil
}

// sums returns the commission of one payment and of the whole sale.
func (s *Service) sums(ctx context.Context, saleID, paymentID id.ID) (own, total types.Money, err error) {
	list, err := s.repo.CommissionsOfSale(ctx, saleID)
	if err != nil {
		return types.Zero(), types.Zero(), fmt.Errorf("commissions of sale: %w", err)
	}
	own, total = types.Zero(), types.Zero()
	for _, c := range list {
		total = total.Add(c.Value)
		if id.Equal(c.PaymentID, &paymentID) {
			own = own.Add(c.Value)
		}
	}
	return own, total, nil
}

// OnPaymentPaid writes the commission of a paid sale payment, once per payment.
func (s *Service) OnPaymentPaid(ctx context.Context, p *payment.Payment) error {
	sale, err := s.saleOfPayment(ctx, p)
	if err != nil || sale == nil {
		return err
	}
	own, _, err := s.sums(ctx, sale.SaleID, p.ID)
	if err != nil {
		return err
	}
	if !own.IsZero() {
		return nil
	}
	n, err := s.installments(ctx, p.GroupID)
	if err != nil {
		return err
	}
	value, kind, err := s.compute(ctx, sale, n, types.Ratio(p.Value, sale.Subtotal))
	if err != nil {
		return err
	}
	return s.write(ctx, sale, &p.ID, kind, value)
}

// OnPaymentUnpaid drops the commission of a payment set back to not paid.
// A payment whose commission was already compensated by a return keeps it,
// and the operation fails, since dropping it would leave the sale negative.
func (s *Service) OnPaymentUnpaid(ctx context.Context, p *payment.Payment) error {
	sale, err := s.saleOfPayment(ctx, p)
	if err != nil || sale == nil {
		return err
	}
	own, total, err := s.sums(ctx, sale.SaleID, p.ID)
	if err != nil {
		return err
	}
	if own.IsZero() {
		return nil
	}
	if total.Sub(own).IsNegative() {
		return apperror.NewInvalidTransition("commission", "compensated", "set_not_paid")
	}
	if err := s.repo.DeleteCommissionsOfPayment(ctx, p.ID); err != nil {
		return fmt.Errorf("delete commission: %w", err)
	}
	logger.Info(ctx, "commission removed", "sale_id", sale.SaleID, "payment_id", p.ID, "value", own)
	return nil
}

// CreateForSale writes the whole commission of a sale at confirmation.
func (s *Service) CreateForSale(ctx context.Context, sale *SaleInfo) error {
	if sale.SalespersonID == nil {
		return nil
	}
	n, err := s.installments(ctx, sale.GroupID)
	if err != nil {
		return err
	}
	value, kind, err := s.compute(ctx, sale, n, types.NewMoney(1))
	if err != nil {
		return err
	}
	return s.write(ctx, sale, nil, kind, value)
}

// Compensate writes a negative commission for the returned fraction of a
// sale. The sum of the sale's commissions never drops below zero.
func (s *Service) Compensate(ctx context.Context, sale *SaleInfo, fraction types.Money) error {
	if sale.SalespersonID == nil || !fraction.IsPositive() {
		return nil
	}
	existing, err := s.repo.CommissionsOfSale(ctx, sale.SaleID)
	if err != nil {
		return fmt.Errorf("commissions of sale: %w", err)
	}
	positive, total := types.Zero(), types.Zero()
	kind := KindDirect
	for _, c := range existing {
		total = total.Add(c.Value)
		if c.Value.IsPositive() {
			positive = positive.Add(c.Value)
			kind = c.Kind
		}
	}
	value := types.RoundMoney(positive.Mul(fraction)).Neg()
	if total.Add(value).IsNegative() {
		value = total.Neg()
	}
	if value.IsZero() {
		return nil
	}
	return s.write(ctx, sale, nil, kind, value)
}

func (s *Service) write(ctx context.Context, sale *SaleInfo, paymentID *id.ID, kind Kind, value types.Money) error {
	if value.IsZero() {
		return nil
	}
	c := &Commission{
		BaseEntity:    entity.NewBaseEntity(),
		SaleID:        sale.SaleID,
		PaymentID:     paymentID,
		SalespersonID: *sale.SalespersonID,
		Kind:          kind,
		Value:         value,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.repo.CreateCommission(ctx, c); err != nil {
		return fmt.Errorf("create commission: %w", err)
	}
	logger.Info(ctx, "commission created",
		"sale_id", sale.SaleID, "salesperson_id", c.SalespersonID, "kind", kind, "value", value)
	return nil
}

// OfSale lists the commissions of a sale.
func (s *Service) OfSale(ctx context.Context, saleID id.ID) ([]*Commission, error) {
	return s.repo.CommissionsOfSale(ctx, saleID)
}

// Total sums the commissions of a sale.
func (s *Service) Total(ctx context.Context, saleID id.ID) (types.Money, error) {
	list, err := s.repo.CommissionsOfSale(ctx, saleID)
	if err != nil {
		return types.Zero(), err
	}
	total := types.Zero()
	for _, c := range list {
		total = total.Add(c.Value)
	}
	return total, nil
}

package payment

import (
	"context"
	"fmt"
	"time"

	"stoq/internal/core/apperror"
	"stoq/internal/core/clock"
	"stoq/internal/core/entity"
	"stoq/internal/core/id"
	"stoq/internal/core/numerator"
	"stoq/internal/core/tx"
	"stoq/internal/core/types"
	"stoq/internal/domain"
	"stoq/internal/domain/events"
	"stoq/internal/domain/params"
	"stoq/internal/domain/party"
	"stoq/pkg/logger"
)

// TransactionEmitter books the account transaction of a paid payment.
type TransactionEmitter interface {
	EmitForPayment(ctx context.Context, p *Payment, m *Method) error
	RevertForPayment(ctx context.Context, p *Payment) error
}

// Deps are the collaborators of Service.
type Deps struct {
	Store     Store
	Registry  *Registry
	Tx        tx.Manager
	Clock     clock.Clock
	Numerator numerator.Generator
	Directory party.Directory
	Events    events.Publisher
	Params    params.Parameters
	// Transactions is optional; without it no account transaction is booked.
	Transactions TransactionEmitter
}

// Service runs the payment state machine and its side effects.
type Service struct {
	store        Store
	registry     *Registry
	txm          tx.Manager
	clock        clock.Clock
	numerator    numerator.Generator
	directory    party.Directory
	events       events.Publisher
	params       params.Parameters
	transactions TransactionEmitter
	hooks        *domain.HookRegistry[*Payment]
}

// NewService creates a payment service.
func NewService(d Deps) *Service {
	if d.Registry == nil {
		d.Registry = NewRegistry()
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	return &Service{
		store:        d.Store,
		registry:     d.Registry,
		txm:          d.Tx,
		clock:        d.Clock,
		numerator:    d.Numerator,
		directory:    d.Directory,
		events:       d.Events,
		params:       d.Params,
		transactions: d.Transactions,
		hooks:        domain.NewHookRegistry[*Payment](),
	}
}

// Hooks exposes the payment lifecycle hooks (after_pay, after_cancel, after_unpay).
func (s *Service) Hooks() *domain.HookRegistry[*Payment] { return s.hooks }

// Registry returns the method registry.
func (s *Service) Registry() *Registry { return s.registry }

// CreateParams describes a new payment.
type CreateParams struct {
	GroupID   id.ID
	Method    MethodName
	Direction Direction
	Value     types.Money
	// BaseValue defaults to Value.
	BaseValue *types.Money
	// DueDate defaults to today.
	DueDate     time.Time
	Description string
	Separate    bool
	// System payments are created by internal workflows (returns, trades)
	// and skip the user-facing creatable check.
	System bool
}

// Create inserts a PREVIEW payment.
func (s *Service) Create(ctx context.Context, in CreateParams) (*Payment, error) {
	var created *Payment
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.create(ctx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Debug(ctx, "payment created",
		"payment_id", created.ID, "method", created.Method, "value", created.Value)
	return created, nil
}

func (s *Service) create(ctx context.Context, in CreateParams) (*Payment, error) {
	if in.Method == "" {
		in.Method = MethodName(s.params.DefaultPaymentMethod)
	}
	if !in.Direction.Valid() {
		return nil, apperror.NewValidation("invalid payment direction").WithDetail("field", "direction")
	}
	policy, err := s.registry.Resolve(in.Method)
	if err != nil {
		return nil, err
	}
	if !in.System && !policy.Creatable(in.Direction, in.Separate) {
		return nil, apperror.NewInvalidTransition("payment method", string(policy.Name), "create "+string(in.Direction)+" payment")
	}
	method, err := s.method(ctx, policy)
	if err != nil {
		return nil, err
	}
	if !method.IsActive {
		return nil, apperror.NewInvalidTransition("payment method", "inactive", "create payment").
			WithDetail("method", string(method.Name))
	}
	if in.Value.IsNegative() {
		return nil, apperror.NewInvalidValue("value", "payment value must not be negative")
	}
	base := in.Value
	if in.BaseValue != nil {
		base = *in.BaseValue
	}

	group, err := s.store.GetGroup(ctx, in.GroupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if policy.RequiresPayer(in.Direction) && group.PayerID == nil {
		return nil, apperror.NewValidation(fmt.Sprintf("method %s requires a payer", policy.Name)).
			WithDetail("field", "payerId")
	}
	if in.Direction == In {
		if err := s.checkInstallmentLimit(ctx, group, method, 1); err != nil {
			return nil, err
		}
	}

	branchID, err := s.directory.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}
	identifier, err := s.numerator.Next(ctx, numerator.Config{Kind: numerator.KindPayment, Scope: branchID.String()}, nil)
	if err != nil {
		return nil, fmt.Errorf("next payment identifier: %w", err)
	}

	now := s.clock.Now()
	due := in.DueDate
	if due.IsZero() {
		due = s.clock.Today()
	}
	p := &Payment{
		Identifier:  identifier,
		Direction:   in.Direction,
		Method:      policy.Name,
		GroupID:     group.ID,
		BranchID:    branchID,
		Status:      StatusPreview,
		Value:       in.Value,
		BaseValue:   base,
		Discount:    types.Zero(),
		Interest:    types.Zero(),
		Penalty:     types.Zero(),
		DueDate:     due,
		OpenDate:    now,
		Description: in.Description,
		Separate:    in.Separate,
	}
	p.BaseEntity = entity.NewBaseEntity()
	if p.Description == "" {
		p.Description = describe(policy, group, 1, 1)
	}
	if err := p.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.hooks.Run(ctx, domain.BeforeCreate, p); err != nil {
		return nil, err
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	if err := s.createAuxiliary(ctx, policy, p); err != nil {
		return nil, err
	}
	if err := s.hooks.Run(ctx, domain.AfterCreate, p); err != nil {
		return nil, err
	}
	return p, nil
}

// checkInstallmentLimit fails when adding n IN payments of method to group
// would exceed its maximum.
func (s *Service) checkInstallmentLimit(ctx context.Context, group *Group, method *Method, n int) error {
	existing, err := s.store.PaymentsByMethod(ctx, group.ID, method.Name)
	if err != nil {
		return fmt.Errorf("payments by method: %w", err)
	}
	count := NewLedger(group, existing).CountByMethod(method.Name, In)
	if count > method.MaxInstallments {
		return apperror.NewInconsistentLedger(fmt.Sprintf(
			"group %s holds %d %s payments, more than the allowed %d",
			group.ID, count, method.Name, method.MaxInstallments))
	}
	if count+n > method.MaxInstallments {
		return apperror.NewLimitExceeded(string(method.Name), method.MaxInstallments).
			WithDetail("existing", count)
	}
	return nil
}

// method returns the persisted record of policy, or its defaults when the
// installation never saved one.
func (s *Service) method(ctx context.Context, policy Policy) (*Method, error) {
	m, err := s.store.GetMethod(ctx, policy.Name)
	if err == nil {
		return m, nil
	}
	if apperror.IsNotFound(err) {
		return NewMethodFromPolicy(policy), nil
	}
	return nil, fmt.Errorf("get method %s: %w", policy.Name, err)
}

func (s *Service) createAuxiliary(ctx context.Context, policy Policy, p *Payment) error {
	switch policy.Auxiliary {
	case AuxiliaryCheck:
		account := &BankAccount{ID: id.New()}
		data := &CheckData{PaymentID: p.ID, BankAccountID: account.ID}
		if err := s.store.CreateCheckData(ctx, data, account); err != nil {
			return fmt.Errorf("create check data: %w", err)
		}
	case AuxiliaryCard:
		data := &CardData{PaymentID: p.ID}
		if err := data.Apply(CardDetails{CardType: CardCredit}, p.Value); err != nil {
			return err
		}
		if err := s.store.SaveCardData(ctx, data); err != nil {
			return fmt.Errorf("create card data: %w", err)
		}
	}
	return nil
}

func (s *Service) deleteAuxiliary(ctx context.Context, policy Policy, p *Payment) error {
	if !policy.DeleteAuxiliary() {
		return nil
	}
	switch policy.Auxiliary {
	case AuxiliaryCheck:
		if err := s.store.DeleteCheckData(ctx, p.ID); err != nil && !apperror.IsNotFound(err) {
			return fmt.Errorf("delete check data: %w", err)
		}
	case AuxiliaryCard:
		if err := s.store.DeleteCardData(ctx, p.ID); err != nil && !apperror.IsNotFound(err) {
			return fmt.Errorf("delete card data: %w", err)
		}
	}
	return nil
}

// Get loads a payment.
func (s *Service) Get(ctx context.Context, paymentID id.ID) (*Payment, error) {
	return s.store.GetPayment(ctx, paymentID)
}

// update runs fn on a loaded payment inside a transaction and saves it.
func (s *Service) update(ctx context.Context, paymentID id.ID, fn func(ctx context.Context, p *Payment) error) (*Payment, error) {
	var p *Payment
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.store.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		return fn(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) save(ctx context.Context, p *Payment) error {
	if err := s.store.UpdatePayment(ctx, p); err != nil {
		return fmt.Errorf("update payment %s: %w", p.ID, err)
	}
	return nil
}

// SetPending moves a PREVIEW payment to PENDING.
func (s *Service) SetPending(ctx context.Context, paymentID id.ID) (*Payment, error) {
	return s.update(ctx, paymentID, s.setPending)
}

func (s *Service) setPending(ctx context.Context, p *Payment) error {
	if p.Status == StatusPending {
		return nil
	}
	if err := p.SetPending(); err != nil {
		return err
	}
	return s.save(ctx, p)
}

// SetReviewing marks a card capture as under review.
func (s *Service) SetReviewing(ctx context.Context, paymentID id.ID) (*Payment, error) {
	return s.update(ctx, paymentID, func(ctx context.Context, p *Payment) error {
		if err := p.SetReviewing(); err != nil {
			return err
		}
		return s.save(ctx, p)
	})
}

// ConfirmCapture marks a reviewed card capture as confirmed.
func (s *Service) ConfirmCapture(ctx context.Context, paymentID id.ID) (*Payment, error) {
	return s.update(ctx, paymentID, func(ctx context.Context, p *Payment) error {
		if err := p.ConfirmCapture(); err != nil {
			return err
		}
		return s.save(ctx, p)
	})
}

// PayOptions tune Pay.
type PayOptions struct {
	// PaidValue defaults to the due amount.
	PaidValue *types.Money
	// PaidDate defaults to now.
	PaidDate *time.Time
	// ApplyLateFees adds the method's penalty and interest to overdue payments.
	ApplyLateFees bool
}

// Pay settles a pending payment, books its account transaction and runs the
// after_pay hooks (commissions).
func (s *Service) Pay(ctx context.Context, paymentID id.ID, opts PayOptions) (*Payment, error) {
	p, err := s.update(ctx, paymentID, func(ctx context.Context, p *Payment) error {
		return s.pay(ctx, p, opts)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "payment paid",
		"payment_id", p.ID, "identifier", p.Identifier, "method", p.Method, "value", p.Value)
	return p, nil
}

func (s *Service) pay(ctx context.Context, p *Payment, opts PayOptions) error {
	policy := s.registry.Lookup(p.Method)
	if !policy.CanPay {
		return apperror.NewInvalidTransition("payment method", string(policy.Name), "pay")
	}
	method, err := s.method(ctx, policy)
	if err != nil {
		return err
	}

	paidDate := s.clock.Now()
	if opts.PaidDate != nil {
		paidDate = *opts.PaidDate
	}
	if opts.ApplyLateFees && p.IsOverdue(paidDate) {
		penalty, interest := p.LateFees(method, paidDate)
		if err := p.Adjust(p.Discount, p.Interest.Add(interest), p.Penalty.Add(penalty)); err != nil {
			return err
		}
	}
	if err := p.Pay(paidDate, opts.PaidValue); err != nil {
		return err
	}
	if err := s.save(ctx, p); err != nil {
		return err
	}

	if s.transactions != nil && (policy.EmitsTransaction || p.Separate) {
		if err := s.transactions.EmitForPayment(ctx, p, method); err != nil {
			return fmt.Errorf("emit account transaction: %w", err)
		}
	}
	if err := s.hooks.Run(ctx, domain.AfterPay, p); err != nil {
		return err
	}
	return s.events.Publish(ctx, events.Event{
		Topic:         events.TopicPaymentPaid,
		AggregateType: "payment",
		AggregateID:   p.ID,
		OccurredAt:    paidDate,
		Payload: events.PaymentPaid{
			PaymentID: p.ID,
			GroupID:   p.GroupID,
			Method:    string(p.Method),
			Direction: string(p.Direction),
			Value:     p.Value,
		},
	})
}

// Cancel cancels an unpaid payment.
func (s *Service) Cancel(ctx context.Context, paymentID id.ID) (*Payment, error) {
	p, err := s.update(ctx, paymentID, s.cancel)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "payment cancelled", "payment_id", p.ID, "identifier", p.Identifier)
	return p, nil
}

func (s *Service) cancel(ctx context.Context, p *Payment) error {
	policy := s.registry.Lookup(p.Method)
	if !policy.CanCancel {
		return apperror.NewInvalidTransition("payment method", string(policy.Name), "cancel")
	}
	now := s.clock.Now()
	if err := p.Cancel(now); err != nil {
		return err
	}
	if err := s.save(ctx, p); err != nil {
		return err
	}
	if err := s.hooks.Run(ctx, domain.AfterCancel, p); err != nil {
		return err
	}
	return s.events.Publish(ctx, events.Event{
		Topic:         events.TopicPaymentCancelled,
		AggregateType: "payment",
		AggregateID:   p.ID,
		OccurredAt:    now,
		Payload:       events.PaymentCancelled{PaymentID: p.ID, GroupID: p.GroupID},
	})
}

// ChangeDueDate reschedules a pending payment when its method allows it.
func (s *Service) ChangeDueDate(ctx context.Context, paymentID id.ID, due time.Time) (*Payment, error) {
	return s.update(ctx, paymentID, func(ctx context.Context, p *Payment) error {
		policy := s.registry.Lookup(p.Method)
		if !policy.CanChangeDueDate {
			return apperror.NewInvalidTransition("payment method", string(policy.Name), "change_due_date")
		}
		if err := p.ChangeDueDate(due); err != nil {
			return err
		}
		return s.save(ctx, p)
	})
}

// SetNotPaid reverts a paid payment to pending and removes its account transaction.
func (s *Service) SetNotPaid(ctx context.Context, paymentID id.ID) (*Payment, error) {
	p, err := s.update(ctx, paymentID, func(ctx context.Context, p *Payment) error {
		policy := s.registry.Lookup(p.Method)
		if !policy.CanSetNotPaid {
			return apperror.NewInvalidTransition("payment method", string(policy.Name), "set_not_paid")
		}
		if err := p.SetNotPaid(); err != nil {
			return err
		}
		if err := s.save(ctx, p); err != nil {
			return err
		}
		if s.transactions != nil {
			if err := s.transactions.RevertForPayment(ctx, p); err != nil {
				return fmt.Errorf("revert account transaction: %w", err)
			}
		}
		return s.hooks.Run(ctx, domain.AfterUnpay, p)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "payment set as not paid", "payment_id", p.ID)
	return p, nil
}

// Adjust sets discount, interest and penalty of an unpaid payment.
func (s *Service) Adjust(ctx context.Context, paymentID id.ID, discount, interest, penalty types.Money) (*Payment, error) {
	return s.update(ctx, paymentID, func(ctx context.Context, p *Payment) error {
		if err := p.Adjust(discount, interest, penalty); err != nil {
			return err
		}
		return s.save(ctx, p)
	})
}

// Delete removes a PREVIEW payment and its auxiliary records.
func (s *Service) Delete(ctx context.Context, paymentID id.ID) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.store.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		return s.delete(ctx, p)
	})
}

func (s *Service) delete(ctx context.Context, p *Payment) error {
	if !p.IsPreview() {
		return p.transitionError("delete")
	}
	if err := s.hooks.Run(ctx, domain.BeforeDelete, p); err != nil {
		return err
	}
	if err := s.deleteAuxiliary(ctx, s.registry.Lookup(p.Method), p); err != nil {
		return err
	}
	if err := s.store.DeletePayment(ctx, p.ID); err != nil {
		return fmt.Errorf("delete payment %s: %w", p.ID, err)
	}
	return nil
}

// SetCardDetails stores the card details of a card payment.
func (s *Service) SetCardDetails(ctx context.Context, paymentID id.ID, details CardDetails) (*CardData, error) {
	var data *CardData
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.store.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if s.registry.Lookup(p.Method).Auxiliary != AuxiliaryCard {
			return apperror.NewValidation("payment is not a card payment").WithDetail("method", string(p.Method))
		}
		data, err = s.store.GetCardData(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := data.Apply(details, p.Value); err != nil {
			return err
		}
		return s.store.SaveCardData(ctx, data)
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SetBankAccount fills the bank account of a check payment.
func (s *Service) SetBankAccount(ctx context.Context, paymentID id.ID, bank, branch, account string) (*BankAccount, error) {
	var acc *BankAccount
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		_, current, err := s.store.GetCheckData(ctx, paymentID)
		if err != nil {
			return err
		}
		current.BankNumber, current.BranchCode, current.AccountNumber = bank, branch, account
		acc = current
		return s.store.UpdateBankAccount(ctx, current)
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// DriverConstant returns the fiscal printer constant of a payment.
func (s *Service) DriverConstant(ctx context.Context, p *Payment) (DriverConstant, error) {
	policy := s.registry.Lookup(p.Method)
	if policy.Auxiliary != AuxiliaryCard {
		return policy.Constant, nil
	}
	card, err := s.store.GetCardData(ctx, p.ID)
	if err != nil {
		return "", err
	}
	return policy.DriverConstantFor(card), nil
}

func describe(policy Policy, group *Group, i, n int) string {
	if d := group.Description(); d != "" {
		return fmt.Sprintf("%d/%d %s for %s", i, n, policy.Description, d)
	}
	return fmt.Sprintf("%d/%d %s", i, n, policy.Description)
}

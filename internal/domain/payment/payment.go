// Package payment implements the payment ledger: payments, the method
// policy registry, payment groups and the installment generator.
package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"stoq/internal/core/apperror"
	"stoq/internal/core/entity"
	"stoq/internal/core/id"
	"stoq/internal/core/types"
)

// Direction of a payment. Never changes after creation.
type Direction string

const (
	// In is a receivable.
	In Direction = "in"
	// Out is a payable.
	Out Direction = "out"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool { return d == In || d == Out }

// Status of a payment.
type Status string

const (
	StatusPreview   Status = "preview"
	StatusPending   Status = "pending"
	StatusReviewing Status = "reviewing"
	StatusConfirmed Status = "confirmed"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// Payment is one scheduled or realised cash movement.
type Payment struct {
	entity.BaseEntity

	Identifier int64      `db:"identifier" json:"identifier"`
	Direction  Direction  `db:"direction" json:"direction"`
	Method     MethodName `db:"method_name" json:"method"`
	GroupID    id.ID      `db:"group_id" json:"groupId"`
	BranchID   id.ID      `db:"branch_id" json:"branchId"`
	Status     Status     `db:"status" json:"status"`

	Value     types.Money `db:"value" json:"value"`
	BaseValue types.Money `db:"base_value" json:"baseValue"`
	Discount  types.Money `db:"discount" json:"discount"`
	Interest  types.Money `db:"interest" json:"interest"`
	Penalty   types.Money `db:"penalty" json:"penalty"`

	DueDate    time.Time  `db:"due_date" json:"dueDate"`
	OpenDate   time.Time  `db:"open_date" json:"openDate"`
	PaidDate   *time.Time `db:"paid_date" json:"paidDate,omitempty"`
	CancelDate *time.Time `db:"cancel_date" json:"cancelDate,omitempty"`

	Description string `db:"description" json:"description"`
	// Separate payments are created on their own, outside a sale or purchase.
	Separate bool `db:"separate" json:"separate"`
}

// Validate implements entity.Validatable.
func (p *Payment) Validate(ctx context.Context) error {
	if !p.Direction.Valid() {
		return apperror.NewValidation("invalid payment direction").WithDetail("field", "direction")
	}
	if id.IsNil(p.GroupID) {
		return apperror.NewValidation("payment group is required").WithDetail("field", "groupId")
	}
	if p.Value.IsNegative() {
		return apperror.NewInvalidValue("value", "payment value must not be negative")
	}
	if p.BaseValue.IsNegative() {
		return apperror.NewInvalidValue("baseValue", "payment base value must not be negative")
	}
	if p.DueDate.IsZero() {
		return apperror.NewValidation("due date is required").WithDetail("field", "dueDate")
	}
	return nil
}

func (p *Payment) IsInpayment() bool  { return p.Direction == In }
func (p *Payment) IsOutpayment() bool { return p.Direction == Out }
func (p *Payment) IsPreview() bool    { return p.Status == StatusPreview }
func (p *Payment) IsPaid() bool       { return p.Status == StatusPaid }
func (p *Payment) IsCancelled() bool  { return p.Status == StatusCancelled }

// IsValid is false only for cancelled payments.
func (p *Payment) IsValid() bool { return p.Status != StatusCancelled }

// IsPending covers PENDING and its card-capture sub-states.
func (p *Payment) IsPending() bool {
	switch p.Status {
	case StatusPending, StatusReviewing, StatusConfirmed:
		return true
	}
	return false
}

// IsOverdue reports whether the payment is still open after its due date.
func (p *Payment) IsOverdue(today time.Time) bool {
	return p.IsPending() && types.DaysBetween(p.DueDate, today) > 0
}

// Due is the amount settling the payment: base − discount + interest + penalty.
func (p *Payment) Due() types.Money {
	return p.BaseValue.Sub(p.Discount).Add(p.Interest).Add(p.Penalty)
}

func (p *Payment) transitionError(op string) error {
	return apperror.NewInvalidTransition("payment", string(p.Status), op).
		WithDetail("payment_id", p.ID.String())
}

// SetPending moves PREVIEW (or REVIEWING) to PENDING. Idempotent on PENDING.
func (p *Payment) SetPending() error {
	switch p.Status {
	case StatusPending:
		return nil
	case StatusPreview, StatusReviewing:
		p.Status = StatusPending
		return nil
	}
	return p.transitionError("set_pending")
}

// SetReviewing marks a pending card capture as under review.
func (p *Payment) SetReviewing() error {
	if p.Status != StatusPending {
		return p.transitionError("set_reviewing")
	}
	p.Status = StatusReviewing
	return nil
}

// ConfirmCapture marks a reviewed card capture as confirmed by the provider.
func (p *Payment) ConfirmCapture() error {
	if p.Status != StatusReviewing {
		return p.transitionError("confirm")
	}
	p.Status = StatusConfirmed
	return nil
}

// Adjust sets the pay-time adjustments of an unpaid payment.
func (p *Payment) Adjust(discount, interest, penalty types.Money) error {
	if p.IsPaid() || p.IsCancelled() {
		return p.transitionError("adjust")
	}
	for _, f := range []struct {
		name  string
		value types.Money
	}{{"discount", discount}, {"interest", interest}, {"penalty", penalty}} {
		if f.value.IsNegative() {
			return apperror.NewInvalidValue(f.name, f.name+" must not be negative")
		}
	}
	p.Discount, p.Interest, p.Penalty = discount, interest, penalty
	if p.Due().IsNegative() {
		return apperror.NewInvalidValue("discount", "discount exceeds payment value")
	}
	return nil
}

// Pay settles the payment. When paidValue differs from Due the difference is
// booked as extra interest (overpaid) or discount (underpaid), so that a paid
// payment always satisfies value = base − discount + interest + penalty.
func (p *Payment) Pay(paidDate time.Time, paidValue *types.Money) error {
	if !p.IsPending() {
		return p.transitionError("pay")
	}
	discount, interest := p.Discount, p.Interest
	if paidValue != nil {
		if paidValue.IsNegative() {
			return apperror.NewInvalidValue("paidValue", "paid value must not be negative")
		}
		diff := paidValue.Sub(p.Due())
		if diff.IsPositive() {
			interest = interest.Add(diff)
		} else {
			discount = discount.Add(diff.Neg())
		}
	}
	due := p.BaseValue.Sub(discount).Add(interest).Add(p.Penalty)
	if due.IsNegative() {
		return apperror.NewInvalidValue("discount", "discount exceeds payment value")
	}
	p.Discount, p.Interest = discount, interest
	p.Value = due
	p.PaidDate = &paidDate
	p.Status = StatusPaid
	return nil
}

// SetNotPaid reverts a PAID payment to PENDING, dropping its adjustments.
func (p *Payment) SetNotPaid() error {
	if p.Status != StatusPaid {
		return p.transitionError("set_not_paid")
	}
	p.Status = StatusPending
	p.PaidDate = nil
	p.Value = p.BaseValue
	p.Discount, p.Interest, p.Penalty = types.Zero(), types.Zero(), types.Zero()
	return nil
}

// Cancel moves an unpaid payment to CANCELLED, which is terminal.
func (p *Payment) Cancel(at time.Time) error {
	if p.Status != StatusPreview && !p.IsPending() {
		return p.transitionError("cancel")
	}
	p.Status = StatusCancelled
	p.CancelDate = &at
	return nil
}

// ChangeDueDate reschedules a PENDING payment.
func (p *Payment) ChangeDueDate(due time.Time) error {
	if p.Status != StatusPending {
		return p.transitionError("change_due_date")
	}
	if due.IsZero() {
		return apperror.NewValidation("due date is required").WithDetail("field", "dueDate")
	}
	if types.DaysBetween(p.OpenDate, due) < 0 {
		return apperror.NewInvalidValue("dueDate", "due date cannot be before the open date")
	}
	p.DueDate = due
	return nil
}

// LateFees computes the penalty (daily_penalty% of base per day late) and the
// interest (interest% of base) owed when paying on today.
func (p *Payment) LateFees(m *Method, today time.Time) (penalty, interest types.Money) {
	days := types.DaysBetween(p.DueDate, today)
	if days <= 0 || m == nil {
		return types.Zero(), types.Zero()
	}
	penalty = types.RoundMoney(types.Percent(p.BaseValue, m.DailyPenalty).Mul(decimal.NewFromInt(int64(days))))
	interest = types.RoundMoney(types.Percent(p.BaseValue, m.Interest))
	return penalty, interest
}

// ByDueDate orders payments by (due_date, identifier).
func ByDueDate(a, b *Payment) int {
	if c := a.DueDate.Compare(b.DueDate); c != 0 {
		return c
	}
	switch {
	case a.Identifier < b.Identifier:
		return -1
	case a.Identifier > b.Identifier:
		return 1
	}
	return 0
}

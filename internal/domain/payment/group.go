package payment

import (
	"fmt"
	"slices"

	"stoq/internal/core/apperror"
	"stoq/internal/core/entity"
	"stoq/internal/core/id"
	"stoq/internal/core/types"
)

// ParentKind names the commercial operation owning a group.
type ParentKind string

const (
	ParentNone          ParentKind = ""
	ParentSale          ParentKind = "sale"
	ParentPurchase      ParentKind = "purchase"
	ParentRenegotiation ParentKind = "renegotiation"
	ParentStockDecrease ParentKind = "stock_decrease"
)

// Group aggregates the payments of one commercial operation.
// At most one parent is set; a group without parent is "lonely".
type Group struct {
	entity.BaseEntity

	PayerID     *id.ID `db:"payer_id" json:"payerId,omitempty"`
	RecipientID *id.ID `db:"recipient_id" json:"recipientId,omitempty"`

	ParentKind       ParentKind `db:"parent_kind" json:"parentKind"`
	ParentID         *id.ID     `db:"parent_id" json:"parentId,omitempty"`
	ParentIdentifier int64      `db:"parent_identifier" json:"parentIdentifier"`

	// RenegotiationID is set once the group was replaced by a renegotiation.
	RenegotiationID *id.ID `db:"renegotiation_id" json:"renegotiationId,omitempty"`
}

// NewGroup creates a lonely group.
func NewGroup(payer, recipient *id.ID) *Group {
	return &Group{
		BaseEntity:  entity.NewBaseEntity(),
		PayerID:     payer,
		RecipientID: recipient,
	}
}

// SetParent attaches the group to its operation. A group never changes parent.
func (g *Group) SetParent(kind ParentKind, parentID id.ID, identifier int64) error {
	if kind == ParentNone {
		return apperror.NewValidation("parent kind is required")
	}
	if g.ParentKind != ParentNone && (g.ParentKind != kind || g.ParentID == nil || *g.ParentID != parentID) {
		return apperror.NewInvalidTransition("payment group", string(g.ParentKind), "set_parent")
	}
	g.ParentKind = kind
	g.ParentID = &parentID
	g.ParentIdentifier = identifier
	return nil
}

// IsLonely reports whether no operation owns the group.
func (g *Group) IsLonely() bool { return g.ParentKind == ParentNone }

// IsPurchaseSide reports whether OUT payments are the group's receivable.
func (g *Group) IsPurchaseSide() bool { return g.ParentKind == ParentPurchase }

// Description is a concise human description keyed by the parent.
func (g *Group) Description() string {
	switch g.ParentKind {
	case ParentSale:
		return fmt.Sprintf("sale %d", g.ParentIdentifier)
	case ParentPurchase:
		return fmt.Sprintf("order %d", g.ParentIdentifier)
	case ParentRenegotiation:
		return fmt.Sprintf("renegotiation %d", g.ParentIdentifier)
	case ParentStockDecrease:
		return fmt.Sprintf("stock decrease %d", g.ParentIdentifier)
	}
	return ""
}

// Ledger is a group with its payments loaded, ordered by (due_date, identifier).
// All totals are signed: IN minus OUT for sale-side groups, the reverse for
// purchase-side groups.
type Ledger struct {
	Group    *Group
	Payments []*Payment
}

// NewLedger sorts payments and wraps them with g.
func NewLedger(g *Group, payments []*Payment) *Ledger {
	sorted := slices.Clone(payments)
	slices.SortStableFunc(sorted, ByDueDate)
	return &Ledger{Group: g, Payments: sorted}
}

func (l *Ledger) sign(p *Payment) types.Money {
	positive := p.IsInpayment()
	if l.Group.IsPurchaseSide() {
		positive = !positive
	}
	if positive {
		return p.Value
	}
	return p.Value.Neg()
}

func (l *Ledger) sum(keep func(*Payment) bool, value func(*Payment) types.Money) types.Money {
	total := types.Zero()
	for _, p := range l.Payments {
		if keep(p) {
			total = total.Add(value(p))
		}
	}
	return total
}

// Valid returns the non-cancelled payments.
func (l *Ledger) Valid() []*Payment {
	return l.filter((*Payment).IsValid)
}

// Pending returns payments waiting to be paid.
func (l *Ledger) Pending() []*Payment {
	return l.filter((*Payment).IsPending)
}

func (l *Ledger) filter(keep func(*Payment) bool) []*Payment {
	var out []*Payment
	for _, p := range l.Payments {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// TotalValue sums the valid payments.
func (l *Ledger) TotalValue() types.Money {
	return l.sum((*Payment).IsValid, l.sign)
}

// TotalPaid sums the paid payments.
func (l *Ledger) TotalPaid() types.Money {
	return l.sum((*Payment).IsPaid, l.sign)
}

// TotalConfirmed sums payments past PREVIEW that were not cancelled.
func (l *Ledger) TotalConfirmed() types.Money {
	return l.sum(func(p *Payment) bool { return p.IsPending() || p.IsPaid() }, l.sign)
}

// TotalDiscount sums discounts of valid payments.
func (l *Ledger) TotalDiscount() types.Money {
	return l.sum((*Payment).IsValid, func(p *Payment) types.Money { return p.Discount })
}

// TotalInterest sums interest of valid payments.
func (l *Ledger) TotalInterest() types.Money {
	return l.sum((*Payment).IsValid, func(p *Payment) types.Money { return p.Interest })
}

// TotalPenalty sums penalties of valid payments.
func (l *Ledger) TotalPenalty() types.Money {
	return l.sum((*Payment).IsValid, func(p *Payment) types.Money { return p.Penalty })
}

// InstallmentsNumber counts valid IN payments.
func (l *Ledger) InstallmentsNumber() int {
	return len(l.filter(func(p *Payment) bool { return p.IsValid() && p.IsInpayment() }))
}

// CountByMethod counts valid payments of method in direction d.
func (l *Ledger) CountByMethod(method MethodName, d Direction) int {
	return len(l.filter(func(p *Payment) bool {
		return p.IsValid() && p.Method == method && p.Direction == d
	}))
}

// IsFullyPaid reports whether every valid payment is paid and at least one exists.
func (l *Ledger) IsFullyPaid() bool {
	valid := l.Valid()
	if len(valid) == 0 {
		return false
	}
	for _, p := range valid {
		if !p.IsPaid() {
			return false
		}
	}
	return true
}

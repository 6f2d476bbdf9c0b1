package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"stoq/internal/core/apperror"
	"stoq/internal/core/entity"
	"stoq/internal/core/id"
)

// MethodName identifies a payment method. The set is closed.
type MethodName string

const (
	MethodMoney       MethodName = "money"
	MethodCheck       MethodName = "check"
	MethodBill        MethodName = "bill"
	MethodCard        MethodName = "card"
	MethodStoreCredit MethodName = "store_credit"
	MethodCredit      MethodName = "credit"
	MethodTrade       MethodName = "trade"
	MethodDeposit     MethodName = "deposit"
	MethodOnline      MethodName = "online"
	MethodMultiple    MethodName = "multiple"
	MethodInvalid     MethodName = "invalid"
)

// DriverConstant is the payment type reported to fiscal printer drivers.
type DriverConstant string

const (
	ConstantMoney      DriverConstant = "MONEY"
	ConstantCheck      DriverConstant = "CHECK"
	ConstantBill       DriverConstant = "BILL"
	ConstantCreditCard DriverConstant = "CREDIT_CARD"
	ConstantDebitCard  DriverConstant = "DEBIT_CARD"
	ConstantCustom     DriverConstant = "CUSTOM"
)

// Auxiliary names the extra record a method keeps next to each payment.
type Auxiliary int

const (
	AuxiliaryNone Auxiliary = iota
	AuxiliaryCheck
	AuxiliaryCard
)

// Policy is the fixed behavior of a payment method.
type Policy struct {
	Name            MethodName
	Description     string
	MaxInstallments int

	PayOnConfirm     bool
	EmitsTransaction bool
	Selectable       bool

	CreatableIn       bool
	CreatableOut      bool
	CreatableSeparate bool

	CanCancel        bool
	CanChangeDueDate bool
	CanPay           bool
	CanPrint         bool
	CanSetNotPaid    bool

	PayerRequiredIn  bool
	PayerRequiredOut bool

	Constant  DriverConstant
	Auxiliary Auxiliary
}

// Creatable reports whether users may create payments of this method.
// Separate payments also need CreatableSeparate.
func (p Policy) Creatable(d Direction, separate bool) bool {
	if separate && !p.CreatableSeparate {
		return false
	}
	if d == In {
		return p.CreatableIn
	}
	return p.CreatableOut
}

// RequiresPayer reports whether the group must name a payer.
func (p Policy) RequiresPayer(d Direction) bool {
	if d == In {
		return p.PayerRequiredIn
	}
	return p.PayerRequiredOut
}

// CreateAuxiliaryOnCreate reports whether creating a payment writes an auxiliary record.
func (p Policy) CreateAuxiliaryOnCreate() bool { return p.Auxiliary != AuxiliaryNone }

// DeleteAuxiliary reports whether deleting a payment removes its auxiliary record.
func (p Policy) DeleteAuxiliary() bool { return p.Auxiliary != AuxiliaryNone }

// DriverConstantFor returns the printer constant; cards depend on their type.
func (p Policy) DriverConstantFor(card *CardData) DriverConstant {
	if p.Auxiliary == AuxiliaryCard && card != nil {
		switch card.CardType {
		case CardDebit, CardDebitPreDated:
			return ConstantDebitCard
		}
		return ConstantCreditCard
	}
	return p.Constant
}

// Method is the persistent anchor of a policy: the tunable, per-installation
// part of a payment method.
type Method struct {
	entity.BaseEntity

	Name                 MethodName      `db:"name" json:"name"`
	Description          string          `db:"description" json:"description"`
	IsActive             bool            `db:"is_active" json:"isActive"`
	MaxInstallments      int             `db:"max_installments" json:"maxInstallments"`
	DailyPenalty         decimal.Decimal `db:"daily_penalty" json:"dailyPenalty"`
	Interest             decimal.Decimal `db:"interest" json:"interest"`
	DestinationAccountID *id.ID          `db:"destination_account_id" json:"destinationAccountId,omitempty"`
}

var hundred = decimal.NewFromInt(100)

// Validate implements entity.Validatable.
func (m *Method) Validate(ctx context.Context) error {
	if m.MaxInstallments < 1 {
		return apperror.NewInvalidValue("maxInstallments", "max installments must be at least 1")
	}
	for _, r := range []struct {
		field string
		value decimal.Decimal
	}{{"dailyPenalty", m.DailyPenalty}, {"interest", m.Interest}} {
		if r.value.IsNegative() || r.value.GreaterThan(hundred) {
			return apperror.NewInvalidValue(r.field, r.field+" must be a percentage between 0 and 100")
		}
	}
	return nil
}

// NewMethodFromPolicy builds the default persistent record of a policy.
func NewMethodFromPolicy(p Policy) *Method {
	return &Method{
		BaseEntity:      entity.NewBaseEntity(),
		Name:            p.Name,
		Description:     p.Description,
		IsActive:        p.Name != MethodInvalid,
		MaxInstallments: p.MaxInstallments,
		DailyPenalty:    decimal.Zero,
		Interest:        decimal.Zero,
	}
}

package payment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoq/internal/core/apperror"
	"stoq/internal/core/entity"
	"stoq/internal/core/id"
	"stoq/internal/core/types"
)

var day = time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)

func newPayment(value string, status Status) *Payment {
	v := types.MustMoney(value)
	return &Payment{
		BaseEntity: entity.NewBaseEntity(),
		Direction:  In,
		Method:     MethodMoney,
		GroupID:    id.New(),
		Status:     status,
		Value:      v,
		BaseValue:  v,
		Discount:   types.Zero(),
		Interest:   types.Zero(),
		Penalty:    types.Zero(),
		DueDate:    day,
		OpenDate:   day,
	}
}

func TestPayment_Transitions(t *testing.T) {
	tests := []struct {
		name   string
		from   Status
		op     func(p *Payment) error
		to     Status
		denied bool
	}{
		{"preview to pending", StatusPreview, (*Payment).SetPending, StatusPending, false},
		{"pending is idempotent", StatusPending, (*Payment).SetPending, StatusPending, false},
		{"paid cannot become pending", StatusPaid, (*Payment).SetPending, StatusPaid, true},
		{"pending to reviewing", StatusPending, (*Payment).SetReviewing, StatusReviewing, false},
		{"reviewing to confirmed", StatusReviewing, (*Payment).ConfirmCapture, StatusConfirmed, false},
		{"preview cannot be paid", StatusPreview, func(p *Payment) error { return p.Pay(day, nil) }, StatusPreview, true},
		{"confirmed can be paid", StatusConfirmed, func(p *Payment) error { return p.Pay(day, nil) }, StatusPaid, false},
		{"preview can be cancelled", StatusPreview, func(p *Payment) error { return p.Cancel(day) }, StatusCancelled, false},
		{"reviewing can be cancelled", StatusReviewing, func(p *Payment) error { return p.Cancel(day) }, StatusCancelled, false},
		{"paid cannot be cancelled", StatusPaid, func(p *Payment) error { return p.Cancel(day) }, StatusPaid, true},
		{"cancelled is terminal", StatusCancelled, (*Payment).SetPending, StatusCancelled, true},
		{"pending cannot be set not paid", StatusPending, (*Payment).SetNotPaid, StatusPending, true},
		{"paid can be set not paid", StatusPaid, (*Payment).SetNotPaid, StatusPending, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPayment("100", tt.from)
			err := tt.op(p)
			if tt.denied {
				require.Error(t, err)
				assert.True(t, apperror.IsInvalidTransition(err))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.to, p.Status)
		})
	}
}

func TestPayment_PayWithDifferentValue(t *testing.T) {
	over := newPayment("100", StatusPending)
	paid := types.MustMoney("105")
	require.NoError(t, over.Pay(day, &paid))
	assert.True(t, over.Interest.Equal(types.MustMoney("5")))
	assert.True(t, over.Value.Equal(paid))

	under := newPayment("100", StatusPending)
	paid = types.MustMoney("90")
	require.NoError(t, under.Pay(day, &paid))
	assert.True(t, under.Discount.Equal(types.MustMoney("10")))
	assert.True(t, under.Value.Equal(under.Due()))
}

func TestPayment_PayRejectsNegativeValueWithoutSideEffects(t *testing.T) {
	p := newPayment("100", StatusPending)
	negative := types.MustMoney("-1")
	err := p.Pay(day, &negative)
	assert.True(t, apperror.IsInvalidValue(err))
	assert.Equal(t, StatusPending, p.Status)
	assert.Nil(t, p.PaidDate)
}

func TestPayment_SetNotPaidDropsAdjustments(t *testing.T) {
	p := newPayment("100", StatusPending)
	require.NoError(t, p.Adjust(types.MustMoney("5"), types.MustMoney("2"), types.MustMoney("1")))
	require.NoError(t, p.Pay(day, nil))
	assert.True(t, p.Value.Equal(types.MustMoney("98")))

	require.NoError(t, p.SetNotPaid())
	assert.Equal(t, StatusPending, p.Status)
	assert.True(t, p.Value.Equal(p.BaseValue))
	assert.True(t, p.Discount.IsZero())
	assert.Nil(t, p.PaidDate)
}

func TestPayment_AdjustRejectsExcessDiscount(t *testing.T) {
	p := newPayment("10", StatusPending)
	err := p.Adjust(types.MustMoney("11"), types.Zero(), types.Zero())
	assert.True(t, apperror.IsInvalidValue(err))
}

func TestPayment_AdjustNamesFirstNegativeField(t *testing.T) {
	neg := types.MustMoney("-1")
	for range 20 {
		p := newPayment("10", StatusPending)
		appErr, ok := apperror.AsAppError(p.Adjust(types.Zero(), neg, neg))
		require.True(t, ok)
		assert.Equal(t, "interest", appErr.Details["field"])
	}
}

func TestPayment_ChangeDueDate(t *testing.T) {
	p := newPayment("10", StatusPending)
	require.NoError(t, p.ChangeDueDate(day.AddDate(0, 0, 10)))

	err := p.ChangeDueDate(day.AddDate(0, 0, -1))
	assert.True(t, apperror.IsInvalidValue(err))

	p.Status = StatusReviewing
	assert.True(t, apperror.IsInvalidTransition(p.ChangeDueDate(day)))
}

func TestPayment_LateFees(t *testing.T) {
	p := newPayment("200", StatusPending)
	m := &Method{DailyPenalty: decimal.NewFromFloat(0.5), Interest: decimal.NewFromInt(2)}

	penalty, interest := p.LateFees(m, day)
	assert.True(t, penalty.IsZero())
	assert.True(t, interest.IsZero())

	penalty, interest = p.LateFees(m, day.AddDate(0, 0, 3))
	assert.True(t, penalty.Equal(types.MustMoney("3")), penalty.String())
	assert.True(t, interest.Equal(types.MustMoney("4")), interest.String())
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		total    string
		n        int
		rate     int64
		values   []string
		interest string
	}{
		{"even split", "300", 3, 0, []string{"100", "100", "100"}, "0"},
		{"last absorbs residue", "100", 3, 0, []string{"33.33", "33.33", "33.34"}, "0"},
		{"with interest", "300", 3, 10, []string{"110", "110", "110"}, "30"},
		{"single", "59.90", 1, 0, []string{"59.90"}, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, interest := Split(types.MustMoney(tt.total), tt.n, decimal.NewFromInt(tt.rate))
			require.Len(t, values, tt.n)
			for i, want := range tt.values {
				assert.True(t, values[i].Equal(types.MustMoney(want)), "installment %d: %s", i, values[i])
			}
			assert.True(t, interest.Equal(types.MustMoney(tt.interest)))
			assert.True(t, types.Sum(values...).Sub(interest).Equal(types.MustMoney(tt.total)))
		})
	}
}

func TestLedgerTotals(t *testing.T) {
	g := NewGroup(nil, nil)
	paid := newPayment("60", StatusPaid)
	pending := newPayment("40", StatusPending)
	cancelled := newPayment("999", StatusCancelled)
	refund := newPayment("10", StatusPending)
	refund.Direction = Out
	for _, p := range []*Payment{paid, pending, cancelled, refund} {
		p.GroupID = g.ID
	}

	l := NewLedger(g, []*Payment{cancelled, refund, pending, paid})
	assert.True(t, l.TotalValue().Equal(types.MustMoney("90")))
	assert.True(t, l.TotalPaid().Equal(types.MustMoney("60")))
	assert.Equal(t, 2, l.InstallmentsNumber())
	assert.Equal(t, 2, l.CountByMethod(MethodMoney, In))
	assert.False(t, l.IsFullyPaid())

	g.ParentKind = ParentPurchase
	assert.True(t, l.TotalValue().Equal(types.MustMoney("-90")))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	p, err := r.Resolve(MethodCheck)
	require.NoError(t, err)
	assert.Equal(t, 12, p.MaxInstallments)
	assert.Equal(t, AuxiliaryCheck, p.Auxiliary)

	p, err = r.Resolve("barter")
	assert.True(t, apperror.IsUnknownMethod(err))
	assert.Equal(t, MethodInvalid, p.Name)
	assert.False(t, p.CanPay)
	assert.True(t, p.CanCancel)

	assert.Equal(t, MethodInvalid, r.Lookup("barter").Name)
	assert.False(t, r.Known(MethodInvalid))

	for _, sel := range r.Selectable(Out, false) {
		assert.True(t, sel.CreatableOut, sel.Name)
	}
	card := r.Lookup(MethodCard)
	assert.Equal(t, ConstantDebitCard, card.DriverConstantFor(&CardData{CardType: CardDebit}))
	assert.Equal(t, ConstantCreditCard, card.DriverConstantFor(&CardData{CardType: CardInstallmentsStore}))
}

func TestRegistry_BuiltInPolicies(t *testing.T) {
	tests := []struct {
		name                                  MethodName
		max                                   int
		payOnConfirm                          bool
		creatableIn, creatableOut, separateIn bool
		payerIn, payerOut                     bool
	}{
		{MethodMoney, 1, true, true, true, true, false, false},
		{MethodCheck, 12, false, true, true, true, false, false},
		{MethodBill, 12, false, true, true, true, true, false},
		{MethodCard, 12, false, true, false, true, false, false},
		{MethodStoreCredit, 1, false, true, false, true, true, false},
		{MethodCredit, 1, true, true, false, true, true, true},
		{MethodTrade, 1, false, false, false, false, false, false},
		{MethodDeposit, 12, false, true, true, true, false, false},
		{MethodOnline, 1, false, false, false, false, true, true},
		{MethodMultiple, 12, false, true, false, false, false, false},
		{MethodInvalid, 1, false, false, false, false, false, false},
	}

	r := NewRegistry()
	require.Len(t, r.Policies(), len(tests))
	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			p := r.Lookup(tt.name)
			assert.Equal(t, tt.name, p.Name)
			assert.Equal(t, tt.max, p.MaxInstallments)
			assert.Equal(t, tt.payOnConfirm, p.PayOnConfirm)
			assert.Equal(t, tt.creatableIn, p.Creatable(In, false))
			assert.Equal(t, tt.creatableOut, p.Creatable(Out, false))
			assert.Equal(t, tt.separateIn, p.Creatable(In, true))
			assert.Equal(t, tt.payerIn, p.RequiresPayer(In))
			assert.Equal(t, tt.payerOut, p.RequiresPayer(Out))
		})
	}
}

func TestGroupSetParent(t *testing.T) {
	g := NewGroup(nil, nil)
	saleID := id.New()
	require.NoError(t, g.SetParent(ParentSale, saleID, 7))
	assert.Equal(t, "sale 7", g.Description())
	require.NoError(t, g.SetParent(ParentSale, saleID, 7))
	assert.True(t, apperror.IsInvalidTransition(g.SetParent(ParentRenegotiation, id.New(), 1)))
}

package payment_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoq/internal/app/apptest"
	"stoq/internal/core/apperror"
	"stoq/internal/core/id"
	"stoq/internal/core/types"
	"stoq/internal/domain"
	"stoq/internal/domain/events"
	"stoq/internal/domain/payment"
)

func lonelyGroup(t *testing.T, f *apptest.Fixture, payer *id.ID) *payment.Group {
	t.Helper()
	g, err := f.Payments.CreateGroup(f.Ctx, payer, &f.Branch.ID)
	require.NoError(t, err)
	return g
}

func TestSingleMoneyPayment(t *testing.T) {
	f := apptest.New(t)
	sl := f.Sale(apptest.Line{Sellable: f.Product("100.00", 5), Qty: 1})
	p := f.Pay(sl, payment.MethodMoney, "100.00")
	assert.Equal(t, payment.StatusPreview, p.Status)

	require.NoError(t, f.Payments.ConfirmGroup(f.Ctx, sl.GroupID))
	p, err := f.Payments.Get(f.Ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, p.Status)

	p, err = f.Payments.Pay(f.Ctx, p.ID, payment.PayOptions{})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, p.Status)
	assert.True(t, p.Value.Equal(types.MustMoney("100.00")))

	ledger := f.LedgerOf(sl.GroupID)
	assert.True(t, ledger.TotalPaid().Equal(types.MustMoney("100.00")))
	assert.True(t, ledger.TotalPaid().LessThanOrEqual(ledger.TotalValue()))
	assert.Contains(t, f.Topics(), events.TopicPaymentPaid)

	txs, err := f.Ledger.OfPayment(f.Ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, f.Imbalance, *txs[0].SourceAccountID)
}

func TestCheckInstallments(t *testing.T) {
	tests := []struct {
		name     string
		total    string
		rate     int64
		values   []string
		interest string
	}{
		{"three of three hundred", "300.00", 0, []string{"100.00", "100.00", "100.00"}, "0"},
		{"rounding goes to the last", "100.00", 0, []string{"33.33", "33.33", "33.34"}, "0"},
		{"ten percent interest", "300.00", 10, []string{"110.00", "110.00", "110.00"}, "30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := apptest.New(t)
			g := lonelyGroup(t, f, &f.Client.ID)
			d := f.Clock.Today()

			out, err := f.Payments.GenerateInstallments(f.Ctx, payment.InstallmentsParams{
				GroupID:      g.ID,
				Method:       payment.MethodCheck,
				Direction:    payment.In,
				Total:        types.MustMoney(tt.total),
				DueDates:     []time.Time{d, d.AddDate(0, 0, 30), d.AddDate(0, 0, 60)},
				InterestRate: decimal.NewFromInt(tt.rate),
			})
			require.NoError(t, err)
			require.Len(t, out.Payments, 3)
			for i, want := range tt.values {
				assert.True(t, out.Payments[i].Value.Equal(types.MustMoney(want)), out.Payments[i].Value.String())
				assert.Equal(t, payment.StatusPreview, out.Payments[i].Status)
			}
			assert.True(t, out.InterestTotal.Equal(types.MustMoney(tt.interest)))

			ledger := f.LedgerOf(g.ID)
			assert.True(t, ledger.TotalValue().Sub(out.InterestTotal).Equal(types.MustMoney(tt.total)))

			// paying in any order settles the whole total
			require.NoError(t, f.Payments.ConfirmGroup(f.Ctx, g.ID))
			for _, i := range []int{2, 0, 1} {
				_, err := f.Payments.Pay(f.Ctx, out.Payments[i].ID, payment.PayOptions{})
				require.NoError(t, err)
			}
			ledger = f.LedgerOf(g.ID)
			assert.True(t, ledger.TotalPaid().Equal(ledger.TotalValue()))
			assert.True(t, ledger.IsFullyPaid())

			_, account, err := f.Store.GetCheckData(f.Ctx, out.Payments[0].ID)
			require.NoError(t, err)
			assert.NotEqual(t, id.Nil(), account.ID)
		})
	}
}

func TestGenerateInstallments_LimitExceeded(t *testing.T) {
	f := apptest.New(t)
	g := lonelyGroup(t, f, &f.Client.ID)
	d := f.Clock.Today()

	_, err := f.Payments.GenerateInstallments(f.Ctx, payment.InstallmentsParams{
		GroupID:   g.ID,
		Method:    payment.MethodMoney,
		Direction: payment.In,
		Total:     types.MustMoney("10"),
		DueDates:  []time.Time{d, d},
	})
	assert.True(t, apperror.IsLimitExceeded(err))
	assert.Empty(t, f.LedgerOf(g.ID).Payments)
}

func TestGenerateInstallments_OutIgnoresMethodLimit(t *testing.T) {
	f := apptest.New(t)
	g := lonelyGroup(t, f, &f.Client.ID)
	d := f.Clock.Today()

	inst, err := f.Payments.GenerateInstallments(f.Ctx, payment.InstallmentsParams{
		GroupID:   g.ID,
		Method:    payment.MethodMoney,
		Direction: payment.Out,
		Total:     types.MustMoney("10"),
		DueDates:  []time.Time{d, d.AddDate(0, 1, 0)},
	})
	require.NoError(t, err)
	require.Len(t, inst.Payments, 2)
	for _, p := range inst.Payments {
		assert.Equal(t, payment.Out, p.Direction)
		assert.True(t, p.Value.Equal(types.MustMoney("5")), p.Value.String())
	}
	assert.Len(t, f.LedgerOf(g.ID).Payments, 2)
}

func TestCreate_Rules(t *testing.T) {
	f := apptest.New(t)
	g := lonelyGroup(t, f, nil)

	_, err := f.Payments.Create(f.Ctx, payment.CreateParams{GroupID: g.ID, Method: "barter", Direction: payment.In, Value: types.NewMoney(1)})
	assert.True(t, apperror.IsUnknownMethod(err))

	_, err = f.Payments.Create(f.Ctx, payment.CreateParams{GroupID: g.ID, Method: payment.MethodTrade, Direction: payment.In, Value: types.NewMoney(1)})
	assert.True(t, apperror.IsInvalidTransition(err), "trade payments are system only")

	_, err = f.Payments.Create(f.Ctx, payment.CreateParams{GroupID: g.ID, Method: payment.MethodBill, Direction: payment.In, Value: types.NewMoney(1)})
	assert.True(t, apperror.IsValidation(err), "bill requires a payer")

	_, err = f.Payments.Create(f.Ctx, payment.CreateParams{GroupID: g.ID, Method: payment.MethodCard, Direction: payment.Out, Value: types.NewMoney(1)})
	assert.True(t, apperror.IsInvalidTransition(err), "card is IN only")

	p, err := f.Payments.Create(f.Ctx, payment.CreateParams{GroupID: g.ID, Direction: payment.In, Value: types.NewMoney(5)})
	require.NoError(t, err)
	assert.Equal(t, payment.MethodMoney, p.Method, "default method")
	assert.Equal(t, f.Clock.Today(), p.DueDate)

	_, err = f.Payments.Create(f.Ctx, payment.CreateParams{GroupID: g.ID, Method: payment.MethodMoney, Direction: payment.In, Value: types.NewMoney(5)})
	assert.True(t, apperror.IsLimitExceeded(err))

	out, err := f.Payments.Create(f.Ctx, payment.CreateParams{GroupID: g.ID, Method: payment.MethodMoney, Direction: payment.Out, Value: types.NewMoney(5)})
	require.NoError(t, err, "limits only apply to IN payments")
	assert.Equal(t, payment.Out, out.Direction)
}

func TestCreate_InactiveMethod(t *testing.T) {
	f := apptest.New(t)
	g := lonelyGroup(t, f, nil)
	inactive := false
	_, err := f.Payments.ConfigureMethod(f.Ctx, payment.MethodDeposit, payment.MethodSettings{IsActive: &inactive})
	require.NoError(t, err)

	_, err = f.Payments.Create(f.Ctx, payment.CreateParams{GroupID: g.ID, Method: payment.MethodDeposit, Direction: payment.In, Value: types.NewMoney(1)})
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestPay_AppliesLateFees(t *testing.T) {
	f := apptest.New(t)
	g := lonelyGroup(t, f, &f.Client.ID)
	penalty, interest := decimal.NewFromInt(1), decimal.NewFromInt(2)
	_, err := f.Payments.ConfigureMethod(f.Ctx, payment.MethodCheck, payment.MethodSettings{DailyPenalty: &penalty, Interest: &interest})
	require.NoError(t, err)

	p, err := f.Payments.Create(f.Ctx, payment.CreateParams{GroupID: g.ID, Method: payment.MethodCheck, Direction: payment.In, Value: types.MustMoney("100")})
	require.NoError(t, err)
	_, err = f.Payments.SetPending(f.Ctx, p.ID)
	require.NoError(t, err)

	f.Clock.Advance(5 * 24 * time.Hour)
	p, err = f.Payments.Pay(f.Ctx, p.ID, payment.PayOptions{ApplyLateFees: true})
	require.NoError(t, err)
	assert.True(t, p.Penalty.Equal(types.MustMoney("5")), p.Penalty.String())
	assert.True(t, p.Interest.Equal(types.MustMoney("2")), p.Interest.String())
	assert.True(t, p.Value.Equal(types.MustMoney("107")))
}

func TestSetNotPaid_RevertsTransaction(t *testing.T) {
	f := apptest.New(t)
	g := lonelyGroup(t, f, nil)
	p, err := f.Payments.Create(f.Ctx, payment.CreateParams{GroupID: g.ID, Method: payment.MethodMoney, Direction: payment.In, Value: types.MustMoney("20")})
	require.NoError(t, err)
	require.NoError(t, f.Payments.PayGroup(f.Ctx, g.ID))

	p, err = f.Payments.SetNotPaid(f.Ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, p.Status)

	txs, err := f.Ledger.OfPayment(f.Ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestSetNotPaid_DeniedByPolicy(t *testing.T) {
	f := apptest.New(t)
	g := lonelyGroup(t, f, nil)
	p, err := f.Payments.Create(f.Ctx, payment.CreateParams{GroupID: g.ID, Method: payment.MethodCard, Direction: payment.In, Value: types.MustMoney("20")})
	require.NoError(t, err)
	require.NoError(t, f.Payments.PayGroup(f.Ctx, g.ID))

	_, err = f.Payments.SetNotPaid(f.Ctx, p.ID)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestChangeDueDate_RespectsPolicy(t *testing.T) {
	f := apptest.New(t)
	g := lonelyGroup(t, f, nil)
	money, err := f.Payments.Create(f.Ctx, payment.CreateParams{GroupID: g.ID, Method: payment.MethodMoney, Direction: payment.In, Value: types.MustMoney("20")})
	require.NoError(t, err)
	check, err := f.Payments.Create(f.Ctx, payment.CreateParams{GroupID: g.ID, Method: payment.MethodCheck, Direction: payment.In, Value: types.MustMoney("20")})
	require.NoError(t, err)
	require.NoError(t, f.Payments.ConfirmGroup(f.Ctx, g.ID))

	later := f.Clock.Today().AddDate(0, 0, 15)
	_, err = f.Payments.ChangeDueDate(f.Ctx, money.ID, later)
	assert.True(t, apperror.IsInvalidTransition(err))

	check, err = f.Payments.ChangeDueDate(f.Ctx, check.ID, later)
	require.NoError(t, err)
	assert.Equal(t, later, check.DueDate)
}

func TestCancelGroup_LeavesPaidPayments(t *testing.T) {
	f := apptest.New(t)
	g := lonelyGroup(t, f, &f.Client.ID)
	d := f.Clock.Today()
	out, err := f.Payments.GenerateInstallments(f.Ctx, payment.InstallmentsParams{
		GroupID: g.ID, Method: payment.MethodCheck, Direction: payment.In,
		Total: types.MustMoney("90"), DueDates: []time.Time{d, d.AddDate(0, 0, 30), d.AddDate(0, 0, 60)},
	})
	require.NoError(t, err)
	require.NoError(t, f.Payments.ConfirmGroup(f.Ctx, g.ID))
	_, err = f.Payments.Pay(f.Ctx, out.Payments[0].ID, payment.PayOptions{})
	require.NoError(t, err)

	n, err := f.Payments.CancelGroup(f.Ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ledger := f.LedgerOf(g.ID)
	assert.True(t, ledger.TotalValue().Equal(types.MustMoney("30")))
	assert.True(t, ledger.IsFullyPaid())
	assert.Contains(t, f.Topics(), events.TopicGroupCancelled)
}

func TestDelete_OnlyPreview(t *testing.T) {
	f := apptest.New(t)
	g := lonelyGroup(t, f, nil)
	p, err := f.Payments.Create(f.Ctx, payment.CreateParams{GroupID: g.ID, Method: payment.MethodCheck, Direction: payment.In, Value: types.MustMoney("20")})
	require.NoError(t, err)
	q, err := f.Payments.Create(f.Ctx, payment.CreateParams{GroupID: g.ID, Method: payment.MethodCheck, Direction: payment.In, Value: types.MustMoney("20")})
	require.NoError(t, err)
	_, err = f.Payments.SetPending(f.Ctx, q.ID)
	require.NoError(t, err)

	require.NoError(t, f.Payments.RemoveFromGroup(f.Ctx, p.ID))
	_, err = f.Payments.Get(f.Ctx, p.ID)
	assert.True(t, apperror.IsNotFound(err))
	_, _, err = f.Store.GetCheckData(f.Ctx, p.ID)
	assert.True(t, apperror.IsNotFound(err))

	assert.True(t, apperror.IsInvalidTransition(f.Payments.Delete(f.Ctx, q.ID)))
}

func TestCardDetails(t *testing.T) {
	f := apptest.New(t)
	g := lonelyGroup(t, f, nil)
	p, err := f.Payments.Create(f.Ctx, payment.CreateParams{GroupID: g.ID, Method: payment.MethodCard, Direction: payment.In, Value: types.MustMoney("200")})
	require.NoError(t, err)

	data, err := f.Payments.SetCardDetails(f.Ctx, p.ID, payment.CardDetails{CardType: payment.CardDebit, Fee: decimal.NewFromFloat(2.5)})
	require.NoError(t, err)
	assert.True(t, data.FeeValue.Equal(types.MustMoney("5")))

	constant, err := f.Payments.DriverConstant(f.Ctx, p)
	require.NoError(t, err)
	assert.Equal(t, payment.ConstantDebitCard, constant)

	_, err = f.Payments.SetCardDetails(f.Ctx, p.ID, payment.CardDetails{CardType: "barter"})
	assert.True(t, apperror.IsValidation(err))
}

func TestAfterPayHookFailureRollsBack(t *testing.T) {
	f := apptest.New(t)
	g := lonelyGroup(t, f, nil)
	p, err := f.Payments.Create(f.Ctx, payment.CreateParams{GroupID: g.ID, Method: payment.MethodMoney, Direction: payment.In, Value: types.MustMoney("20")})
	require.NoError(t, err)
	_, err = f.Payments.SetPending(f.Ctx, p.ID)
	require.NoError(t, err)

	f.Payments.Hooks().On(domain.AfterPay, func(ctx context.Context, p *payment.Payment) error {
		return apperror.NewBusinessRule("blocked", "blocked by test")
	})
	_, err = f.Payments.Pay(f.Ctx, p.ID, payment.PayOptions{})
	require.Error(t, err)

	p, err = f.Payments.Get(f.Ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, p.Status)
	txs, err := f.Ledger.OfPayment(f.Ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

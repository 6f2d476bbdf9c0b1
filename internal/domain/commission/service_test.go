package commission_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoq/internal/app/apptest"
	"stoq/internal/core/apperror"
	"stoq/internal/core/types"
	"stoq/internal/domain/catalog"
	"stoq/internal/domain/commission"
	"stoq/internal/domain/payment"
	"stoq/internal/domain/sale"
)

func rates(direct, installments int64) (decimal.Decimal, decimal.Decimal) {
	return decimal.NewFromInt(direct), decimal.NewFromInt(installments)
}

func TestResolve_WalksCategoryChain(t *testing.T) {
	f := apptest.New(t)
	root := catalog.NewCategory("ROOT", "root", nil)
	child := catalog.NewCategory("CHILD", "child", &root.ID)
	require.NoError(t, f.Store.SaveCategory(f.Ctx, root))
	require.NoError(t, f.Store.SaveCategory(f.Ctx, child))

	d, i := rates(4, 2)
	require.NoError(t, f.Commissions.SetSource(f.Ctx, &commission.Source{CategoryID: &root.ID, DirectRate: d, InstallmentsRate: i}))

	product := catalog.NewProduct("CAT1", "categorized", types.MustMoney("10"), &child.ID)
	require.NoError(t, f.Store.SaveSellable(f.Ctx, product))
	src, err := f.Commissions.Resolve(f.Ctx, product.ID)
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, root.ID, *src.CategoryID)

	d, i = rates(9, 9)
	require.NoError(t, f.Commissions.SetSource(f.Ctx, &commission.Source{SellableID: &product.ID, DirectRate: d, InstallmentsRate: i}))
	src, err = f.Commissions.Resolve(f.Ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, product.ID, *src.SellableID, "own source wins")

	bare := f.Service("5")
	src, err = f.Commissions.Resolve(f.Ctx, bare.ID)
	require.NoError(t, err)
	assert.Nil(t, src)
}

func TestSetSource_Rules(t *testing.T) {
	f := apptest.New(t)
	product := f.Service("10")
	category := catalog.NewCategory("C", "c", nil)
	require.NoError(t, f.Store.SaveCategory(f.Ctx, category))

	d, i := rates(1, 1)
	err := f.Commissions.SetSource(f.Ctx, &commission.Source{SellableID: &product.ID, CategoryID: &category.ID, DirectRate: d, InstallmentsRate: i})
	assert.True(t, apperror.IsValidation(err))

	err = f.Commissions.SetSource(f.Ctx, &commission.Source{SellableID: &product.ID, DirectRate: decimal.NewFromInt(101), InstallmentsRate: i})
	assert.True(t, apperror.IsInvalidValue(err))

	require.NoError(t, f.Commissions.SetSource(f.Ctx, &commission.Source{SellableID: &product.ID, DirectRate: d, InstallmentsRate: i}))
	err = f.Commissions.SetSource(f.Ctx, &commission.Source{SellableID: &product.ID, DirectRate: d, InstallmentsRate: i})
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))
}

func TestCommission_PerPaidInstallment(t *testing.T) {
	f := apptest.New(t)
	product := f.Service("100.00")
	d, i := rates(5, 2)
	require.NoError(t, f.Commissions.SetSource(f.Ctx, &commission.Source{SellableID: &product.ID, DirectRate: d, InstallmentsRate: i}))

	sl := f.Sale(apptest.Line{Sellable: product, Qty: 1})
	day := f.Clock.Today()
	inst, err := f.Payments.GenerateInstallments(f.Ctx, payment.InstallmentsParams{
		GroupID: sl.GroupID, Method: payment.MethodCheck, Direction: payment.In,
		Total: types.MustMoney("100"), DueDates: []time.Time{day, day.AddDate(0, 1, 0)},
	})
	require.NoError(t, err)
	f.Confirm(sl)

	for _, p := range inst.Payments {
		_, err := f.Payments.Pay(f.Ctx, p.ID, payment.PayOptions{})
		require.NoError(t, err)
	}
	list, err := f.Commissions.OfSale(f.Ctx, sl.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, c := range list {
		assert.Equal(t, commission.KindInstallments, c.Kind)
		assert.True(t, c.Value.Equal(types.MustMoney("1")), c.Value.String())
		assert.NotNil(t, c.PaymentID)
		assert.Equal(t, f.Salesperson.ID, c.SalespersonID)
	}
}

func TestCompensate_NeverBelowZero(t *testing.T) {
	f := apptest.New(t)
	product := f.Service("100.00")
	d, i := rates(10, 10)
	require.NoError(t, f.Commissions.SetSource(f.Ctx, &commission.Source{SellableID: &product.ID, DirectRate: d, InstallmentsRate: i}))
	sl := f.Sale(apptest.Line{Sellable: product, Qty: 1})
	f.Pay(sl, payment.MethodMoney, "100.00")
	sl = f.Confirm(sl)

	info := sale.Info(sl)
	require.NoError(t, f.Commissions.Compensate(f.Ctx, info, types.MustMoney("0.7")))
	require.NoError(t, f.Commissions.Compensate(f.Ctx, info, types.MustMoney("0.7")))

	total, err := f.Commissions.Total(f.Ctx, sl.ID)
	require.NoError(t, err)
	assert.True(t, total.IsZero(), total.String())

	list, err := f.Commissions.OfSale(f.Ctx, sl.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[1].Value.Equal(types.MustMoney("-7")))
	assert.True(t, list[2].Value.Equal(types.MustMoney("-3")))
}

func TestCommission_RepayAfterSetNotPaidKeepsOneRow(t *testing.T) {
	f := apptest.New(t)
	product := f.Service("100.00")
	d, i := rates(5, 2)
	require.NoError(t, f.Commissions.SetSource(f.Ctx, &commission.Source{SellableID: &product.ID, DirectRate: d, InstallmentsRate: i}))

	sl := f.Sale(apptest.Line{Sellable: product, Qty: 1})
	day := f.Clock.Today()
	inst, err := f.Payments.GenerateInstallments(f.Ctx, payment.InstallmentsParams{
		GroupID: sl.GroupID, Method: payment.MethodCheck, Direction: payment.In,
		Total: types.MustMoney("100"), DueDates: []time.Time{day, day.AddDate(0, 1, 0)},
	})
	require.NoError(t, err)
	f.Confirm(sl)
	first := inst.Payments[0]

	_, err = f.Payments.Pay(f.Ctx, first.ID, payment.PayOptions{})
	require.NoError(t, err)
	_, err = f.Payments.SetNotPaid(f.Ctx, first.ID)
	require.NoError(t, err)

	list, err := f.Commissions.OfSale(f.Ctx, sl.ID)
	require.NoError(t, err)
	assert.Empty(t, list, "an unpaid payment carries no commission")

	_, err = f.Payments.Pay(f.Ctx, first.ID, payment.PayOptions{})
	require.NoError(t, err)

	list, err = f.Commissions.OfSale(f.Ctx, sl.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, *list[0].PaymentID)
	total, err := f.Commissions.Total(f.Ctx, sl.ID)
	require.NoError(t, err)
	assert.True(t, total.Equal(types.MustMoney("1")), total.String())

	require.NoError(t, f.Commissions.OnPaymentPaid(f.Ctx, first))
	list, err = f.Commissions.OfSale(f.Ctx, sl.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1, "a second after_pay for the same payment writes nothing")
}

func TestCommission_SetNotPaidRefusedAfterCompensation(t *testing.T) {
	f := apptest.New(t)
	product := f.Service("100.00")
	d, i := rates(5, 2)
	require.NoError(t, f.Commissions.SetSource(f.Ctx, &commission.Source{SellableID: &product.ID, DirectRate: d, InstallmentsRate: i}))

	sl := f.Sale(apptest.Line{Sellable: product, Qty: 1})
	day := f.Clock.Today()
	inst, err := f.Payments.GenerateInstallments(f.Ctx, payment.InstallmentsParams{
		GroupID: sl.GroupID, Method: payment.MethodCheck, Direction: payment.In,
		Total: types.MustMoney("100"), DueDates: []time.Time{day, day.AddDate(0, 1, 0)},
	})
	require.NoError(t, err)
	sl = f.Confirm(sl)
	first := inst.Payments[0]
	_, err = f.Payments.Pay(f.Ctx, first.ID, payment.PayOptions{})
	require.NoError(t, err)

	require.NoError(t, f.Commissions.Compensate(f.Ctx, sale.Info(sl), types.MustMoney("0.5")))

	_, err = f.Payments.SetNotPaid(f.Ctx, first.ID)
	assert.True(t, apperror.IsInvalidTransition(err), "%v", err)

	p, err := f.Store.GetPayment(f.Ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, p.Status)
	total, err := f.Commissions.Total(f.Ctx, sl.ID)
	require.NoError(t, err)
	assert.True(t, total.Equal(types.MustMoney("0.5")), total.String())
}

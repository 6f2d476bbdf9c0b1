package fiscal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoq/internal/app/apptest"
	"stoq/internal/core/apperror"
	"stoq/internal/core/id"
	"stoq/internal/core/types"
	"stoq/internal/domain/fiscal"
)

func TestReverseGroup(t *testing.T) {
	f := apptest.New(t)
	sl := f.Sale()
	original, err := f.Fiscal.CreateProductEntry(f.Ctx, fiscal.ProductEntry{
		GroupID: sl.GroupID, CFOP: "5.102", InvoiceNumber: 10,
		ICMS: types.MustMoney("10.01"), IPI: types.MustMoney("3"),
	})
	require.NoError(t, err)
	assert.Equal(t, f.Branch.ID, *original.DraweeID)

	reversals, err := f.Fiscal.ReverseGroup(f.Ctx, sl.GroupID, 11, types.MustMoney("0.5"))
	require.NoError(t, err)
	require.Len(t, reversals, 1, "no service entry to reverse")
	r := reversals[0]
	assert.True(t, r.IsReversal)
	assert.Equal(t, f.Params.DefaultReturnSalesCFOP, r.CFOP)
	assert.Equal(t, int64(11), r.InvoiceNumber)
	assert.True(t, r.ICMS.Equal(types.MustMoney("5")), r.ICMS.String())
	assert.True(t, r.IPI.Equal(types.MustMoney("1.5")))

	forward, err := f.Fiscal.GetEntryByPaymentGroup(f.Ctx, sl.GroupID, fiscal.EntryProduct)
	require.NoError(t, err)
	assert.Equal(t, original.ID, forward.ID)

	_, err = f.Fiscal.ReverseEntry(f.Ctx, r, 12, fiscal.Overrides{})
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestCreateEntry_UnknownGroup(t *testing.T) {
	f := apptest.New(t)
	_, err := f.Fiscal.CreateServiceEntry(f.Ctx, fiscal.ServiceEntry{GroupID: id.New(), ISS: types.MustMoney("1")})
	assert.True(t, apperror.IsNotFound(err))

	has, err := f.Fiscal.HasEntryByPaymentGroup(f.Ctx, id.New(), fiscal.EntryService)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestCreateEntry_NamesFirstNegativeTax(t *testing.T) {
	f := apptest.New(t)
	sl := f.Sale()
	for range 20 {
		_, err := f.Fiscal.CreateProductEntry(f.Ctx, fiscal.ProductEntry{
			GroupID: sl.GroupID, CFOP: "5.102", InvoiceNumber: 10,
			ICMS: types.MustMoney("-1"), IPI: types.MustMoney("-1"),
		})
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok, "%v", err)
		assert.Equal(t, "icms", appErr.Details["field"])
	}
}

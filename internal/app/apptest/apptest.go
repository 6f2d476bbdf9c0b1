// Package apptest builds a fully wired in-memory payment core for tests.
package apptest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stoq/internal/app"
	"stoq/internal/core/clock"
	appctx "stoq/internal/core/context"
	"stoq/internal/core/id"
	"stoq/internal/core/numerator"
	"stoq/internal/core/types"
	"stoq/internal/domain/catalog"
	"stoq/internal/domain/events"
	"stoq/internal/domain/params"
	"stoq/internal/domain/party"
	"stoq/internal/domain/payment"
	"stoq/internal/domain/registers/stock"
	"stoq/internal/domain/sale"
	"stoq/internal/infrastructure/storage/memory"
)

// Start is the fixed instant every fixture begins at.
var Start = time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

// Fixture is a wired core with a branch, a client and a salesperson.
type Fixture struct {
	*app.Services

	T      *testing.T
	Ctx    context.Context
	Store  *memory.Store
	Clock  *clock.Manual
	Events *events.Recorder
	Params params.Parameters

	Branch      *party.Person
	Client      *party.Person
	Salesperson *party.Person
	Imbalance   id.ID
}

// Option adjusts the parameters before wiring.
type Option func(*params.Parameters)

// WithParams applies fn to the parameters.
func WithParams(fn func(*params.Parameters)) Option { return Option(fn) }

// New builds a fixture.
func New(t *testing.T, opts ...Option) *Fixture {
	t.Helper()
	imbalance := id.New()
	p := params.Defaults()
	p.ImbalanceAccountID = &imbalance
	for _, o := range opts {
		o(&p)
	}

	store := memory.New()
	clk := clock.Fixed(Start)
	rec := &events.Recorder{}
	svc, err := app.New(app.MemoryRepositories(store), app.Options{
		Params:    p,
		Clock:     clk,
		Numerator: &numerator.MockGenerator{},
		Events:    rec,
	})
	require.NoError(t, err)

	f := &Fixture{Services: svc, T: t, Store: store, Clock: clk, Events: rec, Params: p, Imbalance: imbalance}

	f.Branch = party.NewPerson("Main branch")
	f.Branch.Branch = &party.BranchRole{Acronym: "MB"}
	f.Client = party.NewPerson("Client")
	f.Client.Client = &party.ClientRole{Status: party.ClientSolvent, CreditLimit: types.NewMoney(1000)}
	f.Salesperson = party.NewPerson("Salesperson")
	f.Salesperson.Employee = &party.EmployeeRole{IsSalesperson: true}

	bg := context.Background()
	for _, person := range []*party.Person{f.Branch, f.Client, f.Salesperson} {
		require.NoError(t, store.SavePerson(bg, person))
	}
	user := id.New()
	f.Ctx = appctx.WithUser(bg, &appctx.UserContext{UserID: user.String(), BranchID: f.Branch.ID.String()})
	require.NoError(t, svc.Bootstrap(f.Ctx))
	return f
}

// Product stores a stock-controlled product with qty units at the branch.
func (f *Fixture) Product(price string, qty int64) *catalog.Sellable {
	f.T.Helper()
	s := catalog.NewProduct("P"+id.New().String()[:8], "product", types.MustMoney(price), nil)
	require.NoError(f.T, f.Store.SaveSellable(f.Ctx, s))
	if qty > 0 {
		require.NoError(f.T, f.Stock.IncreaseStock(f.Ctx, s.ID, f.Branch.ID, types.NewQuantity(qty),
			stock.Recorder{ID: id.New(), Type: "initial"}))
	}
	return s
}

// Service stores a service sellable.
func (f *Fixture) Service(price string) *catalog.Sellable {
	f.T.Helper()
	s := catalog.NewService("S"+id.New().String()[:8], "service", types.MustMoney(price), nil)
	require.NoError(f.T, f.Store.SaveSellable(f.Ctx, s))
	return s
}

// Line is one item of a sale built by Sale.
type Line struct {
	Sellable *catalog.Sellable
	Qty      int64
}

// Sale opens a sale for the fixture client with lines.
func (f *Fixture) Sale(lines ...Line) *sale.Sale {
	f.T.Helper()
	sl, err := f.Sales.Create(f.Ctx, sale.CreateParams{ClientID: &f.Client.ID, SalespersonID: &f.Salesperson.ID})
	require.NoError(f.T, err)
	for _, l := range lines {
		_, err := f.Sales.AddItem(f.Ctx, sl.ID, sale.ItemParams{SellableID: l.Sellable.ID, Quantity: types.NewQuantity(l.Qty)})
		require.NoError(f.T, err)
	}
	sl, err = f.Sales.Get(f.Ctx, sl.ID)
	require.NoError(f.T, err)
	return sl
}

// Pay adds one payment of method and value to the group of sl.
func (f *Fixture) Pay(sl *sale.Sale, method payment.MethodName, value string) *payment.Payment {
	f.T.Helper()
	p, err := f.Payments.Create(f.Ctx, payment.CreateParams{
		GroupID:   sl.GroupID,
		Method:    method,
		Direction: payment.In,
		Value:     types.MustMoney(value),
	})
	require.NoError(f.T, err)
	return p
}

// Confirm confirms sl and reloads it.
func (f *Fixture) Confirm(sl *sale.Sale) *sale.Sale {
	f.T.Helper()
	confirmed, err := f.Sales.Confirm(f.Ctx, sl.ID, 1000+sl.Identifier)
	require.NoError(f.T, err)
	return confirmed
}

// LedgerOf loads the payments of a group.
func (f *Fixture) LedgerOf(groupID id.ID) *payment.Ledger {
	f.T.Helper()
	l, err := f.Payments.Ledger(f.Ctx, groupID)
	require.NoError(f.T, err)
	return l
}

// Topics lists the topics recorded so far.
func (f *Fixture) Topics() []events.Topic {
	var out []events.Topic
	for _, e := range f.Events.Events() {
		out = append(out, e.Topic)
	}
	return out
}

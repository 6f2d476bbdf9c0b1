// Package memory is an in-process implementation of every repository of the
// payment core together with a tx.Manager. A failed transaction restores the
// snapshot taken when it began, so the store gives the same all-or-nothing
// guarantee as the database. Values are copied on write and on read.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"stoq/internal/core/apperror"
	"stoq/internal/core/entity"
	"stoq/internal/core/id"
	"stoq/internal/core/tx"
	"stoq/internal/domain/catalog"
	"stoq/internal/domain/commission"
	"stoq/internal/domain/fiscal"
	"stoq/internal/domain/ledger"
	"stoq/internal/domain/party"
	"stoq/internal/domain/payment"
	"stoq/internal/domain/registers/stock"
	"stoq/internal/domain/renegotiation"
	"stoq/internal/domain/returns"
	"stoq/internal/domain/sale"
	"stoq/pkg/logger"
)

type balanceKey struct {
	branchID  id.ID
	productID id.ID
}

type state struct {
	payments map[id.ID]payment.Payment
	groups   map[id.ID]payment.Group
	methods  map[payment.MethodName]payment.Method
	checks   map[id.ID]payment.CheckData
	accounts map[id.ID]payment.BankAccount
	cards    map[id.ID]payment.CardData

	transactions []ledger.AccountTransaction
	sources      map[id.ID]commission.Source
	commissions  []commission.Commission
	entries      []fiscal.BookEntry

	persons    map[id.ID]party.Person
	sellables  map[id.ID]catalog.Sellable
	categories map[id.ID]catalog.Category

	sales          map[id.ID]sale.Sale
	saleItems      map[id.ID][]sale.Item
	returned       map[id.ID]returns.ReturnedSale
	returnedItems  map[id.ID][]returns.Item
	renegotiations map[id.ID]renegotiation.Renegotiation

	movements []entity.StockMovement
	balances  map[balanceKey]entity.StockBalance
}

func newState() *state {
	return &state{
		payments:       make(map[id.ID]payment.Payment),
		groups:         make(map[id.ID]payment.Group),
		methods:        make(map[payment.MethodName]payment.Method),
		checks:         make(map[id.ID]payment.CheckData),
		accounts:       make(map[id.ID]payment.BankAccount),
		cards:          make(map[id.ID]payment.CardData),
		sources:        make(map[id.ID]commission.Source),
		persons:        make(map[id.ID]party.Person),
		sellables:      make(map[id.ID]catalog.Sellable),
		categories:     make(map[id.ID]catalog.Category),
		sales:          make(map[id.ID]sale.Sale),
		saleItems:      make(map[id.ID][]sale.Item),
		returned:       make(map[id.ID]returns.ReturnedSale),
		returnedItems:  make(map[id.ID][]returns.Item),
		renegotiations: make(map[id.ID]renegotiation.Renegotiation),
		balances:       make(map[balanceKey]entity.StockBalance),
	}
}

func (s *state) clone() *state {
	c := &state{
		payments:       maps.Clone(s.payments),
		groups:         maps.Clone(s.groups),
		methods:        maps.Clone(s.methods),
		checks:         maps.Clone(s.checks),
		accounts:       maps.Clone(s.accounts),
		cards:          maps.Clone(s.cards),
		transactions:   slices.Clone(s.transactions),
		sources:        maps.Clone(s.sources),
		commissions:    slices.Clone(s.commissions),
		entries:        slices.Clone(s.entries),
		persons:        maps.Clone(s.persons),
		sellables:      maps.Clone(s.sellables),
		categories:     maps.Clone(s.categories),
		sales:          maps.Clone(s.sales),
		saleItems:      make(map[id.ID][]sale.Item, len(s.saleItems)),
		returned:       maps.Clone(s.returned),
		returnedItems:  make(map[id.ID][]returns.Item, len(s.returnedItems)),
		renegotiations: maps.Clone(s.renegotiations),
		movements:      slices.Clone(s.movements),
		balances:       maps.Clone(s.balances),
	}
	for k, v := range s.saleItems {
		c.saleItems[k] = slices.Clone(v)
	}
	for k, v := range s.returnedItems {
		c.returnedItems[k] = slices.Clone(v)
	}
	return c
}

// Store holds the whole data set in memory.
type Store struct {
	// txMu serializes transactions; mu guards data.
	txMu sync.Mutex
	mu   sync.RWMutex
	data *state
}

// New creates an empty store.
func New() *Store {
	return &Store{data: newState()}
}

var (
	_ tx.ReadOnlyManager         = (*Store)(nil)
	_ payment.Store              = (*Store)(nil)
	_ ledger.Repository          = (*Store)(nil)
	_ commission.Repository      = (*Store)(nil)
	_ fiscal.Repository          = (*Store)(nil)
	_ party.Repository           = (*Store)(nil)
	_ catalog.Repository         = (*Store)(nil)
	_ sale.Repository            = (*Store)(nil)
	_ renegotiation.Repository   = (*Store)(nil)
	_ stock.Repository           = (*Store)(nil)
)

type txKey struct{}

// RunInTransaction implements tx.Manager. Nested calls join the outer
// transaction; only the outermost restores the snapshot on error.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		logger.Debug(ctx, "memory transaction rolled back", "error", err)
		return err
	}
	return nil
}

// ReadOnly implements tx.ReadOnlyManager.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.RunInTransaction(ctx, fn)
}

func (s *Store) read(fn func(d *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.data)
}

func (s *Store) write(fn func(d *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func lookup[K comparable, V any](m map[K]V, key K, name string) (*V, error) {
	v, ok := m[key]
	if !ok {
		return nil, apperror.NewNotFound(name, key)
	}
	return &v, nil
}

// checkVersion implements optimistic locking: the caller must hold the
// stored version; on success the caller's version is bumped.
func checkVersion(stored, incoming *entity.BaseEntity, name string) error {
	if stored.Version != incoming.Version {
		return apperror.NewConcurrentModification(name, incoming.ID.String())
	}
	incoming.Version++
	return nil
}

func copies[V any](in []V, keep func(*V) bool) []*V {
	out := make([]*V, 0, len(in))
	for i := range in {
		if keep(&in[i]) {
			v := in[i]
			out = append(out, &v)
		}
	}
	return out
}

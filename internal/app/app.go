// Package app wires the payment core services over a set of repositories.
package app

import (
	"context"
	"fmt"

	"stoq/internal/core/clock"
	"stoq/internal/core/numerator"
	"stoq/internal/core/tx"
	"stoq/internal/domain/catalog"
	"stoq/internal/domain/commission"
	"stoq/internal/domain/events"
	"stoq/internal/domain/fiscal"
	"stoq/internal/domain/ledger"
	"stoq/internal/domain/params"
	"stoq/internal/domain/party"
	"stoq/internal/domain/payment"
	"stoq/internal/domain/registers/stock"
	"stoq/internal/domain/renegotiation"
	"stoq/internal/domain/returns"
	"stoq/internal/domain/sale"
	"stoq/internal/infrastructure/storage/memory"
	"stoq/internal/infrastructure/storage/postgres"
	"stoq/internal/infrastructure/storage/postgres/catalog_repo"
	"stoq/internal/infrastructure/storage/postgres/document_repo"
	"stoq/internal/infrastructure/storage/postgres/payment_repo"
	"stoq/internal/infrastructure/storage/postgres/register_repo"
	pgnumerator "stoq/pkg/numerator"
)

// Repositories are the storage ports of every service.
type Repositories struct {
	Tx             tx.Manager
	Payments       payment.Store
	Ledger         ledger.Repository
	Commissions    commission.Repository
	Fiscal         fiscal.Repository
	Parties        party.Repository
	Catalog        catalog.Repository
	Sales          sale.Repository
	Returns        returns.Repository
	Renegotiations renegotiation.Repository
	Stock          stock.Repository
}

// MemoryRepositories exposes an in-memory store through Repositories.
func MemoryRepositories(s *memory.Store) Repositories {
	return Repositories{
		Tx:             s,
		Payments:       s,
		Ledger:         s,
		Commissions:    s,
		Fiscal:         s,
		Parties:        s,
		Catalog:        s,
		Sales:          s,
		Returns:        s.Returns(),
		Renegotiations: s,
		Stock:          s,
	}
}

// PostgresRepositories exposes the PostgreSQL repositories through
// Repositories. Every repository joins the transaction carried by ctx.
func PostgresRepositories(txm *postgres.TxManager) Repositories {
	return Repositories{
		Tx:             txm,
		Payments:       payment_repo.New(txm),
		Ledger:         register_repo.NewLedgerRepo(txm),
		Commissions:    register_repo.NewCommissionRepo(txm),
		Fiscal:         register_repo.NewFiscalRepo(txm),
		Parties:        catalog_repo.NewPersonRepo(txm),
		Catalog:        catalog_repo.NewSellableRepo(txm),
		Sales:          document_repo.NewSaleRepo(txm),
		Returns:        document_repo.NewReturnedSaleRepo(txm),
		Renegotiations: document_repo.NewRenegotiationRepo(txm),
		Stock:          register_repo.NewStockRepo(txm),
	}
}

// NewPostgres builds the services over PostgreSQL. Events are written to
// the transactional outbox and the audit log in addition to o.Events, and
// identifiers come from sys_sequences unless o.Numerator is set.
func NewPostgres(txm *postgres.TxManager, o Options) (*Services, error) {
	if o.Numerator == nil {
		o.Numerator = pgnumerator.NewWithResolver(func(ctx context.Context) pgnumerator.Querier {
			return txm.GetQuerier(ctx)
		})
	}
	audit, err := postgres.NewAuditLog(txm, 0)
	if err != nil {
		return nil, err
	}
	o.Events = events.NewBus(postgres.NewOutboxPublisher(txm), audit, o.Events)
	return New(PostgresRepositories(txm), o)
}

// Options tune the services.
type Options struct {
	Params    params.Parameters
	Clock     clock.Clock
	Numerator numerator.Generator
	Events    events.Publisher
}

// Services is the assembled payment core.
type Services struct {
	Repos     Repositories
	Directory party.Directory

	Payments       *payment.Service
	Ledger         *ledger.Service
	Stock          *stock.Service
	Fiscal         *fiscal.Service
	Commissions    *commission.Service
	Sales          *sale.Service
	Returns        *returns.Service
	Renegotiations *renegotiation.Service
}

// New builds every service and attaches the commission engine to the
// payment hooks.
func New(r Repositories, o Options) (*Services, error) {
	if err := o.Params.Validate(); err != nil {
		return nil, fmt.Errorf("parameters: %w", err)
	}
	if o.Clock == nil {
		o.Clock = clock.New(nil)
	}
	if o.Events == nil {
		o.Events = events.Nop{}
	}
	if o.Numerator == nil {
		return nil, fmt.Errorf("numerator is required")
	}

	directory := party.NewContextDirectory(r.Parties)
	ledgerSvc := ledger.NewService(r.Ledger, o.Params.ImbalanceAccountID)
	payments := payment.NewService(payment.Deps{
		Store:        r.Payments,
		Tx:           r.Tx,
		Clock:        o.Clock,
		Numerator:    o.Numerator,
		Directory:    directory,
		Events:       o.Events,
		Params:       o.Params,
		Transactions: ledgerSvc,
	})
	stockSvc := stock.NewService(r.Stock, o.Clock)
	fiscalSvc := fiscal.NewService(r.Fiscal, r.Payments, directory, o.Clock, o.Params)
	commissions := commission.NewService(r.Commissions, r.Catalog, sale.NewFinder(r.Sales), r.Payments, o.Clock, o.Params)
	commissions.Register(payments.Hooks())

	sales := sale.NewService(sale.Deps{
		Store:       r.Sales,
		Catalog:     r.Catalog,
		Payments:    payments,
		Fiscal:      fiscalSvc,
		Commissions: commissions,
		Stock:       stockSvc,
		Directory:   directory,
		Numerator:   o.Numerator,
		Clock:       o.Clock,
		Tx:          r.Tx,
		Params:      o.Params,
	})
	returnsSvc := returns.NewService(returns.Deps{
		Store:       r.Returns,
		Sales:       sales,
		Payments:    payments,
		Fiscal:      fiscalSvc,
		Commissions: commissions,
		Stock:       stockSvc,
		Catalog:     r.Catalog,
		Directory:   directory,
		Numerator:   o.Numerator,
		Clock:       o.Clock,
		Tx:          r.Tx,
		Events:      o.Events,
		Params:      o.Params,
	})
	renegotiations := renegotiation.NewService(r.Renegotiations, payments, sales, directory, o.Numerator, o.Clock, r.Tx)

	return &Services{
		Repos:          r,
		Directory:      directory,
		Payments:       payments,
		Ledger:         ledgerSvc,
		Stock:          stockSvc,
		Fiscal:         fiscalSvc,
		Commissions:    commissions,
		Sales:          sales,
		Returns:        returnsSvc,
		Renegotiations: renegotiations,
	}, nil
}

// Bootstrap stores the default record of every payment method.
func (s *Services) Bootstrap(ctx context.Context) error {
	return s.Payments.EnsureMethods(ctx)
}

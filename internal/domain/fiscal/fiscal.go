// Package fiscal keeps the append-only fiscal book.
package fiscal

import (
	"context"
	"fmt"
	"time"

	"stoq/internal/core/apperror"
	"stoq/internal/core/clock"
	"stoq/internal/core/entity"
	"stoq/internal/core/id"
	"stoq/internal/core/types"
	"stoq/internal/domain/params"
	"stoq/internal/domain/party"
	"stoq/internal/domain/payment"
	"stoq/pkg/logger"
)

// EntryType classifies a fiscal book entry.
type EntryType string

const (
	EntryProduct   EntryType = "product"
	EntryService   EntryType = "service"
	EntryInventory EntryType = "inventory"
)

// BookEntry is one immutable fiscal book row.
type BookEntry struct {
	entity.BaseEntity

	EntryType  EntryType `db:"entry_type" json:"entryType"`
	IsReversal bool      `db:"is_reversal" json:"isReversal"`
	// OriginalEntryID links a reversal to the entry it reverses.
	OriginalEntryID *id.ID `db:"original_entry_id" json:"originalEntryId,omitempty"`

	InvoiceNumber  int64  `db:"invoice_number" json:"invoiceNumber"`
	CFOP           string `db:"cfop" json:"cfop"`
	BranchID       id.ID  `db:"branch_id" json:"branchId"`
	DraweeID       *id.ID `db:"drawee_id" json:"draweeId,omitempty"`
	PaymentGroupID id.ID  `db:"payment_group_id" json:"paymentGroupId"`

	ICMS types.Money `db:"icms" json:"icms"`
	IPI  types.Money `db:"ipi" json:"ipi"`
	ISS  types.Money `db:"iss" json:"iss"`

	Date time.Time `db:"date" json:"date"`
}

// Repository stores fiscal book entries. There is no update or delete.
type Repository interface {
	CreateEntry(ctx context.Context, e *BookEntry) error
	// EntryByGroup returns the forward (non-reversal) entry of a type, or NotFound.
	EntryByGroup(ctx context.Context, groupID id.ID, t EntryType) (*BookEntry, error)
	// ReversalOf returns the reversal of an entry, or NotFound.
	ReversalOf(ctx context.Context, originalID id.ID) (*BookEntry, error)
	EntriesOfGroup(ctx context.Context, groupID id.ID) ([]*BookEntry, error)
}

// GroupSource loads payment groups.
type GroupSource interface {
	GetGroup(ctx context.Context, groupID id.ID) (*payment.Group, error)
}

// Service writes the fiscal book.
type Service struct {
	repo      Repository
	groups    GroupSource
	directory party.Directory
	clock     clock.Clock
	params    params.Parameters
}

// NewService creates a fiscal book service.
func NewService(repo Repository, groups GroupSource, directory party.Directory, clk clock.Clock, p params.Parameters) *Service {
	return &Service{repo: repo, groups: groups, directory: directory, clock: clk, params: p}
}

// ProductEntry are the inputs of CreateProductEntry.
type ProductEntry struct {
	GroupID       id.ID
	CFOP          string
	InvoiceNumber int64
	ICMS          types.Money
	IPI           types.Money
}

// ServiceEntry are the inputs of CreateServiceEntry.
type ServiceEntry struct {
	GroupID       id.ID
	CFOP          string
	InvoiceNumber int64
	ISS           types.Money
}

// CreateProductEntry books ICMS and IPI of a group.
func (s *Service) CreateProductEntry(ctx context.Context, in ProductEntry) (*BookEntry, error) {
	e, err := s.newEntry(ctx, EntryProduct, in.GroupID, in.CFOP, in.InvoiceNumber)
	if err != nil {
		return nil, err
	}
	e.ICMS, e.IPI = in.ICMS, in.IPI
	return e, s.insert(ctx, e)
}

// CreateServiceEntry books ISS of a group.
func (s *Service) CreateServiceEntry(ctx context.Context, in ServiceEntry) (*BookEntry, error) {
	e, err := s.newEntry(ctx, EntryService, in.GroupID, in.CFOP, in.InvoiceNumber)
	if err != nil {
		return nil, err
	}
	e.ISS = in.ISS
	return e, s.insert(ctx, e)
}

func (s *Service) newEntry(ctx context.Context, t EntryType, groupID id.ID, cfop string, invoice int64) (*BookEntry, error) {
	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	branchID, err := s.directory.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}
	if cfop == "" {
		cfop = s.params.DefaultSalesCFOP
	}
	return &BookEntry{
		BaseEntity:     entity.NewBaseEntity(),
		EntryType:      t,
		InvoiceNumber:  invoice,
		CFOP:           cfop,
		BranchID:       branchID,
		DraweeID:       group.RecipientID,
		PaymentGroupID: group.ID,
		ICMS:           types.Zero(),
		IPI:            types.Zero(),
		ISS:            types.Zero(),
		Date:           s.clock.Now(),
	}, nil
}

func (s *Service) insert(ctx context.Context, e *BookEntry) error {
	for _, tax := range []struct {
		name  string
		value types.Money
	}{{"icms", e.ICMS}, {"ipi", e.IPI}, {"iss", e.ISS}} {
		if tax.value.IsNegative() {
			return apperror.NewInvalidValue(tax.name, tax.name+" must not be negative")
		}
	}
	if err := s.repo.CreateEntry(ctx, e); err != nil {
		return fmt.Errorf("create fiscal entry: %w", err)
	}
	logger.Debug(ctx, "fiscal entry created",
		"entry_id", e.ID, "entry_type", e.EntryType, "reversal", e.IsReversal, "cfop", e.CFOP)
	return nil
}

// Overrides replace the tax values copied into a reversal.
type Overrides struct {
	ICMS *types.Money
	IPI  *types.Money
	ISS  *types.Money
}

// ReverseEntry inserts the reversal of original under a new invoice number.
// The reversal CFOP is always the default return sales CFOP.
func (s *Service) ReverseEntry(ctx context.Context, original *BookEntry, invoiceNumber int64, o Overrides) (*BookEntry, error) {
	if original.IsReversal {
		return nil, apperror.NewInvalidTransition("fiscal entry", "reversal", "reverse").
			WithDetail("entry_id", original.ID.String())
	}
	e := &BookEntry{
		BaseEntity:      entity.NewBaseEntity(),
		EntryType:       original.EntryType,
		IsReversal:      true,
		OriginalEntryID: &original.ID,
		InvoiceNumber:   invoiceNumber,
		CFOP:            s.params.DefaultReturnSalesCFOP,
		BranchID:        original.BranchID,
		DraweeID:        original.DraweeID,
		PaymentGroupID:  original.PaymentGroupID,
		ICMS:            pick(o.ICMS, original.ICMS),
		IPI:             pick(o.IPI, original.IPI),
		ISS:             pick(o.ISS, original.ISS),
		Date:            s.clock.Now(),
	}
	if err := s.insert(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func pick(override *types.Money, fallback types.Money) types.Money {
	if override != nil {
		return *override
	}
	return fallback
}

// ReverseGroup reverses the product and service entries of a group, scaling
// every tax by fraction. Missing forward entries are skipped.
func (s *Service) ReverseGroup(ctx context.Context, groupID id.ID, invoiceNumber int64, fraction types.Money) ([]*BookEntry, error) {
	var out []*BookEntry
	for _, t := range []EntryType{EntryProduct, EntryService} {
		original, err := s.repo.EntryByGroup(ctx, groupID, t)
		if apperror.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %s entry: %w", t, err)
		}
		icms := types.RoundMoney(original.ICMS.Mul(fraction))
		ipi := types.RoundMoney(original.IPI.Mul(fraction))
		iss := types.RoundMoney(original.ISS.Mul(fraction))
		reversal, err := s.ReverseEntry(ctx, original, invoiceNumber, Overrides{ICMS: &icms, IPI: &ipi, ISS: &iss})
		if err != nil {
			return nil, err
		}
		out = append(out, reversal)
	}
	return out, nil
}

// HasEntryByPaymentGroup reports whether a forward entry of type t exists.
func (s *Service) HasEntryByPaymentGroup(ctx context.Context, groupID id.ID, t EntryType) (bool, error) {
	_, err := s.repo.EntryByGroup(ctx, groupID, t)
	if apperror.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

// GetEntryByPaymentGroup returns the forward entry of type t.
func (s *Service) GetEntryByPaymentGroup(ctx context.Context, groupID id.ID, t EntryType) (*BookEntry, error) {
	return s.repo.EntryByGroup(ctx, groupID, t)
}

// Entries lists every entry of a group, reversals included, in insertion order.
func (s *Service) Entries(ctx context.Context, groupID id.ID) ([]*BookEntry, error) {
	return s.repo.EntriesOfGroup(ctx, groupID)
}

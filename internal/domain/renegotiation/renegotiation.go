// Package renegotiation replaces the open payments of one or more groups by
// a new group.
package renegotiation

import (
	"context"
	"fmt"

	"stoq/internal/core/apperror"
	"stoq/internal/core/clock"
	"stoq/internal/core/entity"
	"stoq/internal/core/id"
	"stoq/internal/core/numerator"
	"stoq/internal/core/tx"
	"stoq/internal/core/types"
	"stoq/internal/domain/party"
	"stoq/internal/domain/payment"
	"stoq/internal/domain/sale"
	"stoq/pkg/logger"
)

// Status of a renegotiation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
)

// Renegotiation moves the pending balance of SourceGroupIDs into GroupID.
type Renegotiation struct {
	entity.Document

	Status    Status      `db:"status" json:"status"`
	ClientID  *id.ID      `db:"client_id" json:"clientId,omitempty"`
	GroupID   id.ID       `db:"group_id" json:"groupId"`
	Discount  types.Money `db:"discount" json:"discount"`
	Surcharge types.Money `db:"surcharge" json:"surcharge"`
	// Total is the renegotiated balance the new group must add up to.
	Total types.Money `db:"total" json:"total"`

	SourceGroupIDs []id.ID `db:"-" json:"sourceGroupIds"`
}

// Repository stores renegotiations.
type Repository interface {
	CreateRenegotiation(ctx context.Context, r *Renegotiation) error
	UpdateRenegotiation(ctx context.Context, r *Renegotiation) error
	GetRenegotiation(ctx context.Context, renegotiationID id.ID) (*Renegotiation, error)
}

// Service runs renegotiations.
type Service struct {
	repo      Repository
	payments  *payment.Service
	sales     *sale.Service
	directory party.Directory
	numerator numerator.Generator
	clock     clock.Clock
	txm       tx.Manager
}

// NewService creates a renegotiation service.
func NewService(repo Repository, payments *payment.Service, sales *sale.Service, directory party.Directory,
	gen numerator.Generator, clk clock.Clock, txm tx.Manager) *Service {
	return &Service{
		repo:      repo,
		payments:  payments,
		sales:     sales,
		directory: directory,
		numerator: gen,
		clock:     clk,
		txm:       txm,
	}
}

// CreateParams describe a renegotiation.
type CreateParams struct {
	ClientID  *id.ID
	GroupIDs  []id.ID
	Discount  types.Money
	Surcharge types.Money
}

// Create cancels the pending IN payments of every source group, marks their
// sales RENEGOTIATED and opens the new group. Callers then add payments to
// the new group and Confirm.
func (s *Service) Create(ctx context.Context, in CreateParams) (*Renegotiation, error) {
	if len(in.GroupIDs) == 0 {
		return nil, apperror.NewValidation("at least one payment group is required").WithDetail("field", "groupIds")
	}
	if in.Discount.IsNegative() || in.Surcharge.IsNegative() {
		return nil, apperror.NewInvalidValue("discount", "discount and surcharge must not be negative")
	}
	var r *Renegotiation
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		branchID, err := s.directory.CurrentBranch(ctx)
		if err != nil {
			return err
		}
		responsible, err := s.directory.CurrentUser(ctx)
		if err != nil {
			return err
		}
		identifier, err := s.numerator.Next(ctx,
			numerator.Config{Kind: numerator.KindRenegotiation, Scope: branchID.String()}, nil)
		if err != nil {
			return fmt.Errorf("next renegotiation identifier: %w", err)
		}
		r = &Renegotiation{
			Document:       entity.NewDocument(branchID, s.clock.Now()),
			Status:         StatusPending,
			ClientID:       in.ClientID,
			Discount:       in.Discount,
			Surcharge:      in.Surcharge,
			SourceGroupIDs: in.GroupIDs,
		}
		r.Identifier = identifier
		r.ResponsibleID = responsible

		group, err := s.payments.CreateGroup(ctx, in.ClientID, &branchID)
		if err != nil {
			return err
		}
		r.GroupID = group.ID
		r.Total = types.Zero()
		if err := s.repo.CreateRenegotiation(ctx, r); err != nil {
			return fmt.Errorf("create renegotiation: %w", err)
		}

		pending := types.Zero()
		for _, groupID := range in.GroupIDs {
			amount, err := s.release(ctx, groupID, r.ID)
			if err != nil {
				return err
			}
			pending = pending.Add(amount)
		}
		r.Total = pending.Sub(in.Discount).Add(in.Surcharge)
		if r.Total.IsNegative() {
			return apperror.NewInvalidValue("discount", "discount exceeds the renegotiated balance")
		}
		if err := s.repo.UpdateRenegotiation(ctx, r); err != nil {
			return fmt.Errorf("update renegotiation: %w", err)
		}
		_, err = s.payments.AttachParent(ctx, group.ID, payment.ParentRenegotiation, r.ID, identifier)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "renegotiation created",
		"renegotiation_id", r.ID, "groups", len(r.SourceGroupIDs), "total", r.Total)
	return r, nil
}

// release zeroes one source group and returns the pending amount it held.
func (s *Service) release(ctx context.Context, groupID, renegotiationID id.ID) (types.Money, error) {
	ledger, err := s.payments.Ledger(ctx, groupID)
	if err != nil {
		return types.Zero(), err
	}
	if ledger.Group.RenegotiationID != nil {
		return types.Zero(), apperror.NewInvalidTransition("payment group", "renegotiated", "renegotiate")
	}
	sold, err := s.sales.GetByGroup(ctx, groupID)
	if err != nil && !apperror.IsNotFound(err) {
		return types.Zero(), err
	}
	if sold != nil && !sold.CanRenegotiate() {
		return types.Zero(), apperror.NewInvalidTransition("sale", string(sold.Status), "renegotiate")
	}

	amount := types.Zero()
	for _, p := range ledger.Pending() {
		if p.IsInpayment() {
			amount = amount.Add(p.Value)
		}
	}
	if _, err := s.payments.CancelPendingIn(ctx, groupID); err != nil {
		return types.Zero(), err
	}
	if err := s.payments.MarkRenegotiated(ctx, groupID, renegotiationID); err != nil {
		return types.Zero(), err
	}
	if sold != nil {
		if _, err := s.sales.MarkRenegotiated(ctx, sold.ID); err != nil {
			return types.Zero(), err
		}
	}
	return amount, nil
}

// Confirm confirms the new group once its payments add up to the
// renegotiated total.
func (s *Service) Confirm(ctx context.Context, renegotiationID id.ID) (*Renegotiation, error) {
	var r *Renegotiation
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if r, err = s.repo.GetRenegotiation(ctx, renegotiationID); err != nil {
			return err
		}
		if r.Status != StatusPending {
			return apperror.NewInvalidTransition("renegotiation", string(r.Status), "confirm")
		}
		ledger, err := s.payments.Ledger(ctx, r.GroupID)
		if err != nil {
			return err
		}
		if !ledger.TotalValue().Equal(r.Total) {
			return apperror.NewInvalidValue("total",
				fmt.Sprintf("payments add up to %s, expected %s", ledger.TotalValue(), r.Total))
		}
		if err := s.payments.ConfirmGroup(ctx, r.GroupID); err != nil {
			return err
		}
		r.Status = StatusConfirmed
		r.UpdatedAt = s.clock.Now()
		return s.repo.UpdateRenegotiation(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "renegotiation confirmed", "renegotiation_id", r.ID)
	return r, nil
}

// Get loads a renegotiation.
func (s *Service) Get(ctx context.Context, renegotiationID id.ID) (*Renegotiation, error) {
	return s.repo.GetRenegotiation(ctx, renegotiationID)
}

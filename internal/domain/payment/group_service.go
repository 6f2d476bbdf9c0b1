package payment

import (
	"context"
	"fmt"

	"stoq/internal/core/apperror"
	"stoq/internal/core/id"
	"stoq/internal/domain/events"
	"stoq/pkg/logger"
)

// CreateGroup stores a new lonely group.
func (s *Service) CreateGroup(ctx context.Context, payer, recipient *id.ID) (*Group, error) {
	g := NewGroup(payer, recipient)
	if err := s.store.CreateGroup(ctx, g); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	return g, nil
}

// GetGroup loads a group.
func (s *Service) GetGroup(ctx context.Context, groupID id.ID) (*Group, error) {
	return s.store.GetGroup(ctx, groupID)
}

// AttachParent records the operation owning a group.
func (s *Service) AttachParent(ctx context.Context, groupID id.ID, kind ParentKind, parentID id.ID, identifier int64) (*Group, error) {
	var g *Group
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if g, err = s.store.GetGroup(ctx, groupID); err != nil {
			return err
		}
		if err := g.SetParent(kind, parentID, identifier); err != nil {
			return err
		}
		return s.store.UpdateGroup(ctx, g)
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Ledger loads a group with all its payments.
func (s *Service) Ledger(ctx context.Context, groupID id.ID) (*Ledger, error) {
	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	payments, err := s.store.PaymentsOfGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("payments of group: %w", err)
	}
	return NewLedger(g, payments), nil
}

// AddToGroup moves a PREVIEW payment into group.
func (s *Service) AddToGroup(ctx context.Context, groupID, paymentID id.ID) (*Payment, error) {
	return s.update(ctx, paymentID, func(ctx context.Context, p *Payment) error {
		if p.GroupID == groupID {
			return nil
		}
		if !p.IsPreview() {
			return p.transitionError("add_to_group")
		}
		g, err := s.store.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if p.IsInpayment() {
			m, err := s.method(ctx, s.registry.Lookup(p.Method))
			if err != nil {
				return err
			}
			if err := s.checkInstallmentLimit(ctx, g, m, 1); err != nil {
				return err
			}
		}
		p.GroupID = g.ID
		return s.save(ctx, p)
	})
}

// RemoveFromGroup deletes a PREVIEW payment; a payment never exists without a group.
func (s *Service) RemoveFromGroup(ctx context.Context, paymentID id.ID) error {
	return s.Delete(ctx, paymentID)
}

// ConfirmGroup moves every PREVIEW payment to PENDING.
func (s *Service) ConfirmGroup(ctx context.Context, groupID id.ID) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.eachPayment(ctx, groupID, (*Payment).IsPreview, s.setPending)
	})
}

// PayGroup pays every payment not yet paid or cancelled.
func (s *Service) PayGroup(ctx context.Context, groupID id.ID) error {
	return s.payWhere(ctx, groupID, func(*Payment) bool { return true })
}

// PayMethod pays the open payments of one method.
func (s *Service) PayMethod(ctx context.Context, groupID id.ID, method MethodName) error {
	return s.payWhere(ctx, groupID, func(p *Payment) bool { return p.Method == method })
}

// PayOnConfirm pays the open payments whose method settles at confirmation.
func (s *Service) PayOnConfirm(ctx context.Context, groupID id.ID) error {
	return s.payWhere(ctx, groupID, func(p *Payment) bool { return s.registry.Lookup(p.Method).PayOnConfirm })
}

func (s *Service) payWhere(ctx context.Context, groupID id.ID, match func(*Payment) bool) error {
	open := func(p *Payment) bool { return (p.IsPreview() || p.IsPending()) && match(p) }
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.eachPayment(ctx, groupID, open, func(ctx context.Context, p *Payment) error {
			if err := s.setPending(ctx, p); err != nil {
				return err
			}
			return s.pay(ctx, p, PayOptions{})
		})
	})
}

// CancelGroup cancels every pending payment of the group. Paid payments are untouched.
func (s *Service) CancelGroup(ctx context.Context, groupID id.ID) (int, error) {
	cancelled := 0
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		cancelled, err = s.cancelPending(ctx, groupID, func(*Payment) bool { return true })
		if err != nil {
			return err
		}
		return s.events.Publish(ctx, events.Event{
			Topic:         events.TopicGroupCancelled,
			AggregateType: "payment_group",
			AggregateID:   groupID,
			OccurredAt:    s.clock.Now(),
			Payload:       events.GroupCancelled{GroupID: groupID, Cancelled: cancelled},
		})
	})
	if err != nil {
		return 0, err
	}
	logger.Info(ctx, "payment group cancelled", "group_id", groupID, "cancelled", cancelled)
	return cancelled, nil
}

// CancelPendingIn cancels the pending IN payments of a group and returns how
// many were cancelled.
func (s *Service) CancelPendingIn(ctx context.Context, groupID id.ID) (int, error) {
	cancelled := 0
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		cancelled, err = s.cancelPending(ctx, groupID, (*Payment).IsInpayment)
		return err
	})
	return cancelled, err
}

func (s *Service) cancelPending(ctx context.Context, groupID id.ID, match func(*Payment) bool) (int, error) {
	n := 0
	err := s.eachPayment(ctx, groupID,
		func(p *Payment) bool { return p.IsPending() && match(p) },
		func(ctx context.Context, p *Payment) error {
			n++
			return s.cancel(ctx, p)
		})
	return n, err
}

// ClearUnused deletes the PREVIEW payments left in a group.
func (s *Service) ClearUnused(ctx context.Context, groupID id.ID) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.eachPayment(ctx, groupID, (*Payment).IsPreview, s.delete)
	})
}

// MarkRenegotiated records that a group was replaced by a renegotiation.
func (s *Service) MarkRenegotiated(ctx context.Context, groupID, renegotiationID id.ID) error {
	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if g.RenegotiationID != nil {
		return apperror.NewInvalidTransition("payment group", "renegotiated", "renegotiate")
	}
	g.RenegotiationID = &renegotiationID
	return s.store.UpdateGroup(ctx, g)
}

func (s *Service) eachPayment(ctx context.Context, groupID id.ID, match func(*Payment) bool, fn func(context.Context, *Payment) error) error {
	ledger, err := s.Ledger(ctx, groupID)
	if err != nil {
		return err
	}
	for _, p := range ledger.Payments {
		if !match(p) {
			continue
		}
		if err := fn(ctx, p); err != nil {
			return fmt.Errorf("payment %d: %w", p.Identifier, err)
		}
	}
	return nil
}

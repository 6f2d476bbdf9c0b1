package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"stoq/internal/core/apperror"
	"stoq/internal/core/id"
	"stoq/pkg/logger"
)

// EnsureMethods stores the default record of every policy missing one.
func (s *Service) EnsureMethods(ctx context.Context) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, policy := range s.registry.Policies() {
			_, err := s.store.GetMethod(ctx, policy.Name)
			if err == nil {
				continue
			}
			if !apperror.IsNotFound(err) {
				return fmt.Errorf("get method %s: %w", policy.Name, err)
			}
			if err := s.store.SaveMethod(ctx, NewMethodFromPolicy(policy)); err != nil {
				return fmt.Errorf("save method %s: %w", policy.Name, err)
			}
			logger.Debug(ctx, "payment method installed", "method", policy.Name)
		}
		return nil
	})
}

// Method returns the persisted record of name, or its defaults.
func (s *Service) Method(ctx context.Context, name MethodName) (*Method, error) {
	policy, err := s.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	return s.method(ctx, policy)
}

// MethodSettings are the tunable fields of a method record.
type MethodSettings struct {
	IsActive             *bool
	MaxInstallments      *int
	DailyPenalty         *decimal.Decimal
	Interest             *decimal.Decimal
	DestinationAccountID *id.ID
}

// ConfigureMethod updates the persistent record of a method.
func (s *Service) ConfigureMethod(ctx context.Context, name MethodName, set MethodSettings) (*Method, error) {
	var m *Method
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if m, err = s.Method(ctx, name); err != nil {
			return err
		}
		if set.IsActive != nil {
			m.IsActive = *set.IsActive
		}
		if set.MaxInstallments != nil {
			m.MaxInstallments = *set.MaxInstallments
		}
		if set.DailyPenalty != nil {
			m.DailyPenalty = *set.DailyPenalty
		}
		if set.Interest != nil {
			m.Interest = *set.Interest
		}
		if set.DestinationAccountID != nil {
			m.DestinationAccountID = set.DestinationAccountID
		}
		if err := m.Validate(ctx); err != nil {
			return err
		}
		return s.store.SaveMethod(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

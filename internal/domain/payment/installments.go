package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"stoq/internal/core/apperror"
	"stoq/internal/core/id"
	"stoq/internal/core/types"
)

// InstallmentsParams describes a split of Total into len(DueDates) payments.
type InstallmentsParams struct {
	GroupID   id.ID
	Method    MethodName
	Direction Direction
	Total     types.Money
	DueDates  []time.Time
	// InterestRate is a percentage added on top of Total.
	InterestRate decimal.Decimal
	Separate     bool
}

// Installments is the result of GenerateInstallments.
type Installments struct {
	Payments      []*Payment
	InterestTotal types.Money
}

// Split computes the installment values: every value is the rounded
// normalized installment except the last, which absorbs the rounding residue
// so that the values add up to total plus interest exactly.
func Split(total types.Money, n int, rate decimal.Decimal) (values []types.Money, interest types.Money) {
	interest = types.RoundMoney(types.Percent(total, rate))
	grand := total.Add(interest)
	normalized := types.RoundMoney(grand.Div(decimal.NewFromInt(int64(n))))
	values = make([]types.Money, n)
	sum := types.Zero()
	for i := range values {
		values[i] = normalized
		sum = sum.Add(normalized)
	}
	values[n-1] = values[n-1].Add(grand.Sub(sum))
	return values, interest
}

// GenerateInstallments creates one PREVIEW payment per due date.
func (s *Service) GenerateInstallments(ctx context.Context, in InstallmentsParams) (*Installments, error) {
	n := len(in.DueDates)
	if n < 1 {
		return nil, apperror.NewInvalidValue("installments", "at least one installment is required")
	}
	if in.Total.IsNegative() {
		return nil, apperror.NewInvalidValue("total", "installments total must not be negative")
	}
	if in.InterestRate.IsNegative() {
		return nil, apperror.NewInvalidValue("interest", "interest rate must not be negative")
	}
	if in.Method == "" {
		in.Method = MethodName(s.params.DefaultPaymentMethod)
	}
	policy, err := s.registry.Resolve(in.Method)
	if err != nil {
		return nil, err
	}

	out := &Installments{}
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		method, err := s.method(ctx, policy)
		if err != nil {
			return err
		}
		if in.Direction == In && n > method.MaxInstallments {
			return apperror.NewLimitExceeded(string(method.Name), method.MaxInstallments).
				WithDetail("requested", n)
		}
		group, err := s.store.GetGroup(ctx, in.GroupID)
		if err != nil {
			return err
		}

		values, interest := Split(in.Total, n, in.InterestRate)
		out.InterestTotal = interest
		for i, due := range in.DueDates {
			p, err := s.create(ctx, CreateParams{
				GroupID:     in.GroupID,
				Method:      policy.Name,
				Direction:   in.Direction,
				Value:       values[i],
				DueDate:     due,
				Description: describe(policy, group, i+1, n),
				Separate:    in.Separate,
			})
			if err != nil {
				return err
			}
			out.Payments = append(out.Payments, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

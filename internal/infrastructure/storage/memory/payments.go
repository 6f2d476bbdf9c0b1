package memory

import (
	"context"
	"slices"

	"stoq/internal/core/apperror"
	"stoq/internal/core/id"
	"stoq/internal/domain/payment"
)

func (s *Store) CreatePayment(ctx context.Context, p *payment.Payment) error {
	return s.write(func(d *state) error {
		if _, ok := d.payments[p.ID]; ok {
			return apperror.NewConflict("payment already exists")
		}
		if _, ok := d.groups[p.GroupID]; !ok {
			return apperror.NewNotFound("payment group", p.GroupID.String())
		}
		d.payments[p.ID] = *p
		return nil
	})
}

func (s *Store) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	return s.write(func(d *state) error {
		stored, err := lookup(d.payments, p.ID, "payment")
		if err != nil {
			return err
		}
		if err := checkVersion(&stored.BaseEntity, &p.BaseEntity, "payment"); err != nil {
			return err
		}
		d.payments[p.ID] = *p
		return nil
	})
}

func (s *Store) DeletePayment(ctx context.Context, paymentID id.ID) error {
	return s.write(func(d *state) error {
		if _, ok := d.payments[paymentID]; !ok {
			return apperror.NewNotFound("payment", paymentID.String())
		}
		delete(d.payments, paymentID)
		return nil
	})
}

func (s *Store) GetPayment(ctx context.Context, paymentID id.ID) (*payment.Payment, error) {
	var p *payment.Payment
	err := s.read(func(d *state) error {
		var err error
		p, err = lookup(d.payments, paymentID, "payment")
		return err
	})
	return p, err
}

func (s *Store) paymentsWhere(keep func(*payment.Payment) bool) []*payment.Payment {
	var out []*payment.Payment
	_ = s.read(func(d *state) error {
		for _, p := range d.payments {
			if keep(&p) {
				out = append(out, &p)
			}
		}
		return nil
	})
	slices.SortStableFunc(out, payment.ByDueDate)
	return out
}

func (s *Store) PaymentsOfGroup(ctx context.Context, groupID id.ID) ([]*payment.Payment, error) {
	return s.paymentsWhere(func(p *payment.Payment) bool { return p.GroupID == groupID }), nil
}

func (s *Store) ValidPaymentsOfGroup(ctx context.Context, groupID id.ID) ([]*payment.Payment, error) {
	return s.paymentsWhere(func(p *payment.Payment) bool { return p.GroupID == groupID && p.IsValid() }), nil
}

func (s *Store) PaymentsByMethod(ctx context.Context, groupID id.ID, method payment.MethodName) ([]*payment.Payment, error) {
	return s.paymentsWhere(func(p *payment.Payment) bool { return p.GroupID == groupID && p.Method == method }), nil
}

func (s *Store) CreateGroup(ctx context.Context, g *payment.Group) error {
	return s.write(func(d *state) error {
		if _, ok := d.groups[g.ID]; ok {
			return apperror.NewConflict("payment group already exists")
		}
		d.groups[g.ID] = *g
		return nil
	})
}

func (s *Store) UpdateGroup(ctx context.Context, g *payment.Group) error {
	return s.write(func(d *state) error {
		stored, err := lookup(d.groups, g.ID, "payment group")
		if err != nil {
			return err
		}
		if err := checkVersion(&stored.BaseEntity, &g.BaseEntity, "payment group"); err != nil {
			return err
		}
		d.groups[g.ID] = *g
		return nil
	})
}

func (s *Store) GetGroup(ctx context.Context, groupID id.ID) (*payment.Group, error) {
	var g *payment.Group
	err := s.read(func(d *state) error {
		var err error
		g, err = lookup(d.groups, groupID, "payment group")
		return err
	})
	return g, err
}

func (s *Store) GetMethod(ctx context.Context, name payment.MethodName) (*payment.Method, error) {
	var m *payment.Method
	err := s.read(func(d *state) error {
		var err error
		m, err = lookup(d.methods, name, "payment method")
		return err
	})
	return m, err
}

func (s *Store) SaveMethod(ctx context.Context, m *payment.Method) error {
	return s.write(func(d *state) error {
		d.methods[m.Name] = *m
		return nil
	})
}

func (s *Store) ListMethods(ctx context.Context) ([]*payment.Method, error) {
	var out []*payment.Method
	err := s.read(func(d *state) error {
		for _, m := range d.methods {
			v := m
			out = append(out, &v)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *payment.Method) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out, err
}

func (s *Store) CreateCheckData(ctx context.Context, data *payment.CheckData, account *payment.BankAccount) error {
	return s.write(func(d *state) error {
		d.accounts[account.ID] = *account
		d.checks[data.PaymentID] = *data
		return nil
	})
}

func (s *Store) GetCheckData(ctx context.Context, paymentID id.ID) (*payment.CheckData, *payment.BankAccount, error) {
	var data *payment.CheckData
	var account *payment.BankAccount
	err := s.read(func(d *state) error {
		var err error
		if data, err = lookup(d.checks, paymentID, "check data"); err != nil {
			return err
		}
		account, err = lookup(d.accounts, data.BankAccountID, "bank account")
		return err
	})
	return data, account, err
}

func (s *Store) UpdateBankAccount(ctx context.Context, account *payment.BankAccount) error {
	return s.write(func(d *state) error {
		if _, ok := d.accounts[account.ID]; !ok {
			return apperror.NewNotFound("bank account", account.ID.String())
		}
		d.accounts[account.ID] = *account
		return nil
	})
}

func (s *Store) DeleteCheckData(ctx context.Context, paymentID id.ID) error {
	return s.write(func(d *state) error {
		data, err := lookup(d.checks, paymentID, "check data")
		if err != nil {
			return err
		}
		delete(d.accounts, data.BankAccountID)
		delete(d.checks, paymentID)
		return nil
	})
}

func (s *Store) SaveCardData(ctx context.Context, data *payment.CardData) error {
	return s.write(func(d *state) error {
		d.cards[data.PaymentID] = *data
		return nil
	})
}

func (s *Store) GetCardData(ctx context.Context, paymentID id.ID) (*payment.CardData, error) {
	var data *payment.CardData
	err := s.read(func(d *state) error {
		var err error
		data, err = lookup(d.cards, paymentID, "card data")
		return err
	})
	return data, err
}

func (s *Store) DeleteCardData(ctx context.Context, paymentID id.ID) error {
	return s.write(func(d *state) error {
		if _, ok := d.cards[paymentID]; !ok {
			return apperror.NewNotFound("card data", paymentID.String())
		}
		delete(d.cards, paymentID)
		return nil
	})
}

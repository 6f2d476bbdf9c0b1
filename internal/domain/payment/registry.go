package payment

import (
	"sort"

	"stoq/internal/core/apperror"
)

// policies is the built-in method table. The invalid entry is the fallback
// for unknown names: it refuses creation and payment but can cancel.
var policies = map[MethodName]Policy{
	MethodMoney: {
		Name: MethodMoney, Description: "Money", MaxInstallments: 1,
		PayOnConfirm: true, EmitsTransaction: true, Selectable: true,
		CreatableIn: true, CreatableOut: true, CreatableSeparate: true,
		CanCancel: true, CanPay: true, CanSetNotPaid: true,
		Constant: ConstantMoney,
	},
	MethodCheck: {
		Name: MethodCheck, Description: "Check", MaxInstallments: 12,
		EmitsTransaction: true, Selectable: true,
		CreatableIn: true, CreatableOut: true, CreatableSeparate: true,
		CanCancel: true, CanChangeDueDate: true, CanPay: true, CanPrint: true, CanSetNotPaid: true,
		Constant: ConstantCheck, Auxiliary: AuxiliaryCheck,
	},
	MethodBill: {
		Name: MethodBill, Description: "Bill", MaxInstallments: 12,
		EmitsTransaction: true, Selectable: true,
		CreatableIn: true, CreatableOut: true, CreatableSeparate: true,
		CanCancel: true, CanChangeDueDate: true, CanPay: true, CanPrint: true, CanSetNotPaid: true,
		PayerRequiredIn: true,
		Constant:        ConstantBill,
	},
	MethodCard: {
		Name: MethodCard, Description: "Card", MaxInstallments: 12,
		EmitsTransaction: true, Selectable: true,
		CreatableIn: true, CreatableSeparate: true,
		CanCancel: true, CanPay: true,
		Constant: ConstantCreditCard, Auxiliary: AuxiliaryCard,
	},
	MethodStoreCredit: {
		Name: MethodStoreCredit, Description: "Store Credit", MaxInstallments: 1,
		EmitsTransaction: true, Selectable: true,
		CreatableIn: true, CreatableSeparate: true,
		CanCancel: true, CanChangeDueDate: true, CanPay: true, CanPrint: true,
		PayerRequiredIn: true,
		Constant:        ConstantCustom,
	},
	MethodCredit: {
		Name: MethodCredit, Description: "Credit", MaxInstallments: 1,
		PayOnConfirm: true, Selectable: true,
		CreatableIn: true, CreatableSeparate: true,
		CanCancel: true, CanPay: true,
		PayerRequiredIn: true, PayerRequiredOut: true,
		Constant: ConstantCustom,
	},
	MethodTrade: {
		Name: MethodTrade, Description: "Trade", MaxInstallments: 1,
		CanCancel: true, CanPay: true,
		Constant: ConstantCustom,
	},
	MethodDeposit: {
		Name: MethodDeposit, Description: "Deposit", MaxInstallments: 12,
		EmitsTransaction: true, Selectable: true,
		CreatableIn: true, CreatableOut: true, CreatableSeparate: true,
		CanCancel: true, CanChangeDueDate: true, CanPay: true, CanSetNotPaid: true,
		Constant: ConstantCustom,
	},
	MethodOnline: {
		Name: MethodOnline, Description: "Online", MaxInstallments: 1,
		EmitsTransaction: true,
		CanCancel: true, CanPay: true,
		PayerRequiredIn: true, PayerRequiredOut: true,
		Constant: ConstantCustom,
	},
	MethodMultiple: {
		Name: MethodMultiple, Description: "Multiple", MaxInstallments: 12,
		Selectable: true,
		CreatableIn: true,
		CanCancel: true, CanPay: true,
		Constant: ConstantCustom,
	},
	MethodInvalid: {
		Name: MethodInvalid, Description: "Invalid", MaxInstallments: 1,
		CanCancel: true,
		Constant:  ConstantCustom,
	},
}

// Registry resolves method names to policies. Lookups never fail.
type Registry struct {
	table map[MethodName]Policy
}

// NewRegistry returns the registry over the built-in table.
func NewRegistry() *Registry {
	return &Registry{table: policies}
}

// Lookup returns the policy for name, or the invalid fallback.
func (r *Registry) Lookup(name MethodName) Policy {
	if p, ok := r.table[name]; ok {
		return p
	}
	return r.table[MethodInvalid]
}

// Resolve is Lookup that also reports an UnknownMethod error for names that
// fell back. The returned policy is always usable.
func (r *Registry) Resolve(name MethodName) (Policy, error) {
	if p, ok := r.table[name]; ok && name != MethodInvalid {
		return p, nil
	}
	return r.table[MethodInvalid], apperror.NewUnknownMethod(string(name))
}

// Known reports whether name is a registered, non-fallback method.
func (r *Registry) Known(name MethodName) bool {
	_, ok := r.table[name]
	return ok && name != MethodInvalid
}

// Policies returns every policy, fallback included, ordered by name.
func (r *Registry) Policies() []Policy {
	out := make([]Policy, 0, len(r.table))
	for _, p := range r.table {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Selectable returns the policies offered to users for direction d.
func (r *Registry) Selectable(d Direction, separate bool) []Policy {
	var out []Policy
	for _, p := range r.Policies() {
		if p.Selectable && p.Creatable(d, separate) {
			out = append(out, p)
		}
	}
	return out
}

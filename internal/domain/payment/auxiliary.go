package payment

import (
	"github.com/shopspring/decimal"

	"stoq/internal/core/apperror"
	"stoq/internal/core/id"
	"stoq/internal/core/types"
)

// BankAccount is the drawer account of a check.
type BankAccount struct {
	ID            id.ID  `db:"id" json:"id"`
	BankNumber    string `db:"bank_number" json:"bankNumber"`
	BranchCode    string `db:"branch_code" json:"branchCode"`
	AccountNumber string `db:"account_number" json:"accountNumber"`
}

// CheckData links a check payment to its bank account.
type CheckData struct {
	PaymentID     id.ID `db:"payment_id" json:"paymentId"`
	BankAccountID id.ID `db:"bank_account_id" json:"bankAccountId"`
}

// CardType is the kind of card transaction.
type CardType string

const (
	CardCredit               CardType = "credit"
	CardDebit                CardType = "debit"
	CardInstallmentsStore    CardType = "installments_store"
	CardInstallmentsProvider CardType = "installments_provider"
	CardDebitPreDated        CardType = "debit_pre_dated"
)

// Valid reports whether t is a known card type.
func (t CardType) Valid() bool {
	switch t {
	case CardCredit, CardDebit, CardInstallmentsStore, CardInstallmentsProvider, CardDebitPreDated:
		return true
	}
	return false
}

// CardData holds the card details of a card payment.
type CardData struct {
	PaymentID    id.ID           `db:"payment_id" json:"paymentId"`
	CardType     CardType        `db:"card_type" json:"cardType"`
	ProviderID   *id.ID          `db:"provider_id" json:"providerId,omitempty"`
	Fee          decimal.Decimal `db:"fee" json:"fee"`
	FeeValue     types.Money     `db:"fee_value" json:"feeValue"`
	Installments int             `db:"installments" json:"installments"`
}

// CardDetails is the caller-supplied part of CardData.
type CardDetails struct {
	CardType     CardType
	ProviderID   *id.ID
	Fee          decimal.Decimal
	Installments int
}

// Apply validates details and stores them, computing the fee value over value.
func (c *CardData) Apply(details CardDetails, value types.Money) error {
	if !details.CardType.Valid() {
		return apperror.NewValidation("invalid card type").WithDetail("card_type", string(details.CardType))
	}
	if details.Fee.IsNegative() || details.Fee.GreaterThan(hundred) {
		return apperror.NewInvalidValue("fee", "card fee must be a percentage between 0 and 100")
	}
	if details.Installments < 1 {
		details.Installments = 1
	}
	c.CardType = details.CardType
	c.ProviderID = details.ProviderID
	c.Fee = details.Fee
	c.FeeValue = types.RoundMoney(types.Percent(value, details.Fee))
	c.Installments = details.Installments
	return nil
}

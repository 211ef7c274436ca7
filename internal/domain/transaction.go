package domain

import (
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionType distinguishes money going out from money coming in.
type TransactionType string

const (
	TypeExpense TransactionType = "expense"
	TypeIncome  TransactionType = "income"
)

// Transaction represents one parsed transaction handed to the analysis core.
// Only Category is written after parsing, and only once, by the categorizer.
type Transaction struct {
	ID             string          `json:"id,omitempty"`
	Date           civil.Date      `json:"date"`   // calendar day, no time-of-day
	Amount         decimal.Decimal `json:"amount"` // non-negative, currency implicit
	Merchant       string          `json:"merchant"`
	RawDescription string          `json:"rawDescription,omitempty"`
	Category       string          `json:"category,omitempty"`
	Type           TransactionType `json:"type"`
	PaymentMethod  string          `json:"paymentMethod,omitempty"`
	Source         string          `json:"source,omitempty"` // e.g. CSV, Gmail, Manual
}

// MerchantKey returns the case-folded merchant used as a grouping identity.
func (t Transaction) MerchantKey() string {
	return strings.ToLower(t.Merchant)
}

// IsExpense reports whether the transaction is money going out.
func (t Transaction) IsExpense() bool {
	return t.Type == TypeExpense
}

// IsCategorized reports whether a category has already been assigned.
func (t Transaction) IsCategorized() bool {
	return strings.TrimSpace(t.Category) != ""
}

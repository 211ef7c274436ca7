package domain

import "strings"

// Validate checks the fields the analysis core relies on.
func (t Transaction) Validate() error {
	return t.validateAt(-1)
}

func (t Transaction) validateAt(i int) error {
	if strings.TrimSpace(t.Merchant) == "" {
		return &DataError{Index: i, Field: "merchant", Reason: "is empty"}
	}
	if !t.Date.IsValid() {
		return &DataError{Index: i, Field: "date", Reason: "is missing or invalid"}
	}
	if t.Amount.IsNegative() {
		return &DataError{Index: i, Field: "amount", Reason: "must not be negative, got " + t.Amount.String()}
	}
	switch t.Type {
	case TypeExpense, TypeIncome:
	default:
		return &DataError{Index: i, Field: "type", Reason: "must be expense or income, got " + string(t.Type)}
	}
	return nil
}

// ValidateTransactions fails fast on the first malformed transaction.
func ValidateTransactions(txs []Transaction) error {
	for i, t := range txs {
		if err := t.validateAt(i); err != nil {
			return err
		}
	}
	return nil
}

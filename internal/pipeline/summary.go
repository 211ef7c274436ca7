package pipeline

import (
	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/shopspring/decimal"
)

// Summarize totals income and expenses and groups expense spend by category.
// Uncategorized expenses are grouped under the empty category.
func Summarize(txs []domain.Transaction) Summary {
	s := Summary{
		Income:     decimal.Zero,
		Expenses:   decimal.Zero,
		ByCategory: make(map[string]decimal.Decimal),
	}
	for _, tx := range txs {
		if !tx.IsExpense() {
			s.Income = s.Income.Add(tx.Amount)
			continue
		}
		s.Expenses = s.Expenses.Add(tx.Amount)
		s.ByCategory[tx.Category] = s.ByCategory[tx.Category].Add(tx.Amount)
	}
	s.Balance = s.Income.Sub(s.Expenses)
	return s
}

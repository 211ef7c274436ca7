package domain

import "github.com/shopspring/decimal"

// WasteType names the rule that raised a WasteFlag.
type WasteType string

const (
	WasteUnusedSubscription    WasteType = "unused_subscription"
	WasteDuplicateSubscription WasteType = "duplicate_subscription"
	WasteSmallRepeatedExpenses WasteType = "small_repeated_expenses"
	WasteGambling              WasteType = "gambling"
)

// WasteFlag is avoidable spend with an estimate of what could be saved each month.
// Flags of different types may cover the same transactions.
type WasteFlag struct {
	Type           WasteType       `json:"type"`
	Service        string          `json:"service"`
	Amount         decimal.Decimal `json:"amount"`
	Reason         string          `json:"reason"`
	MonthlySavings decimal.Decimal `json:"monthlySavings"`
}
